package storage

import (
	"fmt"
	"strconv"
	"time"

	"hostpin/internal/storage/models"
	apperrors "hostpin/pkg/errors"
)

// Strategies accepted by the probe_strategy setting.
var Strategies = []string{"https", "tls"}

// EditableKeys lists the settings an operator may change directly.
var EditableKeys = []string{
	KeyAddresses, KeyDomains, KeyInterval, KeyWorkers, KeyTimeout, KeyStrategy, KeyBackupKeep,
}

// EncodeSettings renders typed settings as settings table rows.
func EncodeSettings(s *models.Settings) map[string]string {
	return map[string]string{
		KeyAddresses:  models.FormatList(models.Dedup(s.Addresses)),
		KeyDomains:    models.FormatList(models.Dedup(s.Domains)),
		KeyInterval:   strconv.FormatInt(int64(s.Interval/time.Second), 10),
		KeyWorkers:    strconv.Itoa(s.Workers),
		KeyTimeout:    strconv.FormatInt(s.Timeout.Milliseconds(), 10),
		KeyStrategy:   s.Strategy,
		KeyBackupKeep: strconv.Itoa(s.BackupKeep),
	}
}

// DecodeSettings parses settings table rows. Missing keys leave the zero value.
func DecodeSettings(raw map[string]string) (*models.Settings, error) {
	s := &models.Settings{
		Addresses: models.ParseList(raw[KeyAddresses]),
		Domains:   models.ParseList(raw[KeyDomains]),
		Strategy:  raw[KeyStrategy],
	}

	for _, key := range []string{KeyInterval, KeyWorkers, KeyTimeout, KeyBackupKeep, KeyStrategy} {
		val, ok := raw[key]
		if !ok || val == "" {
			continue
		}
		if err := ValidateSetting(key, val); err != nil {
			return nil, err
		}
	}

	if v := raw[KeyInterval]; v != "" {
		n, _ := strconv.ParseInt(v, 10, 64)
		s.Interval = time.Duration(n) * time.Second
	}
	if v := raw[KeyWorkers]; v != "" {
		s.Workers, _ = strconv.Atoi(v)
	}
	if v := raw[KeyTimeout]; v != "" {
		n, _ := strconv.ParseInt(v, 10, 64)
		s.Timeout = time.Duration(n) * time.Millisecond
	}
	if v := raw[KeyBackupKeep]; v != "" {
		s.BackupKeep, _ = strconv.Atoi(v)
	}
	return s, nil
}

// ValidateSetting checks that value is acceptable for an editable key.
func ValidateSetting(key, value string) error {
	invalid := func(format string, args ...any) error {
		return &apperrors.SettingError{
			Key: key,
			Err: fmt.Errorf("%w: %s", apperrors.ErrSettingInvalid, fmt.Sprintf(format, args...)),
		}
	}

	switch key {
	case KeyAddresses, KeyDomains:
		return nil
	case KeyInterval, KeyBackupKeep:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return invalid("%q is not an integer", value)
		}
		if n < 0 {
			return invalid("must not be negative")
		}
		return nil
	case KeyWorkers, KeyTimeout:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return invalid("%q is not an integer", value)
		}
		if n <= 0 {
			return invalid("must be positive")
		}
		return nil
	case KeyStrategy:
		for _, s := range Strategies {
			if value == s {
				return nil
			}
		}
		return invalid("unknown strategy %q (available: https, tls)", value)
	default:
		return &apperrors.SettingError{Key: key, Err: apperrors.ErrSettingUnknown}
	}
}

// ValidateSettings checks every editable field of s.
func ValidateSettings(s *models.Settings) error {
	rows := EncodeSettings(s)
	for _, key := range EditableKeys {
		if err := ValidateSetting(key, rows[key]); err != nil {
			return err
		}
	}
	return nil
}
