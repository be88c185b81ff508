package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Run errors
	ErrPrivilegeDenied = errors.New("insufficient privilege: run as administrator/root")
	ErrEmptyInput      = errors.New("no addresses or no domains supplied")
	ErrAllUnresolved   = errors.New("no domain could be resolved to a reachable address")
	ErrBackupFailed    = errors.New("failed to back up hosts file")
	ErrWriteFailed     = errors.New("failed to write hosts file")

	// Settings errors
	ErrSettingUnknown = errors.New("unknown setting")
	ErrSettingInvalid = errors.New("invalid setting value")

	// List import errors
	ErrListEmpty = errors.New("list contains no usable entries")
)

// FailureKind classifies why a single probe failed.
type FailureKind string

const (
	KindConnect   FailureKind = "connect"
	KindHandshake FailureKind = "handshake"
	KindTimeout   FailureKind = "timeout"
	KindProtocol  FailureKind = "protocol"
)

// ProbeError represents a failed probe of one address for one domain
type ProbeError struct {
	Kind    FailureKind
	Address string
	Domain  string
	Err     error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s for %s: %s failure: %v", e.Address, e.Domain, e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, or "" if err is not a probe error.
func KindOf(err error) FailureKind {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// RunError represents a run that stopped in the given stage
type RunError struct {
	Stage string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run failed during %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// SettingError represents a setting that could not be read or written
type SettingError struct {
	Key string
	Err error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("setting '%s': %v", e.Key, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}

// FetchError represents a remote list that could not be downloaded
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch '%s': %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
