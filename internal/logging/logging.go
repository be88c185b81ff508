// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing to stderr at level. Development loggers use
// the console encoder with colored levels; production loggers emit JSON.
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Sampling = nil
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	return cfg.Build()
}

// ParseLevel accepts debug, info, warn or error. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return lvl, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// CronLogger adapts a zap logger to the gocron Logger interface.
type CronLogger struct {
	s *zap.SugaredLogger
}

func NewCronLogger(log *zap.Logger) *CronLogger {
	return &CronLogger{s: log.Sugar()}
}

func (l *CronLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l *CronLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l *CronLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l *CronLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
