package driver

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for operations on a connection that was closed.
var ErrClosed = errors.New("connection closed")

// ErrParamType is returned when a bound parameter can't be represented as an
// engine value and the permissive null fallback is not allowed, e.g. at the
// database/sql adapter boundary.
var ErrParamType = errors.New("unsupported parameter type")

// ConfigError reports invalid or conflicting connection configuration,
// detected before any engine call is attempted.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string { return "config: " + e.msg }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// EngineError wraps a failure surfaced by the storage engine, unmodified.
// Op names the operation that failed: prepare, execute, query, fetch,
// commit, rollback, sync, close, connect.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string { return fmt.Sprintf("engine %s failed: %v", e.Op, e.Err) }

// Unwrap exposes the underlying engine error to errors.Is/As.
func (e *EngineError) Unwrap() error { return e.Err }
