package cache

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/goliatone/go-webstats/internal/cacheinfra"
)

var (
	// ErrStoreClosed is returned by store operations attempted after the
	// store connection was closed.
	ErrStoreClosed = errors.New("value store is closed")

	// ErrSourceReleased is returned by a FieldSource whose backing provider
	// was unloaded before the caller finished with it.
	ErrSourceReleased = errors.New("field source was released")
)

// ConfigError reports a missing or malformed setting.
type ConfigError = cacheinfra.ConfigError

// StoreError wraps a failure of the relational store with the operation and
// table it happened on.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsResourceReleased reports whether err was caused by a store or source that
// had already been released by the time it was used.
func IsResourceReleased(err error) bool {
	return errors.Is(err, ErrStoreClosed) ||
		errors.Is(err, ErrSourceReleased) ||
		errors.Is(err, sql.ErrConnDone)
}
