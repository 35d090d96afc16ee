package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. Every stage failure wraps exactly one of these so callers
// can classify with errors.Is while the underlying cause stays attached.
var (
	ErrNetwork   = errors.New("network error")
	ErrStorage   = errors.New("storage error")
	ErrFormat    = errors.New("format error")
	ErrDataStore = errors.New("datastore error")
)

// wrapf tags err with an error kind and operation context.
func wrapf(kind, err error, format string, args ...any) error {
	op := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
