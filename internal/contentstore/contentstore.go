package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ContentStore defines the interface for the content-addressed network.
// Implementations never retry internally: retry policy belongs to the
// caller, which owns the persisted attempt/error state needed to decide
// whether retrying is still worthwhile.
type ContentStore interface {
	// Add streams content to the store and returns its content identifier
	// and the number of bytes written.
	Add(ctx context.Context, r io.Reader) (cid string, size int64, err error)

	// Pin instructs the store to retain the content indefinitely. A record
	// must not be marked pinned before this call (or an add with
	// pin-on-write enabled) has succeeded.
	Pin(ctx context.Context, cid string) error

	// Cat retrieves the content behind a cid. The caller closes the reader.
	Cat(ctx context.Context, cid string) (io.ReadCloser, error)
}

// StoreError wraps a failure from the content-addressed network and
// classifies it as transient (timeout, 5xx, connection refused) or
// permanent (bad credentials, malformed cid). Transient failures leave
// state consistent for a later sweep; permanent ones should stop being
// retried once the attempts cap is reached.
type StoreError struct {
	Op        string // "add", "pin" or "cat"
	Transient bool
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("content store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable store failure.
func IsTransient(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Transient
	}
	return false
}
