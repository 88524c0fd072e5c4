// Package storage defines the durable persistence boundary of the ordering
// core: a namespaced key-value blob store. The core only ever talks to the
// KeyValue interface; the concrete driver (memory, file, postgres) is picked
// in configuration.
package storage

import (
	"context"
	"fmt"
)

// KeyValue is the persistence collaborator. Implementations must be safe for
// concurrent use and must not retry on failure — retry policy belongs to the
// caller.
type KeyValue interface {
	// Load returns the stored value and whether the key exists.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close()
}

// PersistenceError marks a durable-store read or write failure. Callers
// surface it as a failed-save notice and keep their in-memory state intact.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceErr(op, key string, err error) error {
	return &PersistenceError{Op: op, Key: key, Err: err}
}
