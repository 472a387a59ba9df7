// Package rtdb wraps the Firebase Realtime Database behind a path-addressed
// store with live subscriptions. Writes go through the Admin SDK; reads under
// subscription come from the database's streaming REST endpoint, since the
// Admin SDK has no listener support.
package rtdb

import (
	"context"
	"encoding/json"
	"fmt"
)

// Persistence error kinds.
const (
	KindUnauthenticated = "unauthenticated"
	KindNotFound        = "not_found"
	KindDecode          = "decode"
	KindInternal        = "internal"
)

// PersistenceError is a store-level failure with enough structure for callers
// to branch on the cause.
type PersistenceError struct {
	Op   string
	Path string
	Kind string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store %s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("store %s %s: %s", e.Op, e.Path, e.Kind)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError builds a PersistenceError; err may be nil.
func NewPersistenceError(op, path, kind string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Path: path, Kind: kind, Err: err}
}

// IsUnauthenticated reports whether err is a persistence failure caused by a
// missing session at call time.
func IsUnauthenticated(err error) bool {
	pe, ok := err.(*PersistenceError)
	return ok && pe.Kind == KindUnauthenticated
}

// IsNotFound reports whether err is a missing-record persistence failure.
func IsNotFound(err error) bool {
	pe, ok := err.(*PersistenceError)
	return ok && pe.Kind == KindNotFound
}

// Store is the realtime key-value collaborator. Values are addressed by
// slash-separated paths rooted at the owning user's identifier.
type Store interface {
	// Get reads the value at path once into v. A missing node decodes as the
	// zero value, mirroring the database's null semantics.
	Get(ctx context.Context, path string, v any) error

	// Set writes the complete value at path, replacing whatever is there.
	Set(ctx context.Context, path string, v any) error

	// Update applies a partial patch of child keys at path.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes the node at path, including any children.
	Delete(ctx context.Context, path string) error

	// AllocateID mints a push-generated child key under path without writing
	// a value. A crash between AllocateID and the Set that commits the record
	// leaves an orphaned key with no data; callers own that failure mode.
	AllocateID(ctx context.Context, path string) (string, error)

	// Push appends v under a newly generated child key and returns the key.
	Push(ctx context.Context, path string, v any) (string, error)

	// Subscribe streams the full snapshot of the node at path: the current
	// value immediately, then a fresh snapshot after every change anywhere
	// under the path. The channel closes when ctx is cancelled or the stream
	// fails.
	Subscribe(ctx context.Context, path string) (<-chan json.RawMessage, error)
}
