// Package storage provides the durable key-value store that session state is
// mirrored to, so a process restart never loses the last presented session.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value; for session purposes,
// absence of the key means "no session".
var ErrNotFound = errors.New("storage: key not found")

// KeyValue is the durable storage contract: string keys, string values, all
// operations asynchronous at the I/O boundary.
type KeyValue interface {
	GetItem(ctx context.Context, key string) (string, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}
