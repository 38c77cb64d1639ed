// Package cache persists index snapshots between sessions so dependency
// packages that did not change are not analyzed again.
package cache

import (
	"context"
	"errors"
)

// Cache stores opaque values by key.
type Cache interface {
	// Get returns the value for key. A miss is reported with ok == false
	// and a nil error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// ErrEmptyKey is returned for operations on an empty key.
var ErrEmptyKey = errors.New("cache: empty key")

// SnapshotKey is the key under which the index of a dependency package at
// a given version is stored.
func SnapshotKey(pkg, version string) string {
	return "index:" + pkg + "@" + version
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []byte) error          { return nil }
