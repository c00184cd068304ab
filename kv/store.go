// Package kv provides the flat string key-value store that every househub
// record lives in. It mirrors the contract of a browser's local storage: values
// are opaque text, keys are unstructured strings and there is no transaction
// spanning more than one call.
//
// Concurrent writers to the same key are last-write-wins. Callers that perform
// read-modify-write cycles (every collection update does) can lose updates when
// two processes share one backing database. This matches the behaviour of two
// browser tabs sharing one local storage and is accepted, not fixed.
package kv

import (
	"context"
	"errors"
	"strings"
)

// ErrClosed signals use of a store after Close.
var ErrClosed = errors.New("kv: store closed")

// Store is the key-value accessor used by the storage layer.
type Store interface {
	// Get returns the value and true, or "" and false when the key is absent.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// ScanKeys returns the sorted keys accepted by match. A nil match accepts all.
	ScanKeys(ctx context.Context, match func(key string) bool) ([]string, error)
}

// Prefix returns a ScanKeys predicate matching keys that start with p.
func Prefix(p string) func(string) bool {
	return func(key string) bool {
		return strings.HasPrefix(key, p)
	}
}

// AnyPrefix matches keys starting with any of the given prefixes.
func AnyPrefix(prefixes ...string) func(string) bool {
	return func(key string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				return true
			}
		}
		return false
	}
}
