package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"househub/kv"
)

// ErrCorrupt signals a stored value that is not valid JSON for its schema.
var ErrCorrupt = errors.New("storage: corrupt record")

// Collection is a JSON array of T stored under one key.
type Collection[T any] struct {
	store kv.Store
	key   string
}

// NewCollection binds a collection to key.
func NewCollection[T any](store kv.Store, key string) *Collection[T] {
	return &Collection[T]{store: store, key: key}
}

// Key returns the backing key.
func (c *Collection[T]) Key() string {
	return c.key
}

// Load returns every item. A missing key yields an empty slice.
func (c *Collection[T]) Load(ctx context.Context) ([]T, error) {
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("storage: load %s: %w", c.key, err)
	}
	items := []T{}
	if !ok || raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, c.key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// Save replaces the collection.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	body, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", c.key, err)
	}
	if err := c.store.Set(ctx, c.key, string(body)); err != nil {
		return fmt.Errorf("storage: save %s: %w", c.key, err)
	}
	return nil
}

// Update loads the collection, applies fn and saves the result unless fn
// returns an error. The cycle is not atomic across processes.
func (c *Collection[T]) Update(ctx context.Context, fn func([]T) ([]T, error)) error {
	items, err := c.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return c.Save(ctx, next)
}

// Document is a single JSON object stored under one key.
type Document[T any] struct {
	store kv.Store
	key   string
}

// NewDocument binds a document to key.
func NewDocument[T any](store kv.Store, key string) *Document[T] {
	return &Document[T]{store: store, key: key}
}

// Load returns the document and true, or the zero value and false when absent.
func (d *Document[T]) Load(ctx context.Context) (T, bool, error) {
	var v T
	raw, ok, err := d.store.Get(ctx, d.key)
	if err != nil {
		return v, false, fmt.Errorf("storage: load %s: %w", d.key, err)
	}
	if !ok || raw == "" {
		return v, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return v, false, fmt.Errorf("%w: %s: %v", ErrCorrupt, d.key, err)
	}
	return v, true, nil
}

// Save overwrites the document.
func (d *Document[T]) Save(ctx context.Context, v T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", d.key, err)
	}
	if err := d.store.Set(ctx, d.key, string(body)); err != nil {
		return fmt.Errorf("storage: save %s: %w", d.key, err)
	}
	return nil
}

// Delete removes the document.
func (d *Document[T]) Delete(ctx context.Context) error {
	if err := d.store.Remove(ctx, d.key); err != nil {
		return fmt.Errorf("storage: delete %s: %w", d.key, err)
	}
	return nil
}

// ReadJSON decodes an arbitrary key into v. It reports false for a missing key.
func ReadJSON(ctx context.Context, store kv.Store, key string, v any) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("storage: read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return true, nil
}
