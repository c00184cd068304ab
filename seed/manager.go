// Package seed resets the store to the demo baseline and manages the test
// user roster.
package seed

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"househub/auth"
	"househub/events"
	"househub/kv"
	"househub/storage"
)

const (
	AdminID       = "admin-test-1"
	AdminEmail    = "admin@hh.dk"
	AdminPassword = "12345678"
	AdminName     = "Administrator"
)

// BaselineUsers is the roster written by ResetEnvironment.
func BaselineUsers() []auth.User {
	active := true
	return []auth.User{{
		ID:       AdminID,
		Email:    AdminEmail,
		Password: AdminPassword,
		Name:     AdminName,
		Role:     auth.RoleAdmin,
		IsActive: &active,
	}}
}

type Manager struct {
	store   kv.Store
	users   auth.Repository
	hasher  auth.PasswordHasher
	events  events.Publisher
	address *storage.Document[string]
}

func NewManager(store kv.Store, users auth.Repository, publisher events.Publisher) *Manager {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Manager{
		store:   store,
		users:   users,
		hasher:  auth.PlainHasher{},
		events:  publisher,
		address: storage.NewDocument[string](store, storage.KeySellerAddressCache),
	}
}

// WithHasher sets the hasher applied to baseline and added passwords.
func (m *Manager) WithHasher(h auth.PasswordHasher) *Manager {
	m.hasher = h
	return m
}

// ResetEnvironment wipes every known key, current and legacy, and writes the
// baseline: the admin user and empty collections. Running it twice yields the
// same store.
func (m *Manager) ResetEnvironment(ctx context.Context) error {
	keys := append(storage.VersionedKeys(), storage.LegacyKeys...)
	prefixed, err := m.store.ScanKeys(ctx, kv.AnyPrefix(storage.LegacyPrefixes()...))
	if err != nil {
		return fmt.Errorf("seed: scan legacy keys: %w", err)
	}
	keys = append(keys, prefixed...)

	for _, key := range keys {
		if err := m.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("seed: remove %s: %w", key, err)
		}
	}

	users := BaselineUsers()
	for i := range users {
		hash, err := m.hasher.Hash(users[i].Password)
		if err != nil {
			return err
		}
		users[i].Password = hash
	}
	if err := m.users.ReplaceUsers(ctx, users); err != nil {
		return fmt.Errorf("seed: write users: %w", err)
	}

	for _, key := range []string{
		storage.KeyCases,
		storage.KeyMessages,
		storage.KeyNotifications,
		storage.KeyAuditLog,
		storage.KeyAgentCaseStates,
	} {
		if err := m.store.Set(ctx, key, "[]"); err != nil {
			return fmt.Errorf("seed: init %s: %w", key, err)
		}
	}
	if err := m.store.Set(ctx, storage.KeySchemaVersion, storage.SchemaVersion); err != nil {
		return fmt.Errorf("seed: write schema version: %w", err)
	}

	m.events.Publish(ctx, events.Event{Type: events.EnvironmentReset})
	return nil
}

// EnsureBaseline resets only a store that has never been initialised.
func (m *Manager) EnsureBaseline(ctx context.Context) (bool, error) {
	version, ok, err := m.store.Get(ctx, storage.KeySchemaVersion)
	if err != nil {
		return false, fmt.Errorf("seed: read schema version: %w", err)
	}
	if ok {
		if version != storage.SchemaVersion {
			return false, fmt.Errorf("seed: unsupported schema version %q", version)
		}
		return false, nil
	}
	return true, m.ResetEnvironment(ctx)
}

func (m *Manager) ListUsers(ctx context.Context) ([]auth.User, error) {
	return m.users.ListUsers(ctx)
}

// AddUser stores a test user. A seller's address is cached for the case
// wizard.
func (m *Manager) AddUser(ctx context.Context, user auth.User) (auth.User, error) {
	if user.Role == "" {
		return auth.User{}, fmt.Errorf("seed: user role required")
	}
	if user.ID == "" {
		user.ID = string(user.Role) + "-" + uuid.NewString()
	}
	hash, err := m.hasher.Hash(user.Password)
	if err != nil {
		return auth.User{}, err
	}
	user.Password = hash

	added, err := m.users.AddUser(ctx, user)
	if err != nil {
		return auth.User{}, err
	}

	if added.Role == auth.RoleSeller && strings.TrimSpace(added.Address) != "" {
		if err := m.address.Save(ctx, added.Address); err != nil {
			return auth.User{}, fmt.Errorf("seed: cache seller address: %w", err)
		}
	}

	m.events.Publish(ctx, events.Event{
		Type:    events.UserCreated,
		UserID:  added.ID,
		Payload: map[string]any{"role": string(added.Role)},
	})
	return added, nil
}

// CachedSellerAddress returns the address of the most recently added seller.
func (m *Manager) CachedSellerAddress(ctx context.Context) (string, bool, error) {
	return m.address.Load(ctx)
}
