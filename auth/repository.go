package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"househub/kv"
	"househub/storage"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrDuplicateEmail signals that the email is already registered.
	ErrDuplicateEmail = errors.New("auth: email already exists")
	// ErrDuplicateID signals that a user with the same id already exists.
	ErrDuplicateID = errors.New("auth: user id already exists")
)

// Repository handles data access for users.
type Repository interface {
	ListUsers(ctx context.Context) ([]User, error)
	AddUser(ctx context.Context, user User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	UpdateUser(ctx context.Context, userID string, mutate func(*User) error) (User, error)
	DeleteUser(ctx context.Context, userID string) (User, error)
	ReplaceUsers(ctx context.Context, users []User) error
}

// KVRepository implements Repository on the users collection.
type KVRepository struct {
	users *storage.Collection[User]
}

// NewRepository creates a kv-backed user repository.
func NewRepository(store kv.Store) *KVRepository {
	return &KVRepository{users: storage.NewCollection[User](store, storage.KeyUsers)}
}

// ListUsers returns users in insertion order.
func (r *KVRepository) ListUsers(ctx context.Context) ([]User, error) {
	users, err := r.users.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: list users: %w", err)
	}
	return users, nil
}

// AddUser appends a user. Both id and email must be unused.
func (r *KVRepository) AddUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		return User{}, fmt.Errorf("auth: add user: missing id")
	}
	err := r.users.Update(ctx, func(users []User) ([]User, error) {
		for _, u := range users {
			if u.ID == user.ID {
				return nil, ErrDuplicateID
			}
			if sameEmail(u.Email, user.Email) {
				return nil, ErrDuplicateEmail
			}
		}
		return append(users, user), nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, ignoring case.
func (r *KVRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if sameEmail(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// GetUserByID retrieves a user by ID.
func (r *KVRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.ID == userID {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// UpdateUser applies mutate to the stored user and persists the result.
func (r *KVRepository) UpdateUser(ctx context.Context, userID string, mutate func(*User) error) (User, error) {
	var updated User
	err := r.users.Update(ctx, func(users []User) ([]User, error) {
		idx := -1
		for i := range users {
			if users[i].ID == userID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrUserNotFound
		}
		next := users[idx]
		if err := mutate(&next); err != nil {
			return nil, err
		}
		if next.ID != userID {
			return nil, fmt.Errorf("auth: update user: id is immutable")
		}
		for i, u := range users {
			if i != idx && sameEmail(u.Email, next.Email) {
				return nil, ErrDuplicateEmail
			}
		}
		users[idx] = next
		updated = next
		return users, nil
	})
	if err != nil {
		return User{}, err
	}
	return updated, nil
}

// DeleteUser removes the user and returns the removed record.
func (r *KVRepository) DeleteUser(ctx context.Context, userID string) (User, error) {
	var removed User
	err := r.users.Update(ctx, func(users []User) ([]User, error) {
		out := users[:0]
		found := false
		for _, u := range users {
			if u.ID == userID {
				removed = u
				found = true
				continue
			}
			out = append(out, u)
		}
		if !found {
			return nil, ErrUserNotFound
		}
		return out, nil
	})
	if err != nil {
		return User{}, err
	}
	return removed, nil
}

// ReplaceUsers overwrites the whole collection.
func (r *KVRepository) ReplaceUsers(ctx context.Context, users []User) error {
	return r.users.Save(ctx, users)
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
