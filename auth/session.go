package auth

import (
	"context"
	"errors"

	"househub/kv"
	"househub/storage"
)

// ErrNoSession signals that nobody is logged in.
var ErrNoSession = errors.New("auth: no active session")

// SessionStore holds the single current-user record under one key.
type SessionStore struct {
	doc *storage.Document[Session]
}

func NewSessionStore(store kv.Store) *SessionStore {
	return &SessionStore{doc: storage.NewDocument[Session](store, storage.KeySession)}
}

// Load returns the current session or ErrNoSession.
func (s *SessionStore) Load(ctx context.Context) (Session, error) {
	sess, ok, err := s.doc.Load(ctx)
	if err != nil {
		return Session{}, err
	}
	if !ok || sess.UserID == "" {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

// Save overwrites the current session.
func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	return s.doc.Save(ctx, sess)
}

// Clear removes the session key and nothing else.
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.doc.Delete(ctx)
}
