package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"househub/events"
)

var (
	// ErrInvalidCredentials signals wrong email or password.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrUserInactive signals a deactivated account.
	ErrUserInactive = errors.New("auth: user is deactivated")
	// ErrWeakPassword signals password doesn't meet requirements.
	ErrWeakPassword = errors.New("auth: password must be at least 8 characters")
	// ErrInvalidRole signals a role that cannot be used for the operation.
	ErrInvalidRole = errors.New("auth: invalid role")
)

// Service handles users and the session shim.
type Service struct {
	repo        Repository
	sessions    *SessionStore
	hasher      PasswordHasher
	events      events.Publisher
	idGenerator func(Role) string
	now         func() time.Time
}

// NewService creates a new authentication service.
func NewService(repo Repository, sessions *SessionStore, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Service{
		repo:        repo,
		sessions:    sessions,
		hasher:      PlainHasher{},
		events:      publisher,
		idGenerator: func(role Role) string { return string(role) + "-" + uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithHasher(h PasswordHasher) *Service {
	s.hasher = h
	return s
}

func (s *Service) WithIDGenerator(gen func(Role) string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Hasher exposes the configured password hasher.
func (s *Service) Hasher() PasswordHasher {
	return s.hasher
}

// Register creates a seller or agent account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	if len(req.Password) < 8 {
		return User{}, ErrWeakPassword
	}

	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return User{}, fmt.Errorf("auth: email and name are required")
	}

	role := Role(strings.TrimSpace(string(req.Role)))
	if role == "" {
		role = RoleSeller
	}
	if role != RoleSeller && role != RoleAgent {
		return User{}, fmt.Errorf("%w: %q cannot sign up", ErrInvalidRole, role)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.AddUser(ctx, User{
		ID:                  s.idGenerator(role),
		Email:               email,
		Password:            hash,
		Name:                name,
		Role:                role,
		Phone:               req.Phone,
		Company:             req.Company,
		AuthorizationNumber: req.AuthorizationNumber,
		PrimaryRegion:       req.PrimaryRegion,
		Specialties:         req.Specialties,
		Address:             req.Address,
		IsActive:            boolPtr(true),
		CreatedAt:           s.now().UTC(),
	})
	if err != nil {
		return User{}, err
	}

	s.events.Publish(ctx, events.Event{
		Type:    events.UserCreated,
		UserID:  user.ID,
		Payload: map[string]any{"role": string(user.Role)},
	})
	return user, nil
}

// Login matches email and password against the users collection and, on
// success, overwrites the session. A failed login leaves any existing session
// untouched.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	if !s.hasher.Verify(user.Password, req.Password) {
		return Session{}, ErrInvalidCredentials
	}
	if !user.Active() {
		return Session{}, ErrUserInactive
	}

	sess := newSession(user, s.now())
	if err := s.sessions.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("auth: save session: %w", err)
	}

	s.events.Publish(ctx, events.Event{
		Type:    events.SessionStarted,
		ActorID: user.ID,
		UserID:  user.ID,
		Payload: map[string]any{"role": string(user.Role)},
	})
	return sess, nil
}

// Logout removes the session key only; users, cases and every other record
// stay in place.
func (s *Service) Logout(ctx context.Context) error {
	prev, err := s.sessions.Load(ctx)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	if err := s.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("auth: clear session: %w", err)
	}
	if prev.UserID != "" {
		s.events.Publish(ctx, events.Event{
			Type:    events.SessionEnded,
			ActorID: prev.UserID,
			UserID:  prev.UserID,
		})
	}
	return nil
}

// Current returns the logged-in session or ErrNoSession.
func (s *Service) Current(ctx context.Context) (Session, error) {
	return s.sessions.Load(ctx)
}

// CurrentRole returns the session role, falling back to the role implied by
// path when nobody is logged in.
func (s *Service) CurrentRole(ctx context.Context, path string) (Role, error) {
	sess, err := s.sessions.Load(ctx)
	if err == nil {
		return sess.Role, nil
	}
	if !errors.Is(err, ErrNoSession) {
		return "", err
	}
	if role, ok := RoleFromPath(path); ok {
		return role, nil
	}
	return "", ErrNoSession
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUserByID retrieves user information by ID.
func (s *Service) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateUser applies the non-nil fields of upd.
func (s *Service) UpdateUser(ctx context.Context, actorID, userID string, upd UserUpdate) (User, error) {
	user, err := s.repo.UpdateUser(ctx, userID, func(u *User) error {
		if upd.Name != nil {
			u.Name = strings.TrimSpace(*upd.Name)
		}
		if upd.Email != nil {
			email := strings.TrimSpace(*upd.Email)
			if email == "" {
				return fmt.Errorf("auth: email cannot be empty")
			}
			u.Email = email
		}
		if upd.Phone != nil {
			u.Phone = *upd.Phone
		}
		if upd.Company != nil {
			u.Company = *upd.Company
		}
		if upd.PrimaryRegion != nil {
			u.PrimaryRegion = *upd.PrimaryRegion
		}
		if upd.Specialties != nil {
			u.Specialties = append([]string(nil), (*upd.Specialties)...)
		}
		if upd.Address != nil {
			u.Address = *upd.Address
		}
		if upd.IsActive != nil {
			u.IsActive = boolPtr(*upd.IsActive)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	evType := events.UserUpdated
	if upd.IsActive != nil && !*upd.IsActive {
		evType = events.UserDeactivated
	}
	s.events.Publish(ctx, events.Event{
		Type:    evType,
		ActorID: actorID,
		UserID:  user.ID,
		Payload: map[string]any{"role": string(user.Role)},
	})
	return user, nil
}

// Deactivate blocks future logins for the user.
func (s *Service) Deactivate(ctx context.Context, actorID, userID string) (User, error) {
	return s.UpdateUser(ctx, actorID, userID, UserUpdate{IsActive: boolPtr(false)})
}

// Activate re-enables a deactivated user.
func (s *Service) Activate(ctx context.Context, actorID, userID string) (User, error) {
	return s.UpdateUser(ctx, actorID, userID, UserUpdate{IsActive: boolPtr(true)})
}

// DeleteUser removes the user record only. Cascades are the caller's job.
func (s *Service) DeleteUser(ctx context.Context, userID string) (User, error) {
	return s.repo.DeleteUser(ctx, userID)
}
