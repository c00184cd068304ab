package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"househub/admin"
	"househub/agentcase"
	"househub/audit"
	"househub/auth"
	"househub/cases"
	"househub/config"
	"househub/events"
	"househub/kv"
	"househub/messaging"
	"househub/notification"
	"househub/seed"
	"househub/storage"
	"househub/views"
)

type ctxKey string

const (
	ctxKeyUserID ctxKey = "userID"
	ctxKeyRole   ctxKey = "role"
	ctxKeyName   ctxKey = "name"
	ctxKeyAgency ctxKey = "agency"
)

// Server exposes the marketplace core over HTTP.
type Server struct {
	bus           *events.Bus
	tokens        *auth.TokenIssuer
	authService   *auth.Service
	seedManager   *seed.Manager
	caseService   *cases.Service
	migrator      *cases.Migrator
	agentStates   *agentcase.Service
	messages      *messaging.Service
	notifications *notification.Service
	auditLog      *audit.Log
	views         *views.Service
	adminService  *admin.Service
	logger        *slog.Logger
}

// newServer wires every service on top of store and subscribes the event
// consumers to one bus.
func newServer(store kv.Store, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	hasher, err := auth.HasherByName(cfg.PasswordHasher)
	if err != nil {
		return nil, err
	}

	bus := events.NewBus().WithLogger(logger)
	users := auth.NewRepository(store)
	authService := auth.NewService(users, auth.NewSessionStore(store), bus).WithHasher(hasher)
	caseService := cases.NewService(cases.NewRepository(store), bus)
	agentStates := agentcase.NewService(agentcase.NewRepository(store), caseService, bus)
	messages := messaging.NewService(store, caseService, bus)
	notifications := notification.NewService(store, authService, bus)
	auditLog := audit.NewLog(store)

	notifications.Attach(bus)
	auditLog.Attach(bus)

	return &Server{
		bus:           bus,
		tokens:        auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		authService:   authService,
		seedManager:   seed.NewManager(store, users, bus).WithHasher(hasher),
		caseService:   caseService,
		migrator:      cases.NewMigrator(store, caseService),
		agentStates:   agentStates,
		messages:      messages,
		notifications: notifications,
		auditLog:      auditLog,
		views:         views.NewService(caseService, agentStates, authService).WithLogger(logger),
		adminService:  admin.NewService(authService, caseService, messages, agentStates, notifications, bus),
		logger:        logger,
	}, nil
}

// bootstrap seeds an empty store (or resets it when asked) and moves legacy
// case records into the cases collection.
func (s *Server) bootstrap(ctx context.Context, reset bool) error {
	if reset {
		if err := s.seedManager.ResetEnvironment(ctx); err != nil {
			return err
		}
		s.logger.Info("environment reset on start")
	} else {
		seeded, err := s.seedManager.EnsureBaseline(ctx)
		if err != nil {
			return err
		}
		if seeded {
			s.logger.Info("baseline seeded", "admin", seed.AdminEmail)
		}
	}

	migrated, err := s.migrator.MigrateLegacy(ctx)
	if err != nil {
		return err
	}
	if migrated > 0 {
		s.logger.Info("legacy cases migrated", "count", migrated)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.authenticated(s.handleLogout))
	mux.HandleFunc("GET /api/auth/me", s.authenticated(s.handleMe))

	mux.HandleFunc("GET /api/cases", s.authenticated(s.handleListCases))
	mux.HandleFunc("POST /api/cases", s.requireRole(s.handleCreateCase, auth.RoleSeller))
	mux.HandleFunc("GET /api/cases/{id}", s.authenticated(s.handleGetCase))
	mux.HandleFunc("GET /api/sagsnummer/{sagsnummer}", s.authenticated(s.handleGetBySagsnummer))
	mux.HandleFunc("PATCH /api/cases/{id}/status", s.requireRole(s.handleUpdateStatus, auth.RoleSeller, auth.RoleAdmin))
	mux.HandleFunc("POST /api/cases/{id}/offers", s.requireRole(s.handleSubmitOffer, auth.RoleAgent))
	mux.HandleFunc("PATCH /api/cases/{id}/offers/{offerId}", s.requireRole(s.handleDecideOffer, auth.RoleSeller))
	mux.HandleFunc("POST /api/cases/{id}/showings", s.requireRole(s.handleRegisterShowing, auth.RoleAgent))
	mux.HandleFunc("POST /api/cases/{id}/showing/book", s.requireRole(s.handleBookShowing, auth.RoleSeller))
	mux.HandleFunc("POST /api/cases/{id}/showing/complete", s.requireRole(s.handleCompleteShowing, auth.RoleSeller))
	mux.HandleFunc("POST /api/cases/{id}/reject", s.requireRole(s.handleRejectCase, auth.RoleAgent))
	mux.HandleFunc("DELETE /api/cases/{id}/reject", s.requireRole(s.handleUnrejectCase, auth.RoleAgent))
	mux.HandleFunc("GET /api/cases/{id}/messages", s.authenticated(s.handleCaseMessages))
	mux.HandleFunc("POST /api/cases/{id}/messages", s.authenticated(s.handleSendMessage))

	mux.HandleFunc("GET /api/messages", s.authenticated(s.handleInbox))
	mux.HandleFunc("POST /api/messages/{id}/read", s.authenticated(s.handleMarkMessageRead))
	mux.HandleFunc("GET /api/notifications", s.authenticated(s.handleNotifications))
	mux.HandleFunc("POST /api/notifications/{id}/read", s.authenticated(s.handleMarkNotificationRead))
	mux.HandleFunc("GET /api/dashboard", s.requireRole(s.handleDashboard, auth.RoleSeller, auth.RoleAgent))

	mux.HandleFunc("GET /api/admin/overview", s.requireRole(s.handleAdminOverview, auth.RoleAdmin))
	mux.HandleFunc("GET /api/admin/users", s.requireRole(s.handleAdminUsers, auth.RoleAdmin))
	mux.HandleFunc("POST /api/admin/users", s.requireRole(s.handleAdminAddUser, auth.RoleAdmin))
	mux.HandleFunc("PATCH /api/admin/users/{id}", s.requireRole(s.handleAdminUpdateUser, auth.RoleAdmin))
	mux.HandleFunc("DELETE /api/admin/users/{id}", s.requireRole(s.handleAdminDeleteUser, auth.RoleAdmin))
	mux.HandleFunc("POST /api/admin/users/{id}/deactivate", s.requireRole(s.handleAdminDeactivate, auth.RoleAdmin))
	mux.HandleFunc("POST /api/admin/users/{id}/activate", s.requireRole(s.handleAdminActivate, auth.RoleAdmin))
	mux.HandleFunc("GET /api/admin/audit", s.requireRole(s.handleAdminAudit, auth.RoleAdmin))
	mux.HandleFunc("POST /api/admin/reset", s.requireRole(s.handleAdminReset, auth.RoleAdmin))

	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(s.logRequests(mux))
}

// authenticated resolves the bearer token against the current session.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		sess, err := s.authService.Authenticate(r.Context(), s.tokens, strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or superseded session")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUserID, sess.UserID)
		ctx = context.WithValue(ctx, ctxKeyRole, sess.Role)
		ctx = context.WithValue(ctx, ctxKeyName, sess.Name)
		ctx = context.WithValue(ctx, ctxKeyAgency, sess.AgencyName)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) requireRole(next http.HandlerFunc, roles ...auth.Role) http.HandlerFunc {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		role := roleFromContext(r.Context())
		for _, allowed := range roles {
			if role == allowed {
				next(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, "forbidden")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func userIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserID).(string)
	return v
}

func roleFromContext(ctx context.Context) auth.Role {
	v, _ := ctx.Value(ctxKeyRole).(auth.Role)
	return v
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Forkert email eller adgangskode")
	case errors.Is(err, auth.ErrUserInactive):
		writeError(w, http.StatusForbidden, "Kontoen er deaktiveret")
	case errors.Is(err, cases.ErrNotFound),
		errors.Is(err, cases.ErrOfferNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, messaging.ErrMessageNotFound),
		errors.Is(err, notification.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrDuplicateID),
		errors.Is(err, cases.ErrInvalidState),
		errors.Is(err, messaging.ErrCaseArchived):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, cases.ErrInvalidStatus),
		errors.Is(err, agentcase.ErrInvalidStatus),
		errors.Is(err, messaging.ErrEmptyMessage),
		errors.Is(err, admin.ErrSelfDelete),
		errors.Is(err, admin.ErrSelfDeactivate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrCorrupt):
		s.logger.Error("corrupt store record", "error", err)
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "stored data is corrupt")
	default:
		s.logger.Error("request failed", "error", err)
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
