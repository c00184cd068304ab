package main

import (
	"net/http"
	"strings"
	"time"

	"househub/agentcase"
	"househub/audit"
	"househub/auth"
	"househub/cases"
	"househub/messaging"
)

type loginResponse struct {
	Token     string       `json:"token"`
	Session   auth.Session `json:"session"`
	Dashboard string       `json:"dashboard"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "email and name are required")
		return
	}
	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	user.Password = ""
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.authService.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	token, err := s.tokens.Issue(sess)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Session: sess, Dashboard: auth.DashboardPath(sess.Role)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.authService.Logout(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, err := s.authService.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// handleListCases returns the caller's role view: a seller's own cases, the
// agent case list (optionally one tab) or an admin search.
func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	q := r.URL.Query()

	switch roleFromContext(ctx) {
	case auth.RoleSeller:
		list, err := s.views.SellerCases(ctx, userID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list, "total": len(list)})
	case auth.RoleAgent:
		tab := agentcase.Status(q.Get("tab"))
		if tab != "" && !tab.Valid() {
			writeError(w, http.StatusBadRequest, "unknown tab")
			return
		}
		list, err := s.views.AgentCases(ctx, userID, tab)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list, "total": len(list)})
	default:
		list, err := s.adminService.SearchCases(ctx, q.Get("q"), cases.Status(q.Get("status")))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list, "total": len(list)})
	}
}

type createCaseRequest struct {
	Address      string       `json:"address"`
	Postnummer   string       `json:"postnummer"`
	Municipality string       `json:"municipality"`
	Type         string       `json:"type"`
	Size         int          `json:"size"`
	BuildYear    int          `json:"buildYear"`
	Price        string       `json:"price"`
	PriceValue   int64        `json:"priceValue"`
	Status       cases.Status `json:"status"`
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	var req createCaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Address) == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	created, err := s.caseService.Create(r.Context(), cases.CreateParams{
		SellerID:     userIDFromContext(r.Context()),
		Address:      req.Address,
		Postnummer:   req.Postnummer,
		Municipality: req.Municipality,
		Type:         req.Type,
		Size:         req.Size,
		BuildYear:    req.BuildYear,
		Price:        req.Price,
		PriceValue:   req.PriceValue,
		Status:       req.Status,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCase(w, r, false)
	if !ok {
		return
	}
	hydrated, err := s.messages.Hydrate(r.Context(), c)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hydrated)
}

func (s *Server) handleGetBySagsnummer(w http.ResponseWriter, r *http.Request) {
	c, err := s.caseService.GetBySagsnummer(r.Context(), r.PathValue("sagsnummer"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if roleFromContext(r.Context()) == auth.RoleSeller && c.SellerID != userIDFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// loadCase fetches the {id} case. Sellers only reach their own cases; with
// ownerOnly the check applies to every non-admin role.
func (s *Server) loadCase(w http.ResponseWriter, r *http.Request, ownerOnly bool) (cases.Case, bool) {
	c, err := s.caseService.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return cases.Case{}, false
	}
	role := roleFromContext(r.Context())
	if role == auth.RoleAdmin {
		return c, true
	}
	if (role == auth.RoleSeller || ownerOnly) && c.SellerID != userIDFromContext(r.Context()) {
		writeError(w, http.StatusForbidden, "forbidden")
		return cases.Case{}, false
	}
	return c, true
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := cases.ParseStatus(req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	c, ok := s.loadCase(w, r, true)
	if !ok {
		return
	}

	// archiving from either role cascades to threads and agent states
	updated, err := s.adminService.ChangeCaseStatus(r.Context(), userIDFromContext(r.Context()), c.ID, status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type offerRequest struct {
	ExpectedPrice    string                  `json:"expectedPrice"`
	PriceValue       int64                   `json:"priceValue"`
	Commission       string                  `json:"commission"`
	CommissionValue  int64                   `json:"commissionValue"`
	BindingPeriod    string                  `json:"bindingPeriod"`
	MarketingPackage string                  `json:"marketingPackage"`
	SalesStrategy    string                  `json:"salesStrategy"`
	MarketingMethods []cases.MarketingMethod `json:"marketingMethods"`
}

type offerResponse struct {
	Offer cases.Offer     `json:"offer"`
	State agentcase.State `json:"state"`
}

func (s *Server) handleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	agentID := userIDFromContext(ctx)
	offer, state, err := s.agentStates.SubmitOffer(ctx, agentID, r.PathValue("id"), cases.OfferParams{
		AgentID:          agentID,
		AgentName:        stringFromContext(ctx, ctxKeyName),
		AgencyName:       stringFromContext(ctx, ctxKeyAgency),
		ExpectedPrice:    req.ExpectedPrice,
		PriceValue:       req.PriceValue,
		Commission:       req.Commission,
		CommissionValue:  req.CommissionValue,
		BindingPeriod:    req.BindingPeriod,
		MarketingPackage: req.MarketingPackage,
		SalesStrategy:    req.SalesStrategy,
		MarketingMethods: req.MarketingMethods,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, offerResponse{Offer: offer, State: state})
}

func (s *Server) handleDecideOffer(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := cases.OfferStatus(req.Status)
	if status != cases.OfferAccepted && status != cases.OfferRejected {
		writeError(w, http.StatusBadRequest, "status must be accepted or rejected")
		return
	}
	c, ok := s.loadCase(w, r, true)
	if !ok {
		return
	}
	updated, err := s.caseService.SetOfferStatus(r.Context(), c.ID, r.PathValue("offerId"), status, userIDFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRegisterShowing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reg, err := s.caseService.RegisterShowing(ctx, r.PathValue("id"), cases.AgentRef{
		ID:         userIDFromContext(ctx),
		Name:       stringFromContext(ctx, ctxKeyName),
		AgencyName: stringFromContext(ctx, ctxKeyAgency),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

type bookShowingRequest struct {
	Date  string `json:"date"`
	Slot  string `json:"slot"`
	Notes string `json:"notes"`
}

func (s *Server) handleBookShowing(w http.ResponseWriter, r *http.Request) {
	var req bookShowingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	c, ok := s.loadCase(w, r, true)
	if !ok {
		return
	}
	updated, err := s.caseService.BookShowing(r.Context(), c.ID, date, req.Slot, req.Notes, userIDFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleCompleteShowing(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCase(w, r, true)
	if !ok {
		return
	}
	updated, err := s.caseService.CompleteShowing(r.Context(), c.ID, userIDFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleRejectCase(w http.ResponseWriter, r *http.Request) {
	st, err := s.agentStates.Reject(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUnrejectCase(w http.ResponseWriter, r *http.Request) {
	st, err := s.agentStates.Unreject(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCaseMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := s.loadCase(w, r, false)
	if !ok {
		return
	}
	includeArchived := r.URL.Query().Get("archived") == "true"
	thread, err := s.messages.ListForCase(r.Context(), c.ID, includeArchived)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": thread})
}

type sendMessageRequest struct {
	ToUserID string `json:"toUserId"`
	ToName   string `json:"toName"`
	Message  string `json:"message"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, ok := s.loadCase(w, r, false)
	if !ok {
		return
	}
	ctx := r.Context()
	to := req.ToUserID
	if to == "" && roleFromContext(ctx) == auth.RoleAgent {
		to = c.SellerID
	}
	if to == "" {
		writeError(w, http.StatusBadRequest, "toUserId is required")
		return
	}
	msg, err := s.messages.Send(ctx, messaging.SendParams{
		CaseID:     c.ID,
		FromUserID: userIDFromContext(ctx),
		ToUserID:   to,
		FromName:   stringFromContext(ctx, ctxKeyName),
		ToName:     req.ToName,
		Message:    req.Message,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleInbox(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	inbox, err := s.messages.Inbox(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	unread, err := s.messages.UnreadCount(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": inbox, "unread": unread})
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	if err := s.messages.MarkRead(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	items, err := s.notifications.ListForUser(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	unread, err := s.notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "unread": unread})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifications.MarkRead(r.Context(), userIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)
	if roleFromContext(ctx) == auth.RoleSeller {
		dash, err := s.views.SellerDashboard(ctx, userID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dash)
		return
	}
	dash, err := s.views.AgentDashboard(ctx, userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.adminService.Overview(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.adminService.Users(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users, "total": len(users)})
}

// handleAdminAddUser creates a test user with a chosen role, admins included.
func (s *Server) handleAdminAddUser(w http.ResponseWriter, r *http.Request) {
	var user auth.User
	if err := decodeJSON(r, &user); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if user.Role != auth.RoleSeller && user.Role != auth.RoleAgent && user.Role != auth.RoleAdmin {
		writeError(w, http.StatusBadRequest, "role must be seller, agent or admin")
		return
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	added, err := s.seedManager.AddUser(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	added.Password = ""
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	var upd auth.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := s.adminService.UpdateUser(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"), upd)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	u.Password = ""
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	res, err := s.adminService.DeleteUser(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdminDeactivate(w http.ResponseWriter, r *http.Request) {
	u, err := s.adminService.DeactivateUser(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleAdminActivate(w http.ResponseWriter, r *http.Request) {
	u, err := s.adminService.ActivateUser(r.Context(), userIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.auditLog.List(r.Context(), audit.Action(r.URL.Query().Get("action")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

// handleAdminReset restores the baseline. The caller's session is wiped with
// everything else, so the response carries no token.
func (s *Server) handleAdminReset(w http.ResponseWriter, r *http.Request) {
	if err := s.seedManager.ResetEnvironment(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
