package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"househub/config"
	"househub/kv"
	"househub/seed"
)

func newTestHandler(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	cfg := &config.Config{
		Store:          config.StoreMemory,
		PasswordHasher: "plain",
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server, err := newServer(kv.NewMemoryStore(), cfg, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := server.bootstrap(context.Background(), false); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return server, server.routes()
}

func doRequest(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func login(t *testing.T, h http.Handler, email, password string) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rec, &resp)
	return resp.Token
}

func addUser(t *testing.T, h http.Handler, adminToken, id, role, company string) {
	t.Helper()
	body := `{"id":"` + id + `","email":"` + id + `@example.com","password":"12345678","name":"` + id + `","role":"` + role + `","company":"` + company + `"}`
	rec := doRequest(t, h, http.MethodPost, "/api/admin/users", adminToken, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add user %s: expected 201, got %d: %s", id, rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	_, h := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleLogin_Admin(t *testing.T) {
	_, h := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"admin@hh.dk","password":"12345678"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp loginResponse
	decodeBody(t, rec, &resp)
	if resp.Token == "" || resp.Session.Role != "admin" || resp.Dashboard != "/admin/dashboard" {
		t.Fatalf("unexpected login payload: %+v", resp)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"admin@hh.dk","password":"wrong-pass"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
	var errResp map[string]string
	decodeBody(t, rec, &errResp)
	if errResp["error"] == "" {
		t.Fatal("expected an error message")
	}

	rec = doRequest(t, h, http.MethodGet, "/api/auth/me", resp.Token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("failed login must keep the prior session, got %d", rec.Code)
	}
}

func TestHandleLogin_BadBody(t *testing.T) {
	_, h := newTestHandler(t)
	rec := doRequest(t, h, http.MethodPost, "/api/auth/login", "", `{"email":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	_, h := newTestHandler(t)

	if rec := doRequest(t, h, http.MethodGet, "/api/cases", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/api/cases", "garbage", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rec.Code)
	}

	adminToken := login(t, h, seed.AdminEmail, seed.AdminPassword)
	addUser(t, h, adminToken, "seller-1", "seller", "")
	sellerToken := login(t, h, "seller-1@example.com", "12345678")

	if rec := doRequest(t, h, http.MethodGet, "/api/cases", adminToken, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("a superseded session must be rejected, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/api/admin/overview", sellerToken, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller on admin route, got %d", rec.Code)
	}

	if rec := doRequest(t, h, http.MethodPost, "/api/auth/logout", sellerToken, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/api/auth/me", sellerToken, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	_, h := newTestHandler(t)

	adminToken := login(t, h, seed.AdminEmail, seed.AdminPassword)
	addUser(t, h, adminToken, "seller-1", "seller", "")
	addUser(t, h, adminToken, "agent-1", "agent", "Nordic Estate")

	sellerToken := login(t, h, "seller-1@example.com", "12345678")
	rec := doRequest(t, h, http.MethodPost, "/api/cases", sellerToken, `{"address":"Strandvejen 45","postnummer":"2900","priceValue":4500000}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create case: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID         string `json:"id"`
		Sagsnummer string `json:"sagsnummer"`
		SellerID   string `json:"sellerId"`
		Status     string `json:"status"`
	}
	decodeBody(t, rec, &created)
	if created.SellerID != "seller-1" || created.Status != "active" || !strings.HasPrefix(created.Sagsnummer, "HH-") {
		t.Fatalf("unexpected case: %+v", created)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/cases", sellerToken, `{"postnummer":"2900"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without address, got %d", rec.Code)
	}

	agentToken := login(t, h, "agent-1@example.com", "12345678")
	rec = doRequest(t, h, http.MethodGet, "/api/cases?tab=active", agentToken, "")
	var agentList struct {
		Items []struct {
			Case struct {
				ID string `json:"id"`
			} `json:"case"`
			AgentStatus string `json:"agentStatus"`
		} `json:"items"`
	}
	decodeBody(t, rec, &agentList)
	if len(agentList.Items) != 1 || agentList.Items[0].Case.ID != created.ID || agentList.Items[0].AgentStatus != "active" {
		t.Fatalf("unexpected agent view: %+v", agentList)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/cases/"+created.ID+"/offers", agentToken, `{"expectedPrice":"4.600.000 kr","priceValue":4600000,"commission":"45.000 kr"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit offer: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var offer offerResponse
	decodeBody(t, rec, &offer)
	if offer.Offer.AgencyName != "Nordic Estate" || offer.State.Status != "offer_submitted" {
		t.Fatalf("unexpected offer response: %+v", offer)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/cases/"+created.ID+"/messages", agentToken, `{"message":"Hvornår kan vi se boligen?"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send message: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	sellerToken = login(t, h, "seller-1@example.com", "12345678")
	rec = doRequest(t, h, http.MethodGet, "/api/notifications", sellerToken, "")
	var notes struct {
		Items []struct {
			Kind string `json:"kind"`
		} `json:"items"`
		Unread int `json:"unread"`
	}
	decodeBody(t, rec, &notes)
	if notes.Unread < 2 {
		t.Fatalf("expected offer and message notifications, got %+v", notes)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/cases/"+created.ID, sellerToken, "")
	var hydrated struct {
		Status   string `json:"status"`
		Messages []struct {
			Message string `json:"message"`
		} `json:"messages"`
	}
	decodeBody(t, rec, &hydrated)
	if hydrated.Status != "offers_received" || len(hydrated.Messages) != 1 {
		t.Fatalf("unexpected hydrated case: %+v", hydrated)
	}

	rec = doRequest(t, h, http.MethodPatch, "/api/cases/"+created.ID+"/offers/"+offer.Offer.ID, sellerToken, `{"status":"accepted"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept offer: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &hydrated)
	if hydrated.Status != "realtor_selected" {
		t.Fatalf("expected realtor_selected, got %s", hydrated.Status)
	}

	rec = doRequest(t, h, http.MethodPatch, "/api/cases/"+created.ID+"/status", sellerToken, `{"status":"sold"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodGet, "/api/cases/missing", sellerToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSellerCannotTouchOtherCases(t *testing.T) {
	_, h := newTestHandler(t)
	adminToken := login(t, h, seed.AdminEmail, seed.AdminPassword)
	addUser(t, h, adminToken, "seller-1", "seller", "")
	addUser(t, h, adminToken, "seller-2", "seller", "")

	token := login(t, h, "seller-1@example.com", "12345678")
	rec := doRequest(t, h, http.MethodPost, "/api/cases", token, `{"address":"Strandvejen 45"}`)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	other := login(t, h, "seller-2@example.com", "12345678")
	if rec := doRequest(t, h, http.MethodGet, "/api/cases/"+created.ID, other, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodPatch, "/api/cases/"+created.ID+"/status", other, `{"status":"withdrawn"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on status change, got %d", rec.Code)
	}
}

func TestAdminDeleteSellerCascades(t *testing.T) {
	server, h := newTestHandler(t)
	adminToken := login(t, h, seed.AdminEmail, seed.AdminPassword)
	addUser(t, h, adminToken, "seller-1", "seller", "")

	sellerToken := login(t, h, "seller-1@example.com", "12345678")
	rec := doRequest(t, h, http.MethodPost, "/api/cases", sellerToken, `{"address":"Strandvejen 45"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}

	adminToken = login(t, h, seed.AdminEmail, seed.AdminPassword)
	rec = doRequest(t, h, http.MethodDelete, "/api/admin/users/seller-1", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		CasesRemoved int `json:"casesRemoved"`
	}
	decodeBody(t, rec, &res)
	if res.CasesRemoved != 1 {
		t.Fatalf("expected one case removed, got %d", res.CasesRemoved)
	}

	remaining, err := server.views.SellerCases(context.Background(), "seller-1")
	if err != nil || len(remaining) != 0 {
		t.Fatalf("expected empty seller view, got %v err=%v", remaining, err)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/admin/audit?action=USER_DELETED", adminToken, "")
	var entries struct {
		Items []struct {
			UserID  string `json:"userId"`
			ActorID string `json:"adminId"`
		} `json:"items"`
	}
	decodeBody(t, rec, &entries)
	if len(entries.Items) != 1 || entries.Items[0].UserID != "seller-1" || entries.Items[0].ActorID != seed.AdminID {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}

	rec = doRequest(t, h, http.MethodDelete, "/api/admin/users/"+seed.AdminID, adminToken, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on self delete, got %d", rec.Code)
	}
}

func TestAdminDeactivateBlocksLogin(t *testing.T) {
	_, h := newTestHandler(t)
	adminToken := login(t, h, seed.AdminEmail, seed.AdminPassword)
	addUser(t, h, adminToken, "agent-1", "agent", "")

	rec := doRequest(t, h, http.MethodPatch, "/api/admin/users/agent-1", adminToken, `{"company":"Nordic Estate"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}
	var updated struct {
		Company  string `json:"company"`
		Password string `json:"password"`
	}
	decodeBody(t, rec, &updated)
	if updated.Company != "Nordic Estate" || updated.Password != "" {
		t.Fatalf("unexpected update response: %+v", updated)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/admin/users/agent-1/deactivate", adminToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"agent-1@example.com","password":"12345678"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for deactivated user, got %d", rec.Code)
	}
}

func TestSellerArchiveCascades(t *testing.T) {
	server, h := newTestHandler(t)
	ctx := context.Background()
	adminToken := login(t, h, seed.AdminEmail, seed.AdminPassword)
	addUser(t, h, adminToken, "seller-1", "seller", "")
	addUser(t, h, adminToken, "agent-1", "agent", "")

	sellerToken := login(t, h, "seller-1@example.com", "12345678")
	rec := doRequest(t, h, http.MethodPost, "/api/cases", sellerToken, `{"address":"Strandvejen 45"}`)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	agentToken := login(t, h, "agent-1@example.com", "12345678")
	if rec := doRequest(t, h, http.MethodPost, "/api/cases/"+created.ID+"/reject", agentToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doRequest(t, h, http.MethodPost, "/api/cases/"+created.ID+"/messages", agentToken, `{"message":"Er boligen stadig til salg?"}`); rec.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	sellerToken = login(t, h, "seller-1@example.com", "12345678")
	rec = doRequest(t, h, http.MethodPatch, "/api/cases/"+created.ID+"/status", sellerToken, `{"status":"archived"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	open, err := server.messages.ListForCase(ctx, created.ID, false)
	if err != nil || len(open) != 0 {
		t.Fatalf("expected thread archived, got %d open messages err=%v", len(open), err)
	}
	st, err := server.agentStates.Get(ctx, "agent-1", created.ID)
	if err != nil || st.Status != "archived" {
		t.Fatalf("expected agent state archived, got %+v err=%v", st, err)
	}
}

func TestAdminCannotDeactivateSelf(t *testing.T) {
	_, h := newTestHandler(t)
	adminToken := login(t, h, seed.AdminEmail, seed.AdminPassword)

	rec := doRequest(t, h, http.MethodPatch, "/api/admin/users/"+seed.AdminID, adminToken, `{"isActive":false}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self deactivation via update, got %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodPost, "/api/admin/users/"+seed.AdminID+"/deactivate", adminToken, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self deactivation, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/api/auth/me", adminToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("admin must stay signed in, got %d", rec.Code)
	}
}

func TestAdminReset(t *testing.T) {
	_, h := newTestHandler(t)
	adminToken := login(t, h, seed.AdminEmail, seed.AdminPassword)
	addUser(t, h, adminToken, "seller-1", "seller", "")

	if rec := doRequest(t, h, http.MethodPost, "/api/admin/reset", adminToken, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("reset: expected 204, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/api/auth/me", adminToken, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reset must clear the session, got %d", rec.Code)
	}

	adminToken = login(t, h, seed.AdminEmail, seed.AdminPassword)
	rec := doRequest(t, h, http.MethodGet, "/api/admin/users", adminToken, "")
	var users struct {
		Total int `json:"total"`
	}
	decodeBody(t, rec, &users)
	if users.Total != 1 {
		t.Fatalf("expected baseline of one user, got %d", users.Total)
	}
}
