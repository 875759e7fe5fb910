package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-fraud-score-dashboard/internal/connectors/scoring"
)

func TestLoginHandler_SetsSessionCookie(t *testing.T) {
	token := testToken(t, time.Hour)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Fatalf("unexpected upstream path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "password" {
			t.Fatalf("expected password grant, got %q", r.PostForm.Get("grant_type"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": token})
	}))
	defer upstream.Close()

	sessions := newTestSessions()
	h := loginHandler(scoring.NewClient(upstream.URL, time.Second), sessions, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"analyst","password":"secret"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatalf("expected %s cookie to be set", sessionCookieName)
	}

	s, err := sessions.Resolve(req.Context(), sessionCookie.Value)
	if err != nil {
		t.Fatalf("failed to resolve session: %v", err)
	}
	if s == nil || s.Username != "analyst" {
		t.Fatalf("expected persisted session for analyst, got %+v", s)
	}
}

func TestLoginHandler_RequiresCredentials(t *testing.T) {
	h := loginHandler(scoring.NewClient("http://127.0.0.1:1", time.Second), newTestSessions(), testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"username":" "}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestLoginHandler_PassesThroughRejection(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"detail": "invalid credentials"})
	}))
	defer upstream.Close()

	h := loginHandler(scoring.NewClient(upstream.URL, time.Second), newTestSessions(), testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"username":"analyst","password":"wrong"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload["error"] != "invalid credentials" {
		t.Fatalf("expected upstream detail, got %v", payload["error"])
	}
}

func TestLogoutHandler_ClearsCookieAndSession(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	sessions := newTestSessions()
	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	s, err := sessions.Begin(ctx, testToken(t, time.Hour), "analyst", nil)
	if err != nil {
		t.Fatalf("failed to begin session: %v", err)
	}

	h := logoutHandler(scoring.NewClient(upstream.URL, time.Second), sessions, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: s.ID})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var cleared *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge != -1 {
		t.Fatalf("expected expired session cookie, got %+v", cleared)
	}

	resolved, err := sessions.Resolve(ctx, s.ID)
	if err != nil {
		t.Fatalf("failed to resolve session: %v", err)
	}
	if resolved != nil {
		t.Fatalf("expected session to be removed")
	}
}

func TestSessionInfoHandler_Anonymous(t *testing.T) {
	h := sessionInfoHandler(newTestSessions())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data := payload["data"].(map[string]any)
	if data["authenticated"] != false {
		t.Fatalf("expected authenticated=false, got %v", data)
	}
}

func TestRegisterHandler_CreatesAccount(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/register" {
			t.Fatalf("unexpected upstream path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"username": "analyst"})
	}))
	defer upstream.Close()

	h := registerHandler(scoring.NewClient(upstream.URL, time.Second))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register",
		strings.NewReader(`{"username":"analyst","password":"secret"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
}

func TestBackendStatusHandler_ReportsHealth(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("unexpected upstream path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "model_version": "v12"})
	}))
	defer upstream.Close()

	h := backendStatusHandler(scoring.NewClient(upstream.URL, time.Second))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status/backend", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	svc := payload["services"].(map[string]any)["scoring_api"].(map[string]any)
	if svc["ok"] != true {
		t.Fatalf("expected scoring api to be ok, got %v", svc)
	}
}

func TestReloadHandler_RequiresSession(t *testing.T) {
	h := reloadHandler(scoring.NewClient("http://127.0.0.1:1", time.Second), newTestSessions())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reload", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestReloadHandler_ReturnsReloadStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reload" {
			t.Fatalf("unexpected upstream path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "reloaded", "model_version": "v13"})
	}))
	defer upstream.Close()

	h := reloadHandler(scoring.NewClient(upstream.URL, time.Second), newTestSessions())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reload", nil)
	req.Header.Set("Authorization", "Bearer "+testToken(t, time.Hour))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	data := payload["data"].(map[string]any)
	if data["model_version"] != "v13" {
		t.Fatalf("expected reloaded model version, got %v", data)
	}
}
