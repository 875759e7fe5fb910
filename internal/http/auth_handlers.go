package http

import (
	"encoding/json"
	nethttp "net/http"
	"strings"
	"time"

	"go-fraud-score-dashboard/internal/config"
	"go-fraud-score-dashboard/internal/connectors/scoring"
	"go-fraud-score-dashboard/internal/session"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func decodeCredentials(r *nethttp.Request) (credentialsRequest, bool) {
	var creds credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		return creds, false
	}
	creds.Username = strings.TrimSpace(creds.Username)
	return creds, creds.Username != "" && creds.Password != ""
}

func loginHandler(client *scoring.Client, sessions *session.Manager, cfg config.Config) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		creds, ok := decodeCredentials(r)
		if !ok {
			writeError(w, nethttp.StatusBadRequest, "username and password are required")
			return
		}

		start := time.Now()
		auth, err := client.Login(r.Context(), creds.Username, creds.Password)
		recordUpstreamCall("Login", time.Since(start).Seconds(), err)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		if auth == nil || auth.Token == "" {
			writeError(w, nethttp.StatusBadGateway, "login response carried no token")
			return
		}

		username := auth.Username
		if username == "" {
			username = session.TokenUsername(auth.Token)
		}
		if username == "" {
			username = creds.Username
		}

		sStart := time.Now()
		s, err := sessions.Begin(r.Context(), auth.Token, username, auth.User)
		recordStoreQuery("SaveSession", time.Since(sStart).Seconds(), err)
		if err != nil {
			writeError(w, nethttp.StatusInternalServerError, "failed to persist session")
			return
		}

		cookie := &nethttp.Cookie{
			Name:     sessionCookieName,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: nethttp.SameSiteLaxMode,
		}
		if s.ExpiresAt != nil {
			cookie.Expires = *s.ExpiresAt
		}
		nethttp.SetCookie(w, cookie)

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"data": s,
		})
	}
}

func registerHandler(client *scoring.Client) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		creds, ok := decodeCredentials(r)
		if !ok {
			writeError(w, nethttp.StatusBadRequest, "username and password are required")
			return
		}

		start := time.Now()
		auth, err := client.Register(r.Context(), creds.Username, creds.Password)
		recordUpstreamCall("Register", time.Since(start).Seconds(), err)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}

		writeJSON(w, nethttp.StatusCreated, map[string]any{
			"data": map[string]any{
				"username":   auth.Username,
				"user":       auth.User,
				"registered": true,
			},
		})
	}
}

// logoutHandler revokes the upstream token on a best-effort basis and always
// clears the local session.
func logoutHandler(client *scoring.Client, sessions *session.Manager, _ config.Config) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, err := sessionFromRequest(r, sessions)
		if err == nil && s != nil {
			start := time.Now()
			revokeErr := client.Logout(r.Context(), s.Token)
			recordUpstreamCall("Logout", time.Since(start).Seconds(), revokeErr)
			if s.ID != "" {
				eStart := time.Now()
				eErr := sessions.End(r.Context(), s.ID)
				recordStoreQuery("DeleteSession", time.Since(eStart).Seconds(), eErr)
			}
		}

		nethttp.SetCookie(w, &nethttp.Cookie{
			Name:     sessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: nethttp.SameSiteLaxMode,
		})
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"data": map[string]any{"logged_out": true},
		})
	}
}

func sessionInfoHandler(sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s, err := sessionFromRequest(r, sessions)
		if err != nil {
			writeError(w, nethttp.StatusInternalServerError, "failed to resolve session")
			return
		}
		if s == nil {
			writeJSON(w, nethttp.StatusOK, map[string]any{
				"data": map[string]any{"authenticated": false},
			})
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]any{
			"data": map[string]any{
				"authenticated": true,
				"session":       s,
			},
		})
	}
}
