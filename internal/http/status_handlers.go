package http

import (
	"context"
	nethttp "net/http"
	"time"

	"go-fraud-score-dashboard/internal/connectors/scoring"
	"go-fraud-score-dashboard/internal/session"
)

func backendStatusHandler(client *scoring.Client) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
		defer cancel()

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"generated_at": time.Now().UTC(),
			"services": map[string]any{
				"scoring_api": scoringStatus(ctx, client),
			},
		})
	}
}

func scoringStatus(ctx context.Context, client *scoring.Client) map[string]any {
	if client == nil || !client.Enabled() {
		return map[string]any{"enabled": false, "ok": false, "error": "scoring api integration disabled"}
	}

	start := time.Now()
	health, err := client.Health(ctx)
	recordUpstreamCall("Health", time.Since(start).Seconds(), err)
	if err != nil {
		return map[string]any{"enabled": true, "ok": false, "error": err.Error()}
	}

	return map[string]any{
		"enabled": true,
		"ok":      true,
		"health":  health,
	}
}

// reloadHandler asks the upstream service to reload its model registry. The
// freshly reported version is passed through when present.
func reloadHandler(client *scoring.Client, sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s := requireSession(w, r, sessions)
		if s == nil {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		start := time.Now()
		status, err := client.Reload(ctx, s.Token)
		recordUpstreamCall("Reload", time.Since(start).Seconds(), err)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"data": status,
		})
	}
}
