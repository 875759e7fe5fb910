package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestClientScore_SendsBearerAndMapsResponse(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/score" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"transaction_seq": 20240001,
			"score": 0.873,
			"decision": "review",
			"threshold_low": 0.35,
			"threshold_high": 0.8,
			"model_version": "v12",
			"reasons": [{"feature": "velocity_24h", "delta_score": 0.12}]
		}`))
	})

	result, err := client.Score(context.Background(), "tok", map[string]any{"transaction_seq": float64(20240001)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("expected JSON content type, got %q", gotContentType)
	}
	if gotBody["transaction_seq"] != float64(20240001) {
		t.Fatalf("expected payload forwarded, got %v", gotBody)
	}
	if result.Score == nil || *result.Score != 0.873 {
		t.Fatalf("expected score mapped, got %v", result.Score)
	}
	if result.Decision != "review" || len(result.Reasons) != 1 {
		t.Fatalf("unexpected mapped result: %+v", result)
	}
}

func TestClientScoreBatch_WrapsTransactions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		rows, ok := body["transactions"].([]any)
		if !ok || len(rows) != 2 {
			t.Fatalf("expected transactions wrapper with 2 rows, got %v", body)
		}
		_, _ = w.Write([]byte(`{"count": 2, "results": [{"score": 0.1}, {"score": 0.9}]}`))
	})

	result, err := client.ScoreBatch(context.Background(), "tok", []map[string]any{
		{"transaction_seq": float64(1)},
		{"transaction_seq": float64(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 2 || len(result.Results) != 2 {
		t.Fatalf("unexpected batch result: %+v", result)
	}
}

func TestClientScoreUpload_MultipartFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart: %v", err)
		}
		if r.FormValue("include_allow") != "false" {
			t.Fatalf("expected include_allow=false, got %q", r.FormValue("include_allow"))
		}
		if r.FormValue("top_k") != "5" {
			t.Fatalf("expected top_k=5, got %q", r.FormValue("top_k"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("expected file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "batch.csv" {
			t.Fatalf("expected filename preserved, got %q", header.Filename)
		}
		_, _ = w.Write([]byte(`{"count": 0, "results": []}`))
	})

	includeAllow := false
	topK := 5
	result, err := client.ScoreUpload(
		context.Background(),
		"tok",
		"batch.csv",
		strings.NewReader("transaction_seq\n1\n"),
		UploadOptions{IncludeAllow: &includeAllow, TopK: &topK},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Count != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientErrorMessageExtraction(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": "transaction_seq is required"}`))
	})

	_, err := client.Score(context.Background(), "tok", map[string]any{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "transaction_seq is required" {
		t.Fatalf("expected detail message, got %q", apiErr.Message)
	}
}

func TestClientErrorMessageFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Score(context.Background(), "tok", map[string]any{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "scoring service request failed" {
		t.Fatalf("expected generic fallback, got %q", apiErr.Message)
	}
}

func TestClientLogin_FormEncodedPasswordGrant(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			t.Fatalf("expected form encoding, got %q", r.Header.Get("Content-Type"))
		}
		if r.PostFormValue("grant_type") != "password" {
			t.Fatalf("expected password grant, got %q", r.PostFormValue("grant_type"))
		}
		if r.PostFormValue("username") != "nhan" {
			t.Fatalf("expected trimmed username, got %q", r.PostFormValue("username"))
		}
		_, _ = w.Write([]byte(`{"access_token": "tok", "token_type": "bearer", "username": "nhan"}`))
	})

	payload, err := client.Login(context.Background(), " nhan ", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Token != "tok" || payload.Username != "nhan" {
		t.Fatalf("unexpected auth payload: %+v", payload)
	}
}

func TestClientHealth_MapsThresholds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok", "model_version": "v12", "threshold_low": 0.35, "threshold_high": 0.8}`))
	})

	health, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if health.Status != "ok" || health.ModelVersion != "v12" {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.ThresholdLow == nil || *health.ThresholdLow != 0.35 {
		t.Fatalf("expected threshold mapped, got %v", health.ThresholdLow)
	}
}
