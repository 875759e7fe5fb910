// Package scoring talks to the external fraud-scoring API and reshapes its
// responses into uniform display models.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a failed upstream call with a human-readable message taken
// from the server's detail or message field when one is present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scoring api status=%d: %s", e.StatusCode, e.Message)
}

// AuthPayload is the normalized result of a login or register call.
type AuthPayload struct {
	Token    string         `json:"token"`
	Username string         `json:"username,omitempty"`
	User     map[string]any `json:"user,omitempty"`
	Raw      map[string]any `json:"raw,omitempty"`
}

// UploadOptions tune CSV upload scoring.
type UploadOptions struct {
	IncludeAllow *bool
	TopK         *int
}

// Client issues requests against the fraud-scoring API.
type Client struct {
	endpoint string
	http     *http.Client
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Score submits one canonical transaction and maps the response.
func (c *Client) Score(ctx context.Context, token string, payload map[string]any) (*ScoreResult, error) {
	raw, err := c.postJSON(ctx, "/score", token, payload)
	if err != nil {
		return nil, err
	}
	return MapScoreResult(UnwrapEnvelope(raw)), nil
}

// ScoreBatch submits a sequence of canonical transactions.
func (c *Client) ScoreBatch(ctx context.Context, token string, transactions []map[string]any) (*BatchResult, error) {
	raw, err := c.postJSON(ctx, "/score/batch", token, map[string]any{"transactions": transactions})
	if err != nil {
		return nil, err
	}
	return MapBatchResult(UnwrapEnvelope(raw)), nil
}

// ScoreUpload forwards a CSV file as multipart form data.
func (c *Client) ScoreUpload(ctx context.Context, token, filename string, file io.Reader, opts UploadOptions) (*BatchResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if opts.IncludeAllow != nil {
		if err := writer.WriteField("include_allow", strconv.FormatBool(*opts.IncludeAllow)); err != nil {
			return nil, err
		}
	}
	if opts.TopK != nil {
		if err := writer.WriteField("top_k", strconv.Itoa(*opts.TopK)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/score/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return MapBatchResult(UnwrapEnvelope(raw)), nil
}

// Health probes the upstream service; no authentication required.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return MapHealth(UnwrapEnvelope(raw)), nil
}

// Reload triggers a server-side model reload and returns the raw status,
// which may include the freshly loaded model version.
func (c *Client) Reload(ctx context.Context, token string) (map[string]any, error) {
	raw, err := c.postJSON(ctx, "/reload", token, nil)
	if err != nil {
		return nil, err
	}
	m, _ := UnwrapEnvelope(raw).(map[string]any)
	return m, nil
}

// Login exchanges credentials for a token via the password grant form.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthPayload, error) {
	form := url.Values{}
	form.Set("username", strings.TrimSpace(username))
	form.Set("password", password)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return ExtractAuthPayload(raw), nil
}

// Register creates an upstream account.
func (c *Client) Register(ctx context.Context, username, password string) (*AuthPayload, error) {
	raw, err := c.postJSON(ctx, "/auth/register", "", map[string]any{
		"username": strings.TrimSpace(username),
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	return ExtractAuthPayload(raw), nil
}

// Logout revokes the token server-side. A failed revocation is reported but
// callers typically clear the local session regardless.
func (c *Client) Logout(ctx context.Context, token string) error {
	_, err := c.postJSON(ctx, "/auth/logout", token, nil)
	return err
}

// ExtractAuthPayload locates a token and user identity across the response
// shapes different backend versions produce.
func ExtractAuthPayload(v any) *AuthPayload {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	token := firstString(m, "access_token", "token", "accessToken")
	username := firstString(m, "username")
	var user map[string]any

	for _, wrapper := range []string{"data", "result"} {
		inner, ok := m[wrapper].(map[string]any)
		if !ok {
			continue
		}
		if token == "" {
			token = firstString(inner, "access_token", "token")
		}
		if username == "" {
			username = firstString(inner, "username")
		}
		if user == nil {
			user, _ = inner["user"].(map[string]any)
		}
	}

	if user == nil {
		for _, key := range []string{"user", "profile"} {
			if inner, ok := m[key].(map[string]any); ok {
				user = inner
				break
			}
		}
	}
	if username == "" && user != nil {
		username = asString(user["username"])
	}
	if user == nil && username != "" {
		user = map[string]any{"username": username}
	}

	return &AuthPayload{Token: token, Username: username, User: user, Raw: m}
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload any) (any, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (any, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	blob, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(blob),
		}
	}

	var decoded any
	if len(bytes.TrimSpace(blob)) == 0 {
		return map[string]any{}, nil
	}
	if err := json.Unmarshal(blob, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

// extractErrorMessage prefers a server-provided detail or message field and
// falls back to a generic string.
func extractErrorMessage(blob []byte) string {
	var decoded map[string]any
	if err := json.Unmarshal(blob, &decoded); err == nil {
		if msg := firstString(decoded, "detail", "message", "error"); msg != "" {
			return msg
		}
	}
	if trimmed := strings.TrimSpace(string(blob)); trimmed != "" && len(trimmed) <= 512 {
		return trimmed
	}
	return "scoring service request failed"
}
