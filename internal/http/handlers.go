package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-fraud-score-dashboard/internal/config"
	"go-fraud-score-dashboard/internal/connectors/scoring"
	"go-fraud-score-dashboard/internal/export"
	"go-fraud-score-dashboard/internal/session"
	"go-fraud-score-dashboard/internal/txn"
)

const sessionCookieName = "fsd_session"

type batchScoreRequest struct {
	Transactions []map[string]any `json:"transactions"`
}

// sessionFromRequest resolves the caller's session. A Bearer token wins over
// the session cookie so API clients can skip the login flow entirely.
func sessionFromRequest(r *nethttp.Request, sessions *session.Manager) (*session.Session, error) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if !session.TokenUsable(token, time.Now()) {
			return nil, nil
		}
		return &session.Session{
			Token:    token,
			Username: session.TokenUsername(token),
		}, nil
	}

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil
	}
	start := time.Now()
	s, err := sessions.Resolve(r.Context(), cookie.Value)
	recordStoreQuery("ResolveSession", time.Since(start).Seconds(), err)
	return s, err
}

// requireSession writes a 401 and returns nil when the caller has no usable
// session.
func requireSession(w nethttp.ResponseWriter, r *nethttp.Request, sessions *session.Manager) *session.Session {
	s, err := sessionFromRequest(r, sessions)
	if err != nil {
		writeError(w, nethttp.StatusInternalServerError, "failed to resolve session")
		return nil
	}
	if s == nil {
		writeError(w, nethttp.StatusUnauthorized, "authentication required")
		return nil
	}
	return s
}

// writeUpstreamError translates a scoring API failure into a response. Known
// upstream statuses pass through with the server-provided message; transport
// errors become a 502.
func writeUpstreamError(w nethttp.ResponseWriter, err error) {
	var apiErr *scoring.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = nethttp.StatusBadGateway
		}
		writeError(w, status, apiErr.Message)
		return
	}
	writeError(w, nethttp.StatusBadGateway, "scoring service unreachable")
}

func scoreHandler(client *scoring.Client, sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s := requireSession(w, r, sessions)
		if s == nil {
			return
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, nethttp.StatusBadRequest, "invalid JSON body")
			return
		}

		payload := txn.NormalizePayload(body)
		if len(payload) == 0 {
			writeError(w, nethttp.StatusBadRequest, "transaction has no usable fields")
			return
		}

		start := time.Now()
		result, err := client.Score(r.Context(), s.Token, payload)
		recordUpstreamCall("Score", time.Since(start).Seconds(), err)
		recordScoreRun("single", err)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}
		if result == nil {
			writeError(w, nethttp.StatusBadGateway, "scoring service returned an unexpected shape")
			return
		}

		if s.Username != "" {
			hStart := time.Now()
			hErr := sessions.RecordScore(r.Context(), s.Username, payload, result.Raw)
			recordStoreQuery("AppendHistory", time.Since(hStart).Seconds(), hErr)
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"decision_meta":   scoring.ResolveDecision(result.Decision),
				"formatted_score": scoring.FormatScore(result.Score),
			},
			"data": result,
		})
	}
}

func scoreBatchHandler(client *scoring.Client, sessions *session.Manager, cfg config.Config) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s := requireSession(w, r, sessions)
		if s == nil {
			return
		}

		records, err := decodeBatchBody(r.Body)
		if err != nil {
			writeError(w, nethttp.StatusBadRequest, "invalid JSON body")
			return
		}

		transactions := txn.NormalizeBatch(records)
		if len(transactions) == 0 {
			writeError(w, nethttp.StatusBadRequest, "no usable transactions in request")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.UploadTimeout)
		defer cancel()

		start := time.Now()
		result, err := client.ScoreBatch(ctx, s.Token, transactions)
		recordUpstreamCall("ScoreBatch", time.Since(start).Seconds(), err)
		recordScoreRun("batch", err)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"submitted": len(transactions),
				"count":     result.Count,
			},
			"data": result,
		})
	}
}

// decodeBatchBody accepts both the wrapped {"transactions": [...]} shape and
// a bare JSON array.
func decodeBatchBody(body io.Reader) ([]map[string]any, error) {
	blob, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(blob))
	if strings.HasPrefix(trimmed, "[") {
		var records []map[string]any
		if err := json.Unmarshal(blob, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var req batchScoreRequest
	if err := json.Unmarshal(blob, &req); err != nil {
		return nil, err
	}
	return req.Transactions, nil
}

func scoreUploadHandler(client *scoring.Client, sessions *session.Manager, cfg config.Config) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s := requireSession(w, r, sessions)
		if s == nil {
			return
		}

		r.Body = nethttp.MaxBytesReader(w, r.Body, cfg.UploadMaxBytes)
		if err := r.ParseMultipartForm(cfg.UploadMaxBytes); err != nil {
			writeError(w, nethttp.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, nethttp.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
			writeError(w, nethttp.StatusBadRequest, "only .csv files are accepted")
			return
		}

		blob, err := io.ReadAll(file)
		if err != nil {
			writeError(w, nethttp.StatusBadRequest, "failed to read uploaded file")
			return
		}
		if missing := missingUploadColumns(blob); len(missing) > 0 {
			writeJSON(w, nethttp.StatusBadRequest, map[string]any{
				"error":           "uploaded CSV is missing required columns",
				"missing_columns": missing,
			})
			return
		}

		opts := uploadOptionsFromForm(r, cfg)

		ctx, cancel := context.WithTimeout(r.Context(), cfg.UploadTimeout)
		defer cancel()

		start := time.Now()
		result, err := client.ScoreUpload(ctx, s.Token, header.Filename, strings.NewReader(string(blob)), opts)
		recordUpstreamCall("ScoreUpload", time.Since(start).Seconds(), err)
		recordScoreRun("upload", err)
		if err != nil {
			writeUpstreamError(w, err)
			return
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{
				"filename": header.Filename,
				"count":    result.Count,
			},
			"data": result,
		})
	}
}

// missingUploadColumns checks the CSV header before any bytes are sent
// upstream, so a malformed file fails fast with a useful message.
func missingUploadColumns(blob []byte) []string {
	reader := csv.NewReader(strings.NewReader(string(blob)))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return []string{"(unreadable header row)"}
	}
	return txn.MissingCSVColumns(header)
}

func uploadOptionsFromForm(r *nethttp.Request, cfg config.Config) scoring.UploadOptions {
	includeAllow := cfg.DefaultIncludeAllow
	if v := r.FormValue("include_allow"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			includeAllow = parsed
		}
	}
	topK := cfg.DefaultTopK
	if v := r.FormValue("top_k"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			topK = parsed
		}
	}
	return scoring.UploadOptions{IncludeAllow: &includeAllow, TopK: &topK}
}

func historyHandler(sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s := requireSession(w, r, sessions)
		if s == nil {
			return
		}
		if s.Username == "" {
			writeJSON(w, nethttp.StatusOK, map[string]any{
				"meta": map[string]any{"count": 0},
				"data": []any{},
			})
			return
		}

		start := time.Now()
		entries, err := sessions.History(r.Context(), s.Username)
		recordStoreQuery("ListHistory", time.Since(start).Seconds(), err)
		if err != nil {
			writeError(w, nethttp.StatusInternalServerError, "failed to fetch history")
			return
		}

		items := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			item := map[string]any{
				"id":         entry.ID,
				"payload":    entry.Payload,
				"created_at": entry.CreatedAt,
			}
			if result := scoring.MapScoreResult(scoring.UnwrapEnvelope(entry.Result)); result != nil {
				item["result"] = result
				item["decision_meta"] = scoring.ResolveDecision(result.Decision)
				item["formatted_score"] = scoring.FormatScore(result.Score)
			}
			items = append(items, item)
		}

		writeJSON(w, nethttp.StatusOK, map[string]any{
			"meta": map[string]any{"count": len(items)},
			"data": items,
		})
	}
}

func exportBatchHandler(sessions *session.Manager) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		s := requireSession(w, r, sessions)
		if s == nil {
			return
		}

		var batch scoring.BatchResult
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			writeError(w, nethttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(batch.Results) == 0 {
			writeError(w, nethttp.StatusBadRequest, "nothing to export")
			return
		}

		format := strings.ToLower(r.URL.Query().Get("format"))
		stamp := time.Now().Format("20060102-150405")
		switch format {
		case "", "xlsx":
			blob, err := export.BatchXLSX(&batch)
			if err != nil {
				writeError(w, nethttp.StatusInternalServerError, "failed to build workbook")
				return
			}
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scores-"+stamp+".xlsx"))
			_, _ = w.Write(blob)
		case "csv":
			blob, err := export.BatchCSV(&batch)
			if err != nil {
				writeError(w, nethttp.StatusInternalServerError, "failed to build CSV")
				return
			}
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "scores-"+stamp+".csv"))
			_, _ = w.Write(blob)
		default:
			writeError(w, nethttp.StatusBadRequest, "unsupported format: "+format)
		}
	}
}

func sampleTransactionHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	sample := map[string]any{
		"transaction_seq":           9876543,
		"user_seq":                  220045,
		"deposit_amount":            3185.75,
		"receiving_country":         "SG",
		"country_code":              "SG",
		"id_type":                   "Passport",
		"stay_qualify":              "Resident",
		"visa_expire_date":          "2025-12-31",
		"user_name":                 "LE THANH NHAN",
		"sender_name":               "LE THANH",
		"recipient_name":            "TRAN THI HOA",
		"autodebit_account":         "1234567890",
		"invite_code":               "INV123",
		"payment_method":            "Card",
		"create_dt":                 time.Now().Format("2006-01-02T15:04"),
		"register_date":             "2023-08-12",
		"first_transaction_date":    "2023-08-13",
		"birth_date":                "1990-02-05",
		"recheck_date":              "2024-05-01",
		"face_pin_date":             "2024-06-01",
		"transaction_count_24hour":  2,
		"transaction_amount_24hour": 4200.5,
		"transaction_count_1week":   6,
		"transaction_amount_1week":  11850.75,
		"transaction_count_1month":  18,
		"transaction_amount_1month": 34890.4,
	}
	writeJSON(w, nethttp.StatusOK, map[string]any{"data": sample})
}
