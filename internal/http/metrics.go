package http

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var (
	appStartedAtUnix = time.Now().Unix()
	inFlightRequests int64
	metricsMu        sync.Mutex
	httpSeries       = map[httpMetricKey]*httpMetricSeries{}
	upstreamSeries   = map[upstreamMetricKey]*upstreamMetricSeries{}
	storeSeries      = map[storeMetricKey]*storeMetricSeries{}
	scoreRunSeries   = map[scoreRunMetricKey]*scoreRunMetricSeries{}
)

type httpMetricKey struct {
	Method string
	Path   string
	Status string
}

type httpMetricSeries struct {
	Count              uint64
	DurationSecondsSum float64
}

type upstreamMetricKey struct {
	Operation string
}

type upstreamMetricSeries struct {
	Count              uint64
	Errors             uint64
	DurationSecondsSum float64
}

type storeMetricKey struct {
	Operation string
}

type storeMetricSeries struct {
	Count              uint64
	Errors             uint64
	DurationSecondsSum float64
}

type scoreRunMetricKey struct {
	Kind   string
	Status string
}

type scoreRunMetricSeries struct {
	Count uint64
}

func metricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		metricsMu.Lock()
		httpKeys := make([]httpMetricKey, 0, len(httpSeries))
		for k := range httpSeries {
			httpKeys = append(httpKeys, k)
		}
		sort.Slice(httpKeys, func(i, j int) bool {
			if httpKeys[i].Method != httpKeys[j].Method {
				return httpKeys[i].Method < httpKeys[j].Method
			}
			if httpKeys[i].Path != httpKeys[j].Path {
				return httpKeys[i].Path < httpKeys[j].Path
			}
			return httpKeys[i].Status < httpKeys[j].Status
		})
		httpSnapshot := make([]struct {
			Key    httpMetricKey
			Series httpMetricSeries
		}, 0, len(httpKeys))
		for _, k := range httpKeys {
			httpSnapshot = append(httpSnapshot, struct {
				Key    httpMetricKey
				Series httpMetricSeries
			}{Key: k, Series: *httpSeries[k]})
		}

		upstreamKeys := make([]upstreamMetricKey, 0, len(upstreamSeries))
		for k := range upstreamSeries {
			upstreamKeys = append(upstreamKeys, k)
		}
		sort.Slice(upstreamKeys, func(i, j int) bool { return upstreamKeys[i].Operation < upstreamKeys[j].Operation })
		upstreamSnapshot := make([]struct {
			Key    upstreamMetricKey
			Series upstreamMetricSeries
		}, 0, len(upstreamKeys))
		for _, k := range upstreamKeys {
			upstreamSnapshot = append(upstreamSnapshot, struct {
				Key    upstreamMetricKey
				Series upstreamMetricSeries
			}{Key: k, Series: *upstreamSeries[k]})
		}

		storeKeys := make([]storeMetricKey, 0, len(storeSeries))
		for k := range storeSeries {
			storeKeys = append(storeKeys, k)
		}
		sort.Slice(storeKeys, func(i, j int) bool { return storeKeys[i].Operation < storeKeys[j].Operation })
		storeSnapshot := make([]struct {
			Key    storeMetricKey
			Series storeMetricSeries
		}, 0, len(storeKeys))
		for _, k := range storeKeys {
			storeSnapshot = append(storeSnapshot, struct {
				Key    storeMetricKey
				Series storeMetricSeries
			}{Key: k, Series: *storeSeries[k]})
		}

		runKeys := make([]scoreRunMetricKey, 0, len(scoreRunSeries))
		for k := range scoreRunSeries {
			runKeys = append(runKeys, k)
		}
		sort.Slice(runKeys, func(i, j int) bool {
			if runKeys[i].Kind != runKeys[j].Kind {
				return runKeys[i].Kind < runKeys[j].Kind
			}
			return runKeys[i].Status < runKeys[j].Status
		})
		runSnapshot := make([]struct {
			Key    scoreRunMetricKey
			Series scoreRunMetricSeries
		}, 0, len(runKeys))
		for _, k := range runKeys {
			runSnapshot = append(runSnapshot, struct {
				Key    scoreRunMetricKey
				Series scoreRunMetricSeries
			}{Key: k, Series: *scoreRunSeries[k]})
		}
		metricsMu.Unlock()

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_http_requests_total Total HTTP requests handled by this app.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_http_requests_total counter")
		for _, it := range httpSnapshot {
			_, _ = fmt.Fprintf(w, "fraud_dashboard_http_requests_total{method=%q,path=%q,status=%q} %d\n",
				escapeLabel(it.Key.Method), escapeLabel(it.Key.Path), escapeLabel(it.Key.Status), it.Series.Count)
		}

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_http_request_duration_seconds_sum Total duration in seconds for observed requests.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_http_request_duration_seconds_sum counter")
		for _, it := range httpSnapshot {
			_, _ = fmt.Fprintf(w, "fraud_dashboard_http_request_duration_seconds_sum{method=%q,path=%q,status=%q} %.9f\n",
				escapeLabel(it.Key.Method), escapeLabel(it.Key.Path), escapeLabel(it.Key.Status), it.Series.DurationSecondsSum)
		}

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_upstream_requests_total Requests issued to the scoring API.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_upstream_requests_total counter")
		for _, it := range upstreamSnapshot {
			_, _ = fmt.Fprintf(w, "fraud_dashboard_upstream_requests_total{operation=%q} %d\n",
				escapeLabel(it.Key.Operation), it.Series.Count)
		}

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_upstream_errors_total Failed requests to the scoring API.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_upstream_errors_total counter")
		for _, it := range upstreamSnapshot {
			_, _ = fmt.Fprintf(w, "fraud_dashboard_upstream_errors_total{operation=%q} %d\n",
				escapeLabel(it.Key.Operation), it.Series.Errors)
		}

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_upstream_duration_seconds_sum Total duration in seconds for scoring API requests.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_upstream_duration_seconds_sum counter")
		for _, it := range upstreamSnapshot {
			_, _ = fmt.Fprintf(w, "fraud_dashboard_upstream_duration_seconds_sum{operation=%q} %.9f\n",
				escapeLabel(it.Key.Operation), it.Series.DurationSecondsSum)
		}

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_store_queries_total Session store queries.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_store_queries_total counter")
		for _, it := range storeSnapshot {
			_, _ = fmt.Fprintf(w, "fraud_dashboard_store_queries_total{operation=%q} %d\n",
				escapeLabel(it.Key.Operation), it.Series.Count)
		}

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_store_errors_total Failed session store queries.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_store_errors_total counter")
		for _, it := range storeSnapshot {
			_, _ = fmt.Fprintf(w, "fraud_dashboard_store_errors_total{operation=%q} %d\n",
				escapeLabel(it.Key.Operation), it.Series.Errors)
		}

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_score_runs_total Scoring submissions by kind and outcome.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_score_runs_total counter")
		for _, it := range runSnapshot {
			_, _ = fmt.Fprintf(w, "fraud_dashboard_score_runs_total{kind=%q,status=%q} %d\n",
				escapeLabel(it.Key.Kind), escapeLabel(it.Key.Status), it.Series.Count)
		}

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_http_in_flight_requests In-flight HTTP requests currently served by this app.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_http_in_flight_requests gauge")
		_, _ = fmt.Fprintf(w, "fraud_dashboard_http_in_flight_requests %d\n", atomic.LoadInt64(&inFlightRequests))

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_app_uptime_seconds Seconds since process start.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_app_uptime_seconds gauge")
		_, _ = fmt.Fprintf(w, "fraud_dashboard_app_uptime_seconds %d\n", time.Now().Unix()-appStartedAtUnix)

		_, _ = fmt.Fprintln(w, "# HELP fraud_dashboard_goroutines Current number of goroutines.")
		_, _ = fmt.Fprintln(w, "# TYPE fraud_dashboard_goroutines gauge")
		_, _ = fmt.Fprintf(w, "fraud_dashboard_goroutines %d\n", runtime.NumGoroutine())
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

func observabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&inFlightRequests, 1)
		defer atomic.AddInt64(&inFlightRequests, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		recordHTTPMetric(r.Method, r.URL.Path, rec.status, time.Since(start).Seconds())
	})
}

func recordHTTPMetric(method, path string, status int, durationSeconds float64) {
	key := httpMetricKey{
		Method: method,
		Path:   path,
		Status: fmt.Sprintf("%d", status),
	}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := httpSeries[key]
	if !ok {
		row = &httpMetricSeries{}
		httpSeries[key] = row
	}
	row.Count++
	row.DurationSecondsSum += durationSeconds
}

func recordUpstreamCall(operation string, durationSeconds float64, err error) {
	if operation == "" {
		return
	}
	key := upstreamMetricKey{Operation: operation}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := upstreamSeries[key]
	if !ok {
		row = &upstreamMetricSeries{}
		upstreamSeries[key] = row
	}
	row.Count++
	row.DurationSecondsSum += durationSeconds
	if err != nil {
		row.Errors++
	}
}

func recordStoreQuery(operation string, durationSeconds float64, err error) {
	if operation == "" {
		return
	}
	key := storeMetricKey{Operation: operation}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := storeSeries[key]
	if !ok {
		row = &storeMetricSeries{}
		storeSeries[key] = row
	}
	row.Count++
	row.DurationSecondsSum += durationSeconds
	if err != nil {
		row.Errors++
	}
}

func recordScoreRun(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	key := scoreRunMetricKey{Kind: kind, Status: status}
	metricsMu.Lock()
	defer metricsMu.Unlock()
	row, ok := scoreRunSeries[key]
	if !ok {
		row = &scoreRunMetricSeries{}
		scoreRunSeries[key] = row
	}
	row.Count++
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}
