package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cuemby/hardwared/pkg/errs"
	"github.com/cuemby/hardwared/pkg/log"
	"github.com/cuemby/hardwared/pkg/metrics"
)

// errorEnvelope is the spec §6 error body: {"error": "<message>"}.
type errorEnvelope struct {
	Error string `json:"error"`
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("api: encode response", err)
	}
}

// writeError translates err into the spec §6/§7 error envelope and HTTP
// status, defaulting unrecognized errors to 500 with a generic message
// (the Unhandled kind is never echoed back verbatim to the caller).
func writeError(w http.ResponseWriter, err error) {
	kind := errs.KindOf(err)
	status := kind.HTTPStatus()
	msg := err.Error()
	if kind == errs.KindUnhandled {
		log.Errorf("api: unhandled error", err)
		msg = "an internal error occurred"
	}
	writeJSON(w, status, errorEnvelope{Error: msg})
}

// statusRecorder captures the status code written so the logging/metrics
// middleware can observe it after the handler returns.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestMetricsMiddleware records APIRequestsTotal and
// APIRequestDuration for every request, following the teacher's
// request-instrumentation idiom in pkg/metrics.
func RequestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := metrics.NewTimer()

		next.ServeHTTP(rec, r)

		timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)
		metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

// RequestLoggingMiddleware logs each request's method, path, and final
// status at info level, in the teacher's structured zerolog idiom.
func RequestLoggingMiddleware(next http.Handler) http.Handler {
	logger := log.WithComponent("api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Msg("request")
	})
}
