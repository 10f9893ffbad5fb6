// Package api exposes the typed outputs of the data layer over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/manifest-network/lens/common"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/metrics"
)

// normalizeEndpoint removes unique identifiers from the URL so Prometheus
// metrics group by route rather than by entity. Hashes and heights are the
// only parametrized segments; both are either long or all-digit.
func normalizeEndpoint(url string) string {
	els := strings.Split(url, "/")
	nels := make([]string, 0, len(els))
	for _, e := range els {
		isTooLong := len(e) >= 32
		isInt := len(e) > 0 && strings.IndexFunc(e, func(c rune) bool { return c < '0' || c > '9' }) == -1
		if isTooLong || isInt {
			nels = append(nels, "*")
		} else {
			nels = append(nels, e)
		}
	}
	return strings.Join(nels, "/")
}

// statusRecorder captures the final status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware assigns each request an id, logs its start and end,
// and records count and latency per normalized endpoint. Outermost
// middleware, so it sees the final status code.
func MetricsMiddleware(m metrics.RequestMetrics, logger *log.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.New()
			logger.Debug("starting request",
				"endpoint", r.URL.Path,
				"request_id", requestID,
			)
			t := time.Now()
			metricName := normalizeEndpoint(r.URL.Path)
			timer := m.RequestTimer(metricName)

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(
				context.WithValue(r.Context(), common.RequestIDContextKey, requestID),
			))

			latency := time.Since(t)
			logger.Info("ending request",
				"query_path", r.URL.Path,
				"query_params", r.URL.RawQuery,
				"request_id", requestID,
				"status", recorder.status,
				"latency", latency,
			)
			m.RequestCounter(metricName, strconv.Itoa(recorder.status)).Inc()
			timer.ObserveDuration()
		})
	}
}

// CorsMiddleware allows cross-origin GETs. The surface is read-only; no
// other method is ever allowed.
func CorsMiddleware(next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(next)
}
