package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tinychef/UserData/internal/metrics"
)

// Metrics returns a middleware that counts requests and observes their
// latency on reg, labelled by method and chi route pattern.
func Metrics(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := routePattern(r)
			reg.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			reg.HTTPDurationSec.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
