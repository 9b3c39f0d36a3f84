package webservice

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/ohowland/cgc_reserve/internal/pkg/optimize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reserve_solves_total",
		Help: "Dispatch solves by outcome.",
	}, []string{"status"})

	solveSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reserve_solve_duration_seconds",
		Help:    "Wall time of a dispatch solve including model build.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reserve_http_requests_total",
		Help: "HTTP requests by route template and status code.",
	}, []string{"route", "code"})
)

type solveTimer struct {
	start time.Time
}

func startSolve() solveTimer {
	return solveTimer{start: time.Now()}
}

func (t solveTimer) done(err error) {
	solveSeconds.Observe(time.Since(t.start).Seconds())
	solvesTotal.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, optimize.ErrInfeasible):
		return "infeasible"
	case errors.Is(err, optimize.ErrUnbounded):
		return "unbounded"
	}
	return "error"
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument counts requests by their matched route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if route == "/ws" {
			// the upgrader hijacks the connection
			next.ServeHTTP(w, r)
			httpRequests.WithLabelValues(route, "101").Inc()
			return
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}
