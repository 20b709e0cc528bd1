// Package metrics exposes Prometheus counters for the assessment workflow and
// HTTP instrumentation.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skillcards"

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	questionsPlanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_planned_total",
		Help:      "Planned questions by source (llm, parsed_lines, template)",
	}, []string{"source"})

	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evaluations_total",
		Help:      "Response evaluations by outcome (model, heuristic)",
	}, []string{"outcome"})

	skillRatings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skill_ratings_total",
		Help:      "Skill ratings written, by star rating",
	}, []string{"stars"})

	cardOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "card_generations_total",
		Help:      "Card generation attempts per skill by outcome (success, failure)",
	}, []string{"outcome"})

	interviewsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "interviews_completed_total",
		Help:      "Interviews that transitioned to completed",
	})
)

// QuestionsPlanned counts n questions produced from source
func QuestionsPlanned(source string, n int) {
	questionsPlanned.WithLabelValues(source).Add(float64(n))
}

// EvaluationRecorded counts one evaluation
func EvaluationRecorded(heuristic bool) {
	outcome := "model"
	if heuristic {
		outcome = "heuristic"
	}
	evaluations.WithLabelValues(outcome).Inc()
}

// SkillRated counts a newly written skill rating
func SkillRated(stars int) {
	skillRatings.WithLabelValues(strconv.Itoa(stars)).Inc()
}

// CardGenerated counts one per-skill card attempt
func CardGenerated(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	cardOutcomes.WithLabelValues(outcome).Inc()
}

// InterviewCompleted counts an interview reaching completed
func InterviewCompleted() {
	interviewsCompleted.Inc()
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack is required for websocket upgrades behind the middleware
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics labelled by chi route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
