package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEvaluationRecorded(t *testing.T) {
	before := testutil.ToFloat64(evaluations.WithLabelValues("heuristic"))
	EvaluationRecorded(true)
	assert.Equal(t, before+1, testutil.ToFloat64(evaluations.WithLabelValues("heuristic")))
}

func TestQuestionsPlanned(t *testing.T) {
	before := testutil.ToFloat64(questionsPlanned.WithLabelValues("template"))
	QuestionsPlanned("template", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(questionsPlanned.WithLabelValues("template")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/v1/interviews/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := httpRequests.WithLabelValues(http.MethodGet, "/api/v1/interviews/{id}/results", "404")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/interviews/42/results", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
