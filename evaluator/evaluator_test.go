package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/krshsl/skillcards/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	response string
	err      error
	requests []Request
}

func (f *fakeService) Evaluate(ctx context.Context, req Request) (string, error) {
	f.requests = append(f.requests, req)
	return f.response, f.err
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestHeuristicBuckets(t *testing.T) {
	tests := []struct {
		words    int
		expected float64
	}{
		{0, 2},
		{9, 2},
		{10, 4},
		{24, 4},
		{25, 6},
		{49, 6},
		{50, 7},
		{99, 7},
		{100, 8},
		{500, 8},
	}

	for _, tt := range tests {
		evaluation := Heuristic(words(tt.words), "")
		assert.Equal(t, tt.expected, evaluation.Score, "%d words", tt.words)
		assert.True(t, evaluation.Heuristic())
		require.NotNil(t, evaluation.RawLLMResponse)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		score    float64
		feedback string
	}{
		{"strict json", `{"score": 8, "strengths": ["clear"], "weaknesses": [], "feedback": "Solid"}`, 8, "Solid"},
		{"fenced block", "Sure!\n```json\n{\"score\": 7, \"feedback\": \"Ok\"}\n```", 7, "Ok"},
		{"embedded object", `My evaluation: {"score": 6, "feedback": "Uses {braces} in text"} thanks`, 6, "Uses {braces} in text"},
		{"string score", `{"score": "9/10"}`, 9, DefaultFeedback},
		{"missing fields", `{}`, DefaultScore, DefaultFeedback},
		{"clamped high", `{"score": 14}`, 10, DefaultFeedback},
		{"clamped low", `{"score": 0}`, 1, DefaultFeedback},
		{"nan score", `{"score": "NaN", "feedback": "Odd"}`, DefaultScore, "Odd"},
		{"infinite score", `{"score": "-Inf"}`, DefaultScore, DefaultFeedback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluation, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.score, evaluation.Score)
			assert.Equal(t, tt.feedback, evaluation.Feedback)
			assert.NotNil(t, evaluation.Strengths)
			assert.NotNil(t, evaluation.Weaknesses)
			assert.False(t, evaluation.Heuristic())
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, raw := range []string{"", "no json at all", `["a list"]`, `{"score": 8, "strengths": "not a list"}`} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrUnparseable, raw)
	}
}

func TestEvaluateUsesService(t *testing.T) {
	svc := &fakeService{response: `{"score": 9, "strengths": ["depth"], "weaknesses": ["brevity"], "feedback": "Great"}`}
	e := New(svc)

	evaluation := e.Evaluate(context.Background(), Input{
		Question:     "What is a join?",
		Response:     "A join combines rows.",
		QuestionType: TypeSkillSpecific,
		Skill:        "SQL",
	})

	assert.Equal(t, 9.0, evaluation.Score)
	assert.Equal(t, "SQL", evaluation.AssessedSkill)
	assert.True(t, evaluation.SkillSpecific)
	assert.Empty(t, evaluation.Error)

	require.Len(t, svc.requests, 1)
	assert.Equal(t, SystemRole(TypeSkillSpecific), svc.requests[0].SystemRole)
	assert.Equal(t, SkillContext("SQL"), svc.requests[0].Context)
}

func TestEvaluateFallsBackOnError(t *testing.T) {
	e := New(&fakeService{err: errors.New("unavailable")})

	evaluation := e.Evaluate(context.Background(), Input{Question: "Q?", Response: words(30), Skill: "Excel"})
	assert.Equal(t, 6.0, evaluation.Score)
	assert.Equal(t, "LLM evaluation failed", evaluation.Error)
	require.NotNil(t, evaluation.RawLLMResponse)
	assert.Equal(t, "", *evaluation.RawLLMResponse)
	assert.Equal(t, "Excel", evaluation.AssessedSkill)
}

func TestEvaluateFallsBackOnGarbage(t *testing.T) {
	e := New(&fakeService{response: "I would rate this highly."})

	evaluation := e.Evaluate(context.Background(), Input{Question: "Q?", Response: words(3)})
	assert.Equal(t, 2.0, evaluation.Score)
	require.NotNil(t, evaluation.RawLLMResponse)
	assert.Equal(t, "I would rate this highly.", *evaluation.RawLLMResponse)
	assert.False(t, evaluation.SkillSpecific)
}

func TestEvaluateNaNScoreStaysStorable(t *testing.T) {
	e := New(&fakeService{response: `{"score": "NaN", "strengths": [], "weaknesses": [], "feedback": "Hmm"}`})

	evaluation := e.Evaluate(context.Background(), Input{Question: "Q?", Response: words(5), Skill: "SQL"})
	assert.Equal(t, float64(DefaultScore), evaluation.Score)
	assert.False(t, evaluation.Heuristic())

	_, err := models.EncodeEvaluation(evaluation)
	require.NoError(t, err)
}

func TestEvaluateWithoutService(t *testing.T) {
	evaluation := New(nil).Evaluate(context.Background(), Input{Response: words(120)})
	assert.Equal(t, 8.0, evaluation.Score)
	assert.True(t, evaluation.Heuristic())
}

func TestSystemRole(t *testing.T) {
	assert.Contains(t, SystemRole(TypeBehavioral), "STAR method")
	assert.Contains(t, SystemRole("Technical"), "technical interview question")
	assert.Contains(t, SystemRole(TypeJobSpecific), "job-specific question")
	assert.Equal(t, defaultRole, SystemRole("SQL"))
}
