package evaluator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/krshsl/skillcards/backend/models"
	"github.com/xeipuuv/gojsonschema"
)

const (
	DefaultScore    = 5
	DefaultFeedback = "No detailed feedback available."
)

// Field types only. Missing fields are defaulted after decoding.
const payloadSchema = `{
	"type": "object",
	"properties": {
		"score": {"type": ["number", "string"]},
		"strengths": {"type": "array", "items": {"type": "string"}},
		"weaknesses": {"type": "array", "items": {"type": "string"}},
		"feedback": {"type": "string"}
	}
}`

var (
	schema      = mustSchema(payloadSchema)
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n\\s*```")

	ErrUnparseable = errors.New("evaluation payload is not a valid object")
)

func mustSchema(s string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid evaluation schema: %v", err))
	}
	return compiled
}

type payload struct {
	Score      interface{} `json:"score"`
	Strengths  []string    `json:"strengths"`
	Weaknesses []string    `json:"weaknesses"`
	Feedback   *string     `json:"feedback"`
}

// Parse decodes an evaluation payload. The whole text is tried as JSON
// first, then a fenced block, then the first balanced {...} span.
func Parse(raw string) (models.Evaluation, error) {
	for _, candidate := range candidates(raw) {
		if evaluation, ok := decode(candidate); ok {
			return evaluation, nil
		}
	}
	return models.Evaluation{}, ErrUnparseable
}

func candidates(raw string) []string {
	raw = strings.TrimSpace(raw)
	out := []string{raw}
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	if span := balancedObject(raw); span != "" {
		out = append(out, span)
	}
	return out
}

func decode(text string) (models.Evaluation, bool) {
	if text == "" {
		return models.Evaluation{}, false
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil || !result.Valid() {
		return models.Evaluation{}, false
	}

	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return models.Evaluation{}, false
	}

	evaluation := models.Evaluation{
		Score:      ClampScore(scoreValue(p.Score)),
		Strengths:  p.Strengths,
		Weaknesses: p.Weaknesses,
		Feedback:   DefaultFeedback,
	}
	if evaluation.Strengths == nil {
		evaluation.Strengths = []string{}
	}
	if evaluation.Weaknesses == nil {
		evaluation.Weaknesses = []string{}
	}
	if p.Feedback != nil && strings.TrimSpace(*p.Feedback) != "" {
		evaluation.Feedback = *p.Feedback
	}
	return evaluation, true
}

func scoreValue(v interface{}) float64 {
	switch s := v.(type) {
	case float64:
		return s
	case string:
		// Models sometimes answer "8/10"
		s = strings.TrimSpace(strings.SplitN(s, "/", 2)[0])
		// ParseFloat accepts "NaN" and "Inf"
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}
	return DefaultScore
}

// ClampScore limits a score to 1..10. NaN becomes DefaultScore.
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return DefaultScore
	case score < 1:
		return 1
	case score > 10:
		return 10
	default:
		return score
	}
}

// balancedObject returns the first top-level {...} span, honoring strings
func balancedObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
