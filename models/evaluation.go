package models

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Evaluation is the scored assessment of one response. Every field is
// populated by the evaluator, so readers never deal with missing keys.
type Evaluation struct {
	Score         float64  `json:"score"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Feedback      string   `json:"feedback"`
	AssessedSkill string   `json:"assessed_skill,omitempty"`
	SkillSpecific bool     `json:"skill_specific,omitempty"`

	// Set only when the score came from the local heuristic
	Error          string  `json:"error,omitempty"`
	RawLLMResponse *string `json:"raw_llm_response,omitempty"`
}

// Heuristic reports whether the score was synthesized locally
func (e Evaluation) Heuristic() bool {
	return e.Error != ""
}

// EncodeEvaluation serializes an evaluation for the question row
func EncodeEvaluation(e Evaluation) (datatypes.JSON, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation: %w", err)
	}
	return datatypes.JSON(data), nil
}

// DecodeEvaluation parses a stored evaluation. An empty column yields nil.
func DecodeEvaluation(raw datatypes.JSON) (*Evaluation, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var e Evaluation
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("failed to decode evaluation: %w", err)
	}
	return &e, nil
}
