package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// MetadataVersion is the current schema version of the metadata document
const MetadataVersion = 1

// Metadata is the typed document stored on Interview.Metadata. Rows written
// before versioning (version 0) are read as version 1.
type Metadata struct {
	Version           int                    `json:"version"`
	SkillsAssessed    []string               `json:"skills_assessed"`
	QuestionsPerSkill int                    `json:"questions_per_skill"`
	TotalQuestions    int                    `json:"total_questions"`
	SkillQuestionMap  map[string]SkillBlock  `json:"skill_question_map"`
	SkillRatings      map[string]SkillRating `json:"skill_ratings,omitempty"`
	CardGeneration    *CardGeneration        `json:"card_generation,omitempty"`
	PlanError         string                 `json:"plan_error,omitempty"`
}

// SkillBlock locates a skill's questions in global order.
// StartIndex is inclusive and EndIndex exclusive, both 0-based.
type SkillBlock struct {
	StartIndex         int `json:"start_index"`
	EndIndex           int `json:"end_index"`
	QuestionCount      int `json:"question_count"`
	QuestionsCompleted int `json:"questions_completed"`
}

// SkillRating is the aggregate for a fully answered skill
type SkillRating struct {
	Skill             string    `json:"skill"`
	AverageScore      float64   `json:"average_score"`
	StarRating        int       `json:"star_rating"`
	ProficiencyLevel  string    `json:"proficiency_level"`
	QuestionsAnswered int       `json:"questions_answered"`
	CompletedAt       time.Time `json:"completed_at"`
}

// NewMetadata returns an empty document at the current version
func NewMetadata() Metadata {
	return Metadata{
		Version:          MetadataVersion,
		SkillQuestionMap: map[string]SkillBlock{},
		SkillRatings:     map[string]SkillRating{},
	}
}

// DecodeMetadata parses a stored metadata column
func DecodeMetadata(raw datatypes.JSON) (Metadata, error) {
	md := NewMetadata()
	if len(raw) == 0 || string(raw) == "null" {
		return md, nil
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		return Metadata{}, fmt.Errorf("failed to decode interview metadata: %w", err)
	}
	if md.Version > MetadataVersion {
		return Metadata{}, fmt.Errorf("unsupported metadata version %d", md.Version)
	}
	md.Version = MetadataVersion
	if md.SkillQuestionMap == nil {
		md.SkillQuestionMap = map[string]SkillBlock{}
	}
	if md.SkillRatings == nil {
		md.SkillRatings = map[string]SkillRating{}
	}
	return md, nil
}

// Encode serializes the document for storage
func (m Metadata) Encode() (datatypes.JSON, error) {
	m.Version = MetadataVersion
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode interview metadata: %w", err)
	}
	return datatypes.JSON(data), nil
}

// Rating returns the stored rating for a skill
func (m Metadata) Rating(skill string) (SkillRating, bool) {
	r, ok := m.SkillRatings[skill]
	return r, ok
}

// SetQuestionsCompleted updates the progress counter for a known skill
func (m *Metadata) SetQuestionsCompleted(skill string, n int) bool {
	block, ok := m.SkillQuestionMap[skill]
	if !ok {
		return false
	}
	block.QuestionsCompleted = n
	m.SkillQuestionMap[skill] = block
	return true
}

// RecordSkillRating stores r unless a rating already exists for the skill.
// It returns the rating that ends up stored and whether r was written.
func (m *Metadata) RecordSkillRating(r SkillRating) (SkillRating, bool) {
	if m.SkillRatings == nil {
		m.SkillRatings = map[string]SkillRating{}
	}
	if existing, ok := m.SkillRatings[r.Skill]; ok {
		return existing, false
	}
	m.SkillRatings[r.Skill] = r
	return r, true
}

// ResetSkillRating removes a skill's rating so it can be recomputed
func (m *Metadata) ResetSkillRating(skill string) bool {
	if _, ok := m.SkillRatings[skill]; !ok {
		return false
	}
	delete(m.SkillRatings, skill)
	return true
}

// RecordCardGeneration caches a card result unless one is already present.
// It returns the result that ends up stored.
func (m *Metadata) RecordCardGeneration(cg *CardGeneration) (*CardGeneration, bool) {
	if m.CardGeneration != nil {
		return m.CardGeneration, false
	}
	m.CardGeneration = cg
	return cg, true
}
