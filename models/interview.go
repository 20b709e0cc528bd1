package models

import (
	"time"

	"gorm.io/datatypes"
)

// Interview lifecycle states
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// Interview is one skill assessment for a candidate
type Interview struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CandidateName string         `gorm:"size:255" json:"candidate_name"`
	SkillArea     string         `gorm:"size:255" json:"skill_area"`
	SkillsInput   string         `gorm:"type:text" json:"skills_input"`
	Status        string         `gorm:"not null;default:'pending';index;check:status IN ('pending', 'active', 'completed', 'error')" json:"status"`
	Metadata      datatypes.JSON `json:"-"` // Encoded Metadata document, see metadata.go
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`

	// Relationships
	Questions []InterviewQuestion `gorm:"foreignKey:InterviewID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

// DecodeMetadata parses the interview's metadata column
func (i *Interview) DecodeMetadata() (Metadata, error) {
	return DecodeMetadata(i.Metadata)
}

// InterviewQuestion stores one planned question and, once answered, its evaluation
type InterviewQuestion struct {
	ID           uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	InterviewID  uint           `gorm:"not null;index:idx_question_interview_skill" json:"interview_id"`
	Question     string         `gorm:"type:text;not null" json:"question"`
	QuestionType string         `gorm:"size:255;not null;index:idx_question_interview_skill" json:"question_type"` // Skill name
	SkillIndex   int            `gorm:"not null" json:"skill_index"`                                             // 1-based within the skill
	GlobalOrder  int            `gorm:"not null" json:"global_order"`                                            // 1-based within the interview
	Source       string         `gorm:"size:20" json:"source"`
	Response     *string        `gorm:"type:text" json:"response"`
	Evaluation   datatypes.JSON `json:"evaluation,omitempty"`
	Score        *float64       `json:"score"`
	AnsweredAt   *time.Time     `json:"answered_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Answered reports whether a response has been stored
func (q *InterviewQuestion) Answered() bool {
	return q.Response != nil
}

// InterviewSummary is a list row for recent interviews
type InterviewSummary struct {
	ID             uint       `json:"id"`
	CandidateName  string     `json:"candidate_name"`
	SkillArea      string     `json:"skill_area"`
	SkillsInput    string     `json:"skills_input"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalQuestions int64      `json:"total_questions"`
}
