package models

import "time"

// CardGeneration is the cached outcome of skill card generation for an interview.
// Once stored in Metadata it is never regenerated.
type CardGeneration struct {
	CardsGenerated bool            `json:"cards_generated"`
	Reason         string          `json:"reason,omitempty"`
	SuccessCount   int             `json:"success_count"`
	FailureCount   int             `json:"failure_count"`
	TotalSkills    int             `json:"total_skills"`
	GeneratedCards []GeneratedCard `json:"generated_cards"`
	FailedCards    []FailedCard    `json:"failed_cards"`
	MappingFile    string          `json:"mapping_file,omitempty"`
	MappingError   string          `json:"mapping_error,omitempty"`
	Mapping        *CardMapping    `json:"mapping_content,omitempty"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

type GeneratedCard struct {
	Skill       string `json:"skill"`
	StarRating  int    `json:"star_rating"`
	Rarity      string `json:"rarity"`
	Description string `json:"skill_description"`
	ImageRef    string `json:"image_ref"`
	PromptUsed  string `json:"prompt_used,omitempty"`
}

type FailedCard struct {
	Skill      string `json:"skill"`
	StarRating int    `json:"star_rating"`
	Rarity     string `json:"rarity"`
	Error      string `json:"error"`
}

// CardMapping is the JSON index written next to the card images
type CardMapping struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	InterviewID uint                        `json:"interview_id"`
	TotalCards  int                         `json:"total_cards"`
	Cards       map[string]CardMappingEntry `json:"cards"` // Keyed by skill name
}

type CardMappingEntry struct {
	SkillName   string `json:"skill_name"`
	StarRating  int    `json:"star_rating"`
	Rarity      string `json:"rarity"`
	Description string `json:"description"`
	ImageRef    string `json:"image_ref"`
	PromptUsed  string `json:"prompt_used,omitempty"`
}
