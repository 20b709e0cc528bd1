package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are exported from their respective files:
// - Interview, InterviewQuestion from interview.go
// - Evaluation from evaluation.go
// - Metadata, SkillBlock, SkillRating from metadata.go
// - CardGeneration, CardMapping from cards.go

// Database schema overview:
// 1. interviews - One row per assessment; the metadata column holds the typed Metadata document
// 2. interview_questions - One row per planned question, tagged with its skill in question_type

// AllModels lists every model that takes part in migrations
func AllModels() []interface{} {
	return []interface{}{
		&Interview{},
		&InterviewQuestion{},
	}
}
