package assessment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/krshsl/skillcards/backend/metrics"
	"github.com/krshsl/skillcards/backend/models"
	"github.com/krshsl/skillcards/backend/scoring"
)

// SkillRatingUpdate reports a skill's state after a recomputation
type SkillRatingUpdate struct {
	Skill             string              `json:"skill"`
	QuestionsAnswered int                 `json:"questions_answered"`
	TotalQuestions    int                 `json:"total_questions"`
	Completed         bool                `json:"completed"`
	NewlyRated        bool                `json:"newly_rated"`
	Rating            *models.SkillRating `json:"rating,omitempty"`
}

// Aggregator turns a fully answered skill into a cached SkillRating
type Aggregator struct {
	repo Store
}

func NewAggregator(repo Store) *Aggregator {
	return &Aggregator{repo: repo}
}

// RatingFor computes a skill rating from its scores. Stars come from the
// unrounded mean; the stored average is rounded to two places.
func RatingFor(skill string, scores []float64, completedAt time.Time) models.SkillRating {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	band := scoring.Classify(mean)

	return models.SkillRating{
		Skill:             skill,
		AverageScore:      round2(mean),
		StarRating:        band.Stars,
		ProficiencyLevel:  band.Level,
		QuestionsAnswered: len(scores),
		CompletedAt:       completedAt,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Update recounts a skill from persisted rows, refreshes its progress counter
// and writes its rating the first time every question is answered. An
// existing rating is never overwritten.
func (a *Aggregator) Update(ctx context.Context, interviewID uint, skill string) (*SkillRatingUpdate, error) {
	total, err := a.repo.CountQuestions(ctx, interviewID, skill)
	if err != nil {
		return nil, err
	}
	answered, err := a.repo.CountAnswered(ctx, interviewID, skill)
	if err != nil {
		return nil, err
	}

	update := &SkillRatingUpdate{
		Skill:             skill,
		QuestionsAnswered: int(answered),
		TotalQuestions:    int(total),
		Completed:         total > 0 && answered == total,
	}

	var candidate *models.SkillRating
	if update.Completed {
		scores, err := a.repo.AnsweredScores(ctx, interviewID, skill)
		if err != nil {
			return nil, err
		}
		if len(scores) > 0 {
			r := RatingFor(skill, scores, time.Now())
			candidate = &r
		} else {
			slog.Warn("Skill complete but no scores recorded", "interview_id", interviewID, "skill", skill)
		}
	}

	_, err = a.repo.MergeMetadata(ctx, interviewID, func(md *models.Metadata) bool {
		changed := md.SetQuestionsCompleted(skill, update.QuestionsAnswered)
		if existing, ok := md.Rating(skill); ok {
			update.Rating = &existing
			return changed
		}
		if candidate != nil {
			stored, written := md.RecordSkillRating(*candidate)
			update.Rating = &stored
			update.NewlyRated = written
			return true
		}
		return changed
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update skill rating: %w", err)
	}

	if update.NewlyRated {
		metrics.SkillRated(update.Rating.StarRating)
		slog.Info("Skill rated",
			"interview_id", interviewID,
			"skill", skill,
			"average_score", update.Rating.AverageScore,
			"star_rating", update.Rating.StarRating)
	}
	return update, nil
}

// Reset drops a skill's cached rating and recomputes it from current scores
func (a *Aggregator) Reset(ctx context.Context, interviewID uint, skill string) (*SkillRatingUpdate, error) {
	if _, err := a.repo.MergeMetadata(ctx, interviewID, func(md *models.Metadata) bool {
		return md.ResetSkillRating(skill)
	}); err != nil {
		return nil, fmt.Errorf("failed to reset skill rating: %w", err)
	}

	slog.Info("Skill rating reset", "interview_id", interviewID, "skill", skill)
	return a.Update(ctx, interviewID, skill)
}

// EnsureRatings runs Update for every assessed skill that has no rating yet
// and returns the refreshed metadata
func (a *Aggregator) EnsureRatings(ctx context.Context, interviewID uint, md models.Metadata) (models.Metadata, error) {
	missing := false
	for _, skill := range md.SkillsAssessed {
		if _, ok := md.Rating(skill); ok {
			continue
		}
		missing = true
		if _, err := a.Update(ctx, interviewID, skill); err != nil {
			return models.Metadata{}, err
		}
	}
	if !missing {
		return md, nil
	}

	interview, err := a.repo.GetInterview(ctx, interviewID)
	if err != nil {
		return models.Metadata{}, err
	}
	return interview.DecodeMetadata()
}
