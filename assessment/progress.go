package assessment

import (
	"context"

	"github.com/krshsl/skillcards/backend/metrics"
	"github.com/krshsl/skillcards/backend/models"
)

// Progress is the interview-wide answered/total count
type Progress struct {
	Answered      int    `json:"answered"`
	Total         int    `json:"total"`
	Completed     bool   `json:"completed"`
	JustCompleted bool   `json:"just_completed"`
	Status        string `json:"status"`
}

// ProgressTracker recounts answered questions after every submission and
// completes the interview when nothing is left
type ProgressTracker struct {
	repo Store
}

func NewProgressTracker(repo Store) *ProgressTracker {
	return &ProgressTracker{repo: repo}
}

// Recompute always reads counts from the store, never from a cache
func (p *ProgressTracker) Recompute(ctx context.Context, interviewID uint) (*Progress, error) {
	total, err := p.repo.CountQuestions(ctx, interviewID, "")
	if err != nil {
		return nil, err
	}
	answered, err := p.repo.CountAnswered(ctx, interviewID, "")
	if err != nil {
		return nil, err
	}

	progress := &Progress{
		Answered:  int(answered),
		Total:     int(total),
		Completed: total > 0 && answered == total,
		Status:    models.StatusActive,
	}
	if !progress.Completed {
		return progress, nil
	}

	first, err := p.repo.MarkInterviewCompleted(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	if first {
		metrics.InterviewCompleted()
	}
	progress.JustCompleted = first
	progress.Status = models.StatusCompleted
	return progress, nil
}
