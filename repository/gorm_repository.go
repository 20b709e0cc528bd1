package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krshsl/skillcards/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when an interview or question does not exist
var ErrNotFound = errors.New("record not found")

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// DB exposes the underlying handle for health checks
func (r *GORMRepository) DB() *gorm.DB {
	return r.db
}

// AutoMigrate runs database migrations
func (r *GORMRepository) AutoMigrate() error {
	return r.db.AutoMigrate(models.AllModels()...)
}

// Interview operations
func (r *GORMRepository) CreateInterview(ctx context.Context, interview *models.Interview) error {
	if interview.Status == "" {
		interview.Status = models.StatusPending
	}
	if err := r.db.WithContext(ctx).Create(interview).Error; err != nil {
		slog.Error("Failed to create interview", "error", err)
		return fmt.Errorf("failed to create interview: %w", err)
	}
	slog.Info("Interview created", "interview_id", interview.ID, "candidate_name", interview.CandidateName)
	return nil
}

func (r *GORMRepository) GetInterview(ctx context.Context, id uint) (*models.Interview, error) {
	var interview models.Interview
	if err := r.db.WithContext(ctx).First(&interview, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		slog.Error("Failed to get interview", "error", err, "interview_id", id)
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	return &interview, nil
}

// ActivateInterview stores the planned questions and metadata and moves the
// interview to active in a single transaction
func (r *GORMRepository) ActivateInterview(ctx context.Context, id uint, questions []models.InterviewQuestion, md models.Metadata) error {
	encoded, err := md.Encode()
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range questions {
			questions[i].InterviewID = id
		}
		if len(questions) > 0 {
			if err := tx.Create(&questions).Error; err != nil {
				return fmt.Errorf("failed to create questions: %w", err)
			}
		}
		res := tx.Model(&models.Interview{}).
			Where("id = ? AND status = ?", id, models.StatusPending).
			Updates(map[string]interface{}{
				"status":   models.StatusActive,
				"metadata": encoded,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to activate interview: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to activate interview", "error", err, "interview_id", id)
		return err
	}

	slog.Info("Interview activated", "interview_id", id, "questions", len(questions))
	return nil
}

// MarkInterviewError records a planning failure. Only the plan_error
// section of the metadata is touched.
func (r *GORMRepository) MarkInterviewError(ctx context.Context, id uint, reason string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		md, err := loadMetadata(tx, id)
		if err != nil {
			return err
		}
		md.PlanError = reason
		encoded, err := md.Encode()
		if err != nil {
			return err
		}

		return tx.Model(&models.Interview{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"status":   models.StatusError,
				"metadata": encoded,
			}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		slog.Error("Failed to mark interview as failed", "error", err, "interview_id", id)
		return fmt.Errorf("failed to mark interview as failed: %w", err)
	}
	return nil
}

// MarkInterviewCompleted transitions an active interview to completed. The
// returned bool is true only for the call that performed the transition.
func (r *GORMRepository) MarkInterviewCompleted(ctx context.Context, id uint) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Interview{}).
		Where("id = ? AND status = ?", id, models.StatusActive).
		Updates(map[string]interface{}{
			"status":       models.StatusCompleted,
			"completed_at": now,
		})
	if res.Error != nil {
		slog.Error("Failed to complete interview", "error", res.Error, "interview_id", id)
		return false, fmt.Errorf("failed to complete interview: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		slog.Info("Interview completed", "interview_id", id)
	}
	return res.RowsAffected > 0, nil
}

// ListRecentInterviews returns the newest interviews with their question counts
func (r *GORMRepository) ListRecentInterviews(ctx context.Context, limit int) ([]models.InterviewSummary, error) {
	var summaries []models.InterviewSummary

	err := r.db.WithContext(ctx).
		Model(&models.Interview{}).
		Select("interviews.id, interviews.candidate_name, interviews.skill_area, interviews.skills_input, " +
			"interviews.status, interviews.created_at, interviews.completed_at, " +
			"COUNT(interview_questions.id) AS total_questions").
		Joins("LEFT JOIN interview_questions ON interview_questions.interview_id = interviews.id").
		Group("interviews.id").
		Order("interviews.created_at DESC, interviews.id DESC").
		Limit(limit).
		Scan(&summaries).Error
	if err != nil {
		slog.Error("Failed to list interviews", "error", err)
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}
	return summaries, nil
}

// Question operations
func (r *GORMRepository) GetQuestion(ctx context.Context, interviewID, questionID uint) (*models.InterviewQuestion, error) {
	var question models.InterviewQuestion
	if err := r.db.WithContext(ctx).
		Where("id = ? AND interview_id = ?", questionID, interviewID).
		First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		slog.Error("Failed to get question", "error", err, "interview_id", interviewID, "question_id", questionID)
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

// GetQuestions returns an interview's questions in global order
func (r *GORMRepository) GetQuestions(ctx context.Context, interviewID uint) ([]models.InterviewQuestion, error) {
	var questions []models.InterviewQuestion
	if err := r.db.WithContext(ctx).
		Where("interview_id = ?", interviewID).
		Order("global_order ASC").
		Find(&questions).Error; err != nil {
		slog.Error("Failed to get questions", "error", err, "interview_id", interviewID)
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

// SaveEvaluatedResponse writes the response, evaluation and score in one update
func (r *GORMRepository) SaveEvaluatedResponse(ctx context.Context, questionID uint, response string, evaluation models.Evaluation) error {
	encoded, err := models.EncodeEvaluation(evaluation)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&models.InterviewQuestion{}).
		Where("id = ?", questionID).
		Updates(map[string]interface{}{
			"response":    response,
			"evaluation":  encoded,
			"score":       evaluation.Score,
			"answered_at": time.Now(),
		})
	if res.Error != nil {
		slog.Error("Failed to save response", "error", res.Error, "question_id", questionID)
		return fmt.Errorf("failed to save response: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountQuestions counts an interview's questions, optionally for one skill
func (r *GORMRepository) CountQuestions(ctx context.Context, interviewID uint, skill string) (int64, error) {
	var count int64
	if err := r.questionScope(ctx, interviewID, skill).Count(&count).Error; err != nil {
		slog.Error("Failed to count questions", "error", err, "interview_id", interviewID, "skill", skill)
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// CountAnswered counts questions with a stored response, optionally for one skill
func (r *GORMRepository) CountAnswered(ctx context.Context, interviewID uint, skill string) (int64, error) {
	var count int64
	if err := r.questionScope(ctx, interviewID, skill).
		Where("response IS NOT NULL").
		Count(&count).Error; err != nil {
		slog.Error("Failed to count answered questions", "error", err, "interview_id", interviewID, "skill", skill)
		return 0, fmt.Errorf("failed to count answered questions: %w", err)
	}
	return count, nil
}

// AnsweredScores returns the non-null scores of answered questions for a skill
func (r *GORMRepository) AnsweredScores(ctx context.Context, interviewID uint, skill string) ([]float64, error) {
	var scores []float64
	if err := r.questionScope(ctx, interviewID, skill).
		Where("response IS NOT NULL AND score IS NOT NULL").
		Order("global_order ASC").
		Pluck("score", &scores).Error; err != nil {
		slog.Error("Failed to get scores", "error", err, "interview_id", interviewID, "skill", skill)
		return nil, fmt.Errorf("failed to get scores: %w", err)
	}
	return scores, nil
}

func (r *GORMRepository) questionScope(ctx context.Context, interviewID uint, skill string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&models.InterviewQuestion{}).Where("interview_id = ?", interviewID)
	if skill != "" {
		q = q.Where("question_type = ?", skill)
	}
	return q
}

// MergeMetadata applies fn to the current metadata and writes back only the
// metadata column. The read and write share a transaction; on postgres the
// row is locked for the duration. When fn returns false nothing is written.
func (r *GORMRepository) MergeMetadata(ctx context.Context, id uint, fn func(md *models.Metadata) bool) (models.Metadata, error) {
	var result models.Metadata

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		md, err := loadMetadata(tx, id)
		if err != nil {
			return err
		}
		if !fn(&md) {
			result = md
			return nil
		}

		encoded, err := md.Encode()
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Interview{}).
			Where("id = ?", id).
			Update("metadata", encoded).Error; err != nil {
			return fmt.Errorf("failed to write metadata: %w", err)
		}
		result = md
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("Failed to merge interview metadata", "error", err, "interview_id", id)
		}
		return models.Metadata{}, err
	}
	return result, nil
}

// loadMetadata reads an interview's metadata inside tx, locking the row on postgres
func loadMetadata(tx *gorm.DB, id uint) (models.Metadata, error) {
	var interview models.Interview
	q := tx.Select("id", "metadata")
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&interview, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Metadata{}, ErrNotFound
		}
		return models.Metadata{}, fmt.Errorf("failed to load metadata: %w", err)
	}
	return interview.DecodeMetadata()
}
