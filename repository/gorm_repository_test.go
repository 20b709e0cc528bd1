package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/krshsl/skillcards/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestRepository(t *testing.T) *GORMRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	repo := NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func seedActiveInterview(t *testing.T, repo *GORMRepository, skills []string, perSkill int) *models.Interview {
	t.Helper()
	ctx := context.Background()

	interview := &models.Interview{CandidateName: "Jane", SkillArea: "data", SkillsInput: "x"}
	require.NoError(t, repo.CreateInterview(ctx, interview))

	md := models.NewMetadata()
	md.SkillsAssessed = skills
	md.QuestionsPerSkill = perSkill

	var questions []models.InterviewQuestion
	order := 1
	for i, skill := range skills {
		md.SkillQuestionMap[skill] = models.SkillBlock{
			StartIndex:    i * perSkill,
			EndIndex:      (i + 1) * perSkill,
			QuestionCount: perSkill,
		}
		for j := 1; j <= perSkill; j++ {
			questions = append(questions, models.InterviewQuestion{
				Question:     fmt.Sprintf("%s question %d?", skill, j),
				QuestionType: skill,
				SkillIndex:   j,
				GlobalOrder:  order,
				Source:       "llm",
			})
			order++
		}
	}
	md.TotalQuestions = len(questions)

	require.NoError(t, repo.ActivateInterview(ctx, interview.ID, questions, md))
	got, err := repo.GetInterview(ctx, interview.ID)
	require.NoError(t, err)
	return got
}

func TestCreateAndGetInterview(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	interview := &models.Interview{CandidateName: "Jane", SkillArea: "data", SkillsInput: "SQL"}
	require.NoError(t, repo.CreateInterview(ctx, interview))
	assert.NotZero(t, interview.ID)

	got, err := repo.GetInterview(ctx, interview.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	_, err = repo.GetInterview(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActivateInterview(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	interview := seedActiveInterview(t, repo, []string{"SQL", "Excel"}, 2)
	assert.Equal(t, models.StatusActive, interview.Status)

	md, err := interview.DecodeMetadata()
	require.NoError(t, err)
	assert.Equal(t, 4, md.TotalQuestions)
	assert.Equal(t, models.SkillBlock{StartIndex: 2, EndIndex: 4, QuestionCount: 2}, md.SkillQuestionMap["Excel"])

	questions, err := repo.GetQuestions(ctx, interview.ID)
	require.NoError(t, err)
	require.Len(t, questions, 4)
	for i, q := range questions {
		assert.Equal(t, i+1, q.GlobalOrder)
	}
	assert.Equal(t, "Excel", questions[2].QuestionType)

	total, err := repo.CountQuestions(ctx, interview.ID, "SQL")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestActivateRequiresPending(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	interview := seedActiveInterview(t, repo, []string{"SQL"}, 1)
	err := repo.ActivateInterview(ctx, interview.ID, []models.InterviewQuestion{{Question: "extra?", QuestionType: "SQL", SkillIndex: 2, GlobalOrder: 2}}, models.NewMetadata())
	assert.ErrorIs(t, err, ErrNotFound)

	// The rejected activation must not leave questions behind
	total, err := repo.CountQuestions(ctx, interview.ID, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSaveEvaluatedResponse(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	interview := seedActiveInterview(t, repo, []string{"SQL"}, 2)
	questions, err := repo.GetQuestions(ctx, interview.ID)
	require.NoError(t, err)

	eval := models.Evaluation{Score: 8, Strengths: []string{"clear"}, Weaknesses: []string{}, Feedback: "good"}
	require.NoError(t, repo.SaveEvaluatedResponse(ctx, questions[0].ID, "I use joins", eval))

	got, err := repo.GetQuestion(ctx, interview.ID, questions[0].ID)
	require.NoError(t, err)
	require.True(t, got.Answered())
	assert.Equal(t, "I use joins", *got.Response)
	require.NotNil(t, got.Score)
	assert.Equal(t, 8.0, *got.Score)

	decoded, err := models.DecodeEvaluation(got.Evaluation)
	require.NoError(t, err)
	assert.Equal(t, "good", decoded.Feedback)

	answered, err := repo.CountAnswered(ctx, interview.ID, "SQL")
	require.NoError(t, err)
	assert.Equal(t, int64(1), answered)

	scores, err := repo.AnsweredScores(ctx, interview.ID, "SQL")
	require.NoError(t, err)
	assert.Equal(t, []float64{8}, scores)

	assert.ErrorIs(t, repo.SaveEvaluatedResponse(ctx, 9999, "x", eval), ErrNotFound)
}

func TestGetQuestionScopedToInterview(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	first := seedActiveInterview(t, repo, []string{"SQL"}, 1)
	second := seedActiveInterview(t, repo, []string{"Excel"}, 1)

	questions, err := repo.GetQuestions(ctx, first.ID)
	require.NoError(t, err)

	_, err = repo.GetQuestion(ctx, second.ID, questions[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkInterviewCompletedOnce(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	interview := seedActiveInterview(t, repo, []string{"SQL"}, 1)

	first, err := repo.MarkInterviewCompleted(ctx, interview.ID)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkInterviewCompleted(ctx, interview.ID)
	require.NoError(t, err)
	assert.False(t, second)

	got, err := repo.GetInterview(ctx, interview.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestMarkInterviewError(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	interview := &models.Interview{CandidateName: "Jane"}
	require.NoError(t, repo.CreateInterview(ctx, interview))
	require.NoError(t, repo.MarkInterviewError(ctx, interview.ID, "planning failed"))

	got, err := repo.GetInterview(ctx, interview.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)

	md, err := got.DecodeMetadata()
	require.NoError(t, err)
	assert.Equal(t, "planning failed", md.PlanError)

	assert.ErrorIs(t, repo.MarkInterviewError(ctx, 9999, "x"), ErrNotFound)
}

func TestMarkInterviewErrorKeepsOtherSections(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	interview := seedActiveInterview(t, repo, []string{"SQL", "Excel"}, 1)
	_, err := repo.MergeMetadata(ctx, interview.ID, func(md *models.Metadata) bool {
		md.RecordSkillRating(models.SkillRating{Skill: "SQL", AverageScore: 8, StarRating: 4})
		return true
	})
	require.NoError(t, err)

	require.NoError(t, repo.MarkInterviewError(ctx, interview.ID, "late failure"))

	got, err := repo.GetInterview(ctx, interview.ID)
	require.NoError(t, err)
	md, err := got.DecodeMetadata()
	require.NoError(t, err)
	assert.Equal(t, "late failure", md.PlanError)
	assert.Equal(t, []string{"SQL", "Excel"}, md.SkillsAssessed)
	assert.Contains(t, md.SkillQuestionMap, "Excel")
	_, rated := md.Rating("SQL")
	assert.True(t, rated)
}

func TestMergeMetadata(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	interview := seedActiveInterview(t, repo, []string{"SQL", "Excel"}, 1)

	md, err := repo.MergeMetadata(ctx, interview.ID, func(md *models.Metadata) bool {
		md.RecordSkillRating(models.SkillRating{Skill: "SQL", AverageScore: 8, StarRating: 4})
		return md.SetQuestionsCompleted("SQL", 1)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, md.SkillQuestionMap["SQL"].QuestionsCompleted)

	// A false return leaves the stored document untouched
	_, err = repo.MergeMetadata(ctx, interview.ID, func(md *models.Metadata) bool {
		md.ResetSkillRating("SQL")
		return false
	})
	require.NoError(t, err)

	got, err := repo.GetInterview(ctx, interview.ID)
	require.NoError(t, err)
	stored, err := got.DecodeMetadata()
	require.NoError(t, err)
	rating, ok := stored.Rating("SQL")
	require.True(t, ok)
	assert.Equal(t, 4, rating.StarRating)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, []string{"SQL", "Excel"}, stored.SkillsAssessed)

	_, err = repo.MergeMetadata(ctx, 9999, func(md *models.Metadata) bool { return true })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRecentInterviews(t *testing.T) {
	repo := setupTestRepository(t)
	ctx := context.Background()

	seedActiveInterview(t, repo, []string{"SQL"}, 2)
	latest := seedActiveInterview(t, repo, []string{"Excel", "Go"}, 3)

	summaries, err := repo.ListRecentInterviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, latest.ID, summaries[0].ID)
	assert.Equal(t, int64(6), summaries[0].TotalQuestions)
	assert.Equal(t, int64(2), summaries[1].TotalQuestions)

	limited, err := repo.ListRecentInterviews(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
