// Package assessment runs the interview workflow: planning, response
// submission, skill rating aggregation, completion tracking and results.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/krshsl/skillcards/backend/evaluator"
	"github.com/krshsl/skillcards/backend/locks"
	"github.com/krshsl/skillcards/backend/models"
	"github.com/krshsl/skillcards/backend/planner"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

var (
	ErrInterviewNotActive = errors.New("interview is not accepting responses")
	ErrPlanGeneration     = errors.New("failed to generate interview plan")
	ErrUnknownSkill       = errors.New("skill is not part of this interview")
)

// Store is the persistence the workflow runs against
type Store interface {
	CreateInterview(ctx context.Context, interview *models.Interview) error
	GetInterview(ctx context.Context, id uint) (*models.Interview, error)
	ActivateInterview(ctx context.Context, id uint, questions []models.InterviewQuestion, md models.Metadata) error
	MarkInterviewError(ctx context.Context, id uint, reason string) error
	MarkInterviewCompleted(ctx context.Context, id uint) (bool, error)
	ListRecentInterviews(ctx context.Context, limit int) ([]models.InterviewSummary, error)
	GetQuestion(ctx context.Context, interviewID, questionID uint) (*models.InterviewQuestion, error)
	GetQuestions(ctx context.Context, interviewID uint) ([]models.InterviewQuestion, error)
	SaveEvaluatedResponse(ctx context.Context, questionID uint, response string, evaluation models.Evaluation) error
	CountQuestions(ctx context.Context, interviewID uint, skill string) (int64, error)
	CountAnswered(ctx context.Context, interviewID uint, skill string) (int64, error)
	AnsweredScores(ctx context.Context, interviewID uint, skill string) ([]float64, error)
	MergeMetadata(ctx context.Context, id uint, fn func(md *models.Metadata) bool) (models.Metadata, error)
}

// CardService produces the cached card result for an interview
type CardService interface {
	Ensure(ctx context.Context, interviewID uint) (*models.CardGeneration, error)
}

// Publisher delivers progress events to live subscribers
type Publisher interface {
	Publish(interviewID uint, event interface{})
}

// ProgressEvent is pushed after every accepted submission
type ProgressEvent struct {
	Type        string             `json:"type"`
	InterviewID uint               `json:"interview_id"`
	QuestionID  uint               `json:"question_id"`
	Score       float64            `json:"score"`
	Progress    *Progress          `json:"progress"`
	SkillUpdate *SkillRatingUpdate `json:"skill_rating_update"`
}

type Options struct {
	Planner                  *planner.Planner
	Evaluator                *evaluator.Evaluator
	Cards                    CardService // nil disables card generation
	Locker                   locks.Locker
	Publisher                Publisher
	DefaultQuestionsPerSkill int
}

type Service struct {
	repo            Store
	planner         *planner.Planner
	evaluator       *evaluator.Evaluator
	aggregator      *Aggregator
	progress        *ProgressTracker
	cards           CardService
	locker          locks.Locker
	publisher       Publisher
	defaultPerSkill int
}

func NewService(repo Store, opts Options) *Service {
	s := &Service{
		repo:            repo,
		planner:         opts.Planner,
		evaluator:       opts.Evaluator,
		aggregator:      NewAggregator(repo),
		progress:        NewProgressTracker(repo),
		cards:           opts.Cards,
		locker:          opts.Locker,
		publisher:       opts.Publisher,
		defaultPerSkill: opts.DefaultQuestionsPerSkill,
	}
	if s.planner == nil {
		s.planner = planner.NewPlanner(nil, 0)
	}
	if s.evaluator == nil {
		s.evaluator = evaluator.New(nil)
	}
	if s.locker == nil {
		s.locker = locks.NewMemoryLocker()
	}
	if s.defaultPerSkill <= 0 {
		s.defaultPerSkill = planner.DefaultQuestionsPerSkill
	}
	return s
}

// QuestionView is a question as shown to clients
type QuestionView struct {
	ID          uint     `json:"id"`
	Question    string   `json:"question"`
	Skill       string   `json:"skill"`
	SkillIndex  int      `json:"skill_index"`
	GlobalOrder int      `json:"global_order"`
	Answered    bool     `json:"answered"`
	Response    *string  `json:"response,omitempty"`
	Score       *float64 `json:"score,omitempty"`
}

func viewOf(q models.InterviewQuestion) QuestionView {
	return QuestionView{
		ID:          q.ID,
		Question:    q.Question,
		Skill:       q.QuestionType,
		SkillIndex:  q.SkillIndex,
		GlobalOrder: q.GlobalOrder,
		Answered:    q.Answered(),
		Response:    q.Response,
		Score:       q.Score,
	}
}

type StartInput struct {
	CandidateName     string
	SkillsInput       string
	SkillArea         string
	QuestionsPerSkill int
}

type StartResult struct {
	InterviewID       uint                         `json:"interview_id"`
	CandidateName     string                       `json:"candidate_name"`
	Status            string                       `json:"status"`
	Skills            []string                     `json:"skills"`
	QuestionsPerSkill int                          `json:"questions_per_skill"`
	TotalQuestions    int                          `json:"total_questions"`
	SkillQuestionMap  map[string]models.SkillBlock `json:"skill_question_map"`
	Questions         []QuestionView               `json:"questions"`
}

// Start creates an interview and plans its questions. A planning failure
// leaves the interview in the error state.
func (s *Service) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	perSkill := in.QuestionsPerSkill
	if perSkill <= 0 {
		perSkill = s.defaultPerSkill
	}

	interview := &models.Interview{
		CandidateName: strings.TrimSpace(in.CandidateName),
		SkillArea:     strings.TrimSpace(in.SkillArea),
		SkillsInput:   in.SkillsInput,
		Status:        models.StatusPending,
	}
	if err := s.repo.CreateInterview(ctx, interview); err != nil {
		return nil, err
	}

	plan, err := s.planner.Plan(ctx, in.SkillsInput, interview.SkillArea, perSkill)
	if err != nil {
		slog.Error("Failed to plan interview", "interview_id", interview.ID, "error", err)
		if markErr := s.repo.MarkInterviewError(context.WithoutCancel(ctx), interview.ID, err.Error()); markErr != nil {
			slog.Error("Failed to mark interview as failed", "interview_id", interview.ID, "error", markErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrPlanGeneration, err)
	}

	questions := plan.Questions()
	if err := s.repo.ActivateInterview(ctx, interview.ID, questions, plan.Metadata()); err != nil {
		if markErr := s.repo.MarkInterviewError(context.WithoutCancel(ctx), interview.ID, err.Error()); markErr != nil {
			slog.Error("Failed to mark interview as failed", "interview_id", interview.ID, "error", markErr)
		}
		return nil, err
	}

	views := make([]QuestionView, len(questions))
	for i, q := range questions {
		views[i] = viewOf(q)
	}

	slog.Info("Interview started",
		"interview_id", interview.ID,
		"skills", len(plan.Skills),
		"questions", len(questions))

	return &StartResult{
		InterviewID:       interview.ID,
		CandidateName:     interview.CandidateName,
		Status:            models.StatusActive,
		Skills:            plan.Skills,
		QuestionsPerSkill: perSkill,
		TotalQuestions:    len(questions),
		SkillQuestionMap:  plan.Blocks,
		Questions:         views,
	}, nil
}

// SkillProgress is one skill's answered count
type SkillProgress struct {
	Skill              string              `json:"skill"`
	StartIndex         int                 `json:"start_index"`
	EndIndex           int                 `json:"end_index"`
	QuestionCount      int                 `json:"question_count"`
	QuestionsCompleted int                 `json:"questions_completed"`
	Rating             *models.SkillRating `json:"rating,omitempty"`
}

type QuestionSet struct {
	InterviewID   uint            `json:"interview_id"`
	CandidateName string          `json:"candidate_name"`
	SkillArea     string          `json:"skill_area"`
	Status        string          `json:"status"`
	Answered      int             `json:"answered"`
	Total         int             `json:"total"`
	Skills        []SkillProgress `json:"skills"`
	Questions     []QuestionView  `json:"questions"`
}

// GetQuestions returns the question set with progress counted from the rows
func (s *Service) GetQuestions(ctx context.Context, interviewID uint) (*QuestionSet, error) {
	interview, err := s.repo.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	md, err := interview.DecodeMetadata()
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.GetQuestions(ctx, interviewID)
	if err != nil {
		return nil, err
	}

	set := &QuestionSet{
		InterviewID:   interview.ID,
		CandidateName: interview.CandidateName,
		SkillArea:     interview.SkillArea,
		Status:        interview.Status,
		Total:         len(questions),
		Skills:        make([]SkillProgress, 0, len(md.SkillsAssessed)),
		Questions:     make([]QuestionView, len(questions)),
	}

	answeredBySkill := make(map[string]int)
	for i, q := range questions {
		set.Questions[i] = viewOf(q)
		if q.Answered() {
			set.Answered++
			answeredBySkill[q.QuestionType]++
		}
	}

	for _, skill := range md.SkillsAssessed {
		block := md.SkillQuestionMap[skill]
		sp := SkillProgress{
			Skill:              skill,
			StartIndex:         block.StartIndex,
			EndIndex:           block.EndIndex,
			QuestionCount:      block.QuestionCount,
			QuestionsCompleted: answeredBySkill[skill],
		}
		if r, ok := md.Rating(skill); ok {
			sp.Rating = &r
		}
		set.Skills = append(set.Skills, sp)
	}
	return set, nil
}

type SubmitInput struct {
	InterviewID uint
	QuestionID  uint
	Response    string
}

type SubmitResult struct {
	InterviewID       uint               `json:"interview_id"`
	QuestionID        uint               `json:"question_id"`
	Skill             string             `json:"skill"`
	Evaluation        models.Evaluation  `json:"evaluation"`
	SkillRatingUpdate *SkillRatingUpdate `json:"skill_rating_update"`
	Progress          *Progress          `json:"progress"`
}

// Submit evaluates and stores one response, then recomputes the skill rating
// and interview completion. The whole sequence holds the interview lock.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	unlock, err := s.locker.Lock(ctx, interviewLockKey(in.InterviewID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	interview, err := s.repo.GetInterview(ctx, in.InterviewID)
	if err != nil {
		return nil, err
	}
	if interview.Status != models.StatusActive && interview.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrInterviewNotActive, interview.Status)
	}
	md, err := interview.DecodeMetadata()
	if err != nil {
		return nil, err
	}

	question, err := s.repo.GetQuestion(ctx, in.InterviewID, in.QuestionID)
	if err != nil {
		return nil, err
	}
	skill := question.QuestionType

	evaluation := s.evaluator.Evaluate(ctx, evaluator.Input{
		Question:     question.Question,
		Response:     in.Response,
		QuestionType: evaluator.TypeSkillSpecific,
		Skill:        skill,
		JobContext:   planner.JobContext(md.SkillsAssessed, interview.SkillArea),
	})

	if err := s.repo.SaveEvaluatedResponse(ctx, question.ID, in.Response, evaluation); err != nil {
		return nil, err
	}

	update, err := s.aggregator.Update(ctx, in.InterviewID, skill)
	if err != nil {
		return nil, err
	}
	progress, err := s.progress.Recompute(ctx, in.InterviewID)
	if err != nil {
		return nil, err
	}

	slog.Info("Response submitted",
		"interview_id", in.InterviewID,
		"question_id", question.ID,
		"skill", skill,
		"score", evaluation.Score,
		"heuristic", evaluation.Heuristic(),
		"answered", progress.Answered,
		"total", progress.Total)

	if s.publisher != nil {
		s.publisher.Publish(in.InterviewID, ProgressEvent{
			Type:        "progress",
			InterviewID: in.InterviewID,
			QuestionID:  question.ID,
			Score:       evaluation.Score,
			Progress:    progress,
			SkillUpdate: update,
		})
	}

	return &SubmitResult{
		InterviewID:       in.InterviewID,
		QuestionID:        question.ID,
		Skill:             skill,
		Evaluation:        evaluation,
		SkillRatingUpdate: update,
		Progress:          progress,
	}, nil
}

// QuestionResult is one answered or unanswered question in the results
type QuestionResult struct {
	QuestionView
	Evaluation *models.Evaluation `json:"evaluation,omitempty"`
}

type Results struct {
	InterviewID       uint                   `json:"interview_id"`
	CandidateName     string                 `json:"candidate_name"`
	SkillArea         string                 `json:"skill_area"`
	Status            string                 `json:"status"`
	Answered          int                    `json:"answered"`
	Total             int                    `json:"total"`
	SkillRatings      []models.SkillRating   `json:"skill_ratings"`
	OverallRating     OverallRating          `json:"overall_rating"`
	Recommendations   Recommendations        `json:"recommendations"`
	AssessmentDetails AssessmentDetails      `json:"assessment_details"`
	Questions         []QuestionResult       `json:"questions"`
	CardGeneration    *models.CardGeneration `json:"card_generation,omitempty"`
	CardError         string                 `json:"card_generation_error,omitempty"`
}

// Results aggregates ratings and, as a side effect, makes sure skill cards
// were generated once. Card failures never fail the call.
func (s *Service) Results(ctx context.Context, interviewID uint) (*Results, error) {
	interview, err := s.repo.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	md, err := interview.DecodeMetadata()
	if err != nil {
		return nil, err
	}

	if interview.Status == models.StatusActive || interview.Status == models.StatusCompleted {
		md, err = s.aggregator.EnsureRatings(ctx, interviewID, md)
		if err != nil {
			return nil, err
		}
	}

	questions, err := s.repo.GetQuestions(ctx, interviewID)
	if err != nil {
		return nil, err
	}

	ratings := orderedRatings(md)
	results := &Results{
		InterviewID:       interview.ID,
		CandidateName:     interview.CandidateName,
		SkillArea:         interview.SkillArea,
		Status:            interview.Status,
		Total:             len(questions),
		SkillRatings:      ratings,
		OverallRating:     Overall(ratings),
		Recommendations:   Recommend(ratings),
		AssessmentDetails: Details(md, ratings),
		Questions:         make([]QuestionResult, len(questions)),
	}
	for i, q := range questions {
		qr := QuestionResult{QuestionView: viewOf(q)}
		if q.Answered() {
			results.Answered++
			evaluation, err := models.DecodeEvaluation(q.Evaluation)
			if err != nil {
				slog.Warn("Failed to decode stored evaluation", "question_id", q.ID, "error", err)
			}
			qr.Evaluation = evaluation
		}
		results.Questions[i] = qr
	}

	if s.cards != nil {
		cg, err := s.cards.Ensure(ctx, interviewID)
		if err != nil {
			slog.Error("Failed to ensure skill cards", "interview_id", interviewID, "error", err)
			results.CardError = err.Error()
		}
		results.CardGeneration = cg
	}
	return results, nil
}

// List returns recent interviews, newest first
func (s *Service) List(ctx context.Context, limit int) ([]models.InterviewSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.ListRecentInterviews(ctx, limit)
}

// ResetSkillRating clears a skill's cached rating and recomputes it
func (s *Service) ResetSkillRating(ctx context.Context, interviewID uint, skill string) (*SkillRatingUpdate, error) {
	unlock, err := s.locker.Lock(ctx, interviewLockKey(interviewID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	interview, err := s.repo.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	md, err := interview.DecodeMetadata()
	if err != nil {
		return nil, err
	}
	if _, ok := md.SkillQuestionMap[skill]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, skill)
	}

	return s.aggregator.Reset(ctx, interviewID, skill)
}

func interviewLockKey(id uint) string {
	return fmt.Sprintf("interview:%d", id)
}
