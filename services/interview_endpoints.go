package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/krshsl/skillcards/backend/assessment"
	"github.com/krshsl/skillcards/backend/models"
	"github.com/krshsl/skillcards/backend/repository"
)

// InterviewService is the workflow the endpoints drive
type InterviewService interface {
	Start(ctx context.Context, in assessment.StartInput) (*assessment.StartResult, error)
	GetQuestions(ctx context.Context, interviewID uint) (*assessment.QuestionSet, error)
	Submit(ctx context.Context, in assessment.SubmitInput) (*assessment.SubmitResult, error)
	Results(ctx context.Context, interviewID uint) (*assessment.Results, error)
	List(ctx context.Context, limit int) ([]models.InterviewSummary, error)
	ResetSkillRating(ctx context.Context, interviewID uint, skill string) (*assessment.SkillRatingUpdate, error)
}

type InterviewEndpoints struct {
	service  InterviewService
	validate *validator.Validate
}

func NewInterviewEndpoints(service InterviewService) *InterviewEndpoints {
	return &InterviewEndpoints{
		service:  service,
		validate: validator.New(),
	}
}

type StartInterviewRequest struct {
	CandidateName     string `json:"candidate_name" validate:"required,max=200"`
	Skills            string `json:"skills" validate:"max=2000"`
	SkillArea         string `json:"skill_area" validate:"max=200"`
	QuestionsPerSkill int    `json:"questions_per_skill" validate:"omitempty,min=1,max=10"`
}

type SubmitResponseRequest struct {
	InterviewID uint   `json:"interview_id" validate:"required"`
	QuestionID  uint   `json:"question_id" validate:"required"`
	Response    string `json:"response" validate:"required,max=20000"`
}

type ListInterviewsResponse struct {
	Interviews []models.InterviewSummary `json:"interviews"`
	Count      int                       `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes mounts the handlers on a router already scoped to /interviews
func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/start", e.StartHandler)
	r.Get("/list", e.ListHandler)
	r.Post("/submit-response", e.SubmitResponseHandler)
	r.Get("/{id}/questions", e.QuestionsHandler)
	r.Get("/{id}/results", e.ResultsHandler)
	r.Delete("/{id}/skills/{skill}/rating", e.ResetSkillRatingHandler)
}

func (e *InterviewEndpoints) StartHandler(w http.ResponseWriter, r *http.Request) {
	var req StartInterviewRequest
	if !e.decode(w, r, &req) {
		return
	}

	result, err := e.service.Start(r.Context(), assessment.StartInput{
		CandidateName:     req.CandidateName,
		SkillsInput:       req.Skills,
		SkillArea:         req.SkillArea,
		QuestionsPerSkill: req.QuestionsPerSkill,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to start interview")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (e *InterviewEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	interviews, err := e.service.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err, "Failed to list interviews")
		return
	}

	writeJSON(w, http.StatusOK, ListInterviewsResponse{Interviews: interviews, Count: len(interviews)})
}

func (e *InterviewEndpoints) QuestionsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := interviewIDParam(w, r)
	if !ok {
		return
	}

	set, err := e.service.GetQuestions(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get questions")
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (e *InterviewEndpoints) SubmitResponseHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitResponseRequest
	if !e.decode(w, r, &req) {
		return
	}

	result, err := e.service.Submit(r.Context(), assessment.SubmitInput{
		InterviewID: req.InterviewID,
		QuestionID:  req.QuestionID,
		Response:    req.Response,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to submit response")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *InterviewEndpoints) ResultsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := interviewIDParam(w, r)
	if !ok {
		return
	}

	results, err := e.service.Results(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "Failed to get results")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (e *InterviewEndpoints) ResetSkillRatingHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := interviewIDParam(w, r)
	if !ok {
		return
	}
	skill := chi.URLParam(r, "skill")
	// chi routes on RawPath when set, so an escaped slash arrives still encoded
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(skill)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid skill"})
			return
		}
		skill = unescaped
	}

	update, err := e.service.ResetSkillRating(r.Context(), id, skill)
	if err != nil {
		writeServiceError(w, err, "Failed to reset skill rating")
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (e *InterviewEndpoints) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	if err := e.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

func interviewIDParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid interview ID"})
		return 0, false
	}
	return uint(id), true
}

// writeServiceError maps workflow errors onto status codes
func writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, assessment.ErrInterviewNotActive):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, assessment.ErrUnknownSkill):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, context.Canceled):
		slog.Warn(message, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request cancelled"})
	default:
		slog.Error(message, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: message})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
