// Package evaluator scores candidate responses through an evaluation service
// and always returns a complete models.Evaluation, falling back to a
// length-based heuristic when the service fails or returns junk.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/krshsl/skillcards/backend/metrics"
	"github.com/krshsl/skillcards/backend/models"
)

// Question types that select the system role
const (
	TypeTechnical     = "technical"
	TypeBehavioral    = "behavioral"
	TypeJobSpecific   = "job_specific"
	TypeSkillSpecific = "skill_specific"
)

var systemRoles = map[string]string{
	TypeTechnical: "You are an expert technical interviewer. Evaluate the candidate's response to a technical interview question, " +
		"focusing on accuracy, depth of knowledge, problem-solving skills, and clarity.",
	TypeBehavioral: "You are an expert behavioral interviewer. Evaluate the candidate's response to a behavioral question, " +
		"focusing on the STAR method (Situation, Task, Action, Result), communication skills, and relevant experience.",
	TypeJobSpecific: "You are an expert job interviewer. Evaluate the candidate's response to a job-specific question, " +
		"focusing on their understanding of the role, relevant experience, and alignment with job requirements.",
}

const defaultRole = "You are an expert interviewer. Evaluate the candidate's response to an interview question, " +
	"focusing on content, clarity, and relevance."

// Request is what the evaluation service receives
type Request struct {
	SystemRole string
	Question   string
	Response   string
	Context    string
}

// Service returns the raw evaluation payload for a request
type Service interface {
	Evaluate(ctx context.Context, req Request) (string, error)
}

// Input describes one response to evaluate
type Input struct {
	Question     string
	Response     string
	QuestionType string
	Skill        string // Set for skill-specific questions
	JobContext   string
}

type Evaluator struct {
	service Service
}

// New creates an evaluator. A nil service scores every response heuristically.
func New(service Service) *Evaluator {
	return &Evaluator{service: service}
}

// SystemRole returns the system prompt for a question type
func SystemRole(questionType string) string {
	if role, ok := systemRoles[strings.ToLower(questionType)]; ok {
		return role
	}
	return defaultRole
}

// SkillContext is the evaluation context sentence for a skill question
func SkillContext(skill string) string {
	return fmt.Sprintf("This question specifically assesses the skill: %s. "+
		"Evaluate how well the response demonstrates knowledge and proficiency in %s.", skill, skill)
}

// Evaluate never fails. Upstream errors and unparseable payloads produce a
// heuristic evaluation with Error set.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) models.Evaluation {
	evaluation := e.evaluate(ctx, in)
	if in.Skill != "" {
		evaluation.AssessedSkill = in.Skill
		evaluation.SkillSpecific = true
	}
	metrics.EvaluationRecorded(evaluation.Heuristic())
	return evaluation
}

func (e *Evaluator) evaluate(ctx context.Context, in Input) models.Evaluation {
	if e.service == nil {
		return Heuristic(in.Response, "")
	}

	evalContext := in.JobContext
	if in.Skill != "" {
		evalContext = SkillContext(in.Skill)
		if in.JobContext != "" {
			evalContext += "\n\n" + in.JobContext
		}
	}

	raw, err := e.service.Evaluate(ctx, Request{
		SystemRole: SystemRole(in.QuestionType),
		Question:   in.Question,
		Response:   in.Response,
		Context:    evalContext,
	})
	if err != nil {
		slog.Warn("Evaluation service failed, using heuristic score", "skill", in.Skill, "error", err)
		return Heuristic(in.Response, "")
	}

	evaluation, err := Parse(raw)
	if err != nil {
		slog.Warn("Failed to parse evaluation, using heuristic score", "skill", in.Skill, "error", err)
		return Heuristic(in.Response, raw)
	}
	return evaluation
}

// Heuristic scores a response by word count
func Heuristic(response, rawLLMResponse string) models.Evaluation {
	words := len(strings.Fields(response))

	var score float64
	switch {
	case words < 10:
		score = 2
	case words < 25:
		score = 4
	case words < 50:
		score = 6
	case words < 100:
		score = 7
	default:
		score = 8
	}

	return models.Evaluation{
		Score:      score,
		Strengths:  []string{"Response provided"},
		Weaknesses: []string{"Unable to perform detailed analysis"},
		Feedback: "The system was unable to perform a detailed analysis of this response. " +
			"Basic evaluation provided based on response length and structure.",
		Error:          "LLM evaluation failed",
		RawLLMResponse: &rawLLMResponse,
	}
}
