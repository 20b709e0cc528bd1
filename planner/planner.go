// Package planner turns a free-text skill list into an ordered question plan
// with one contiguous block per skill.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krshsl/skillcards/backend/metrics"
	"github.com/krshsl/skillcards/backend/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQuestionsPerSkill = 3
	DefaultConcurrency       = 4
)

var ErrInvalidCount = errors.New("questions per skill must be positive")

// QuestionSource generates raw question text for one skill
type QuestionSource interface {
	GenerateQuestions(ctx context.Context, skill, jobContext string, count int) (string, error)
}

// Entry is one planned question
type Entry struct {
	Question    string
	Skill       string
	SkillIndex  int // 1-based within the skill
	GlobalOrder int // 1-based within the plan
	Source      string
}

// Plan is the full question batch for an interview
type Plan struct {
	Skills            []string
	QuestionsPerSkill int
	JobContext        string
	Entries           []Entry
	Blocks            map[string]models.SkillBlock
}

// Metadata returns the initial metadata document for the plan
func (p *Plan) Metadata() models.Metadata {
	md := models.NewMetadata()
	md.SkillsAssessed = append([]string(nil), p.Skills...)
	md.QuestionsPerSkill = p.QuestionsPerSkill
	md.TotalQuestions = len(p.Entries)
	for skill, block := range p.Blocks {
		md.SkillQuestionMap[skill] = block
	}
	return md
}

// Questions converts the plan entries into rows ready for insertion
func (p *Plan) Questions() []models.InterviewQuestion {
	questions := make([]models.InterviewQuestion, len(p.Entries))
	for i, e := range p.Entries {
		questions[i] = models.InterviewQuestion{
			Question:     e.Question,
			QuestionType: e.Skill,
			SkillIndex:   e.SkillIndex,
			GlobalOrder:  e.GlobalOrder,
			Source:       e.Source,
		}
	}
	return questions
}

type Planner struct {
	source      QuestionSource
	concurrency int
}

// NewPlanner creates a planner. A nil source plans from templates only.
func NewPlanner(source QuestionSource, concurrency int) *Planner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Planner{source: source, concurrency: concurrency}
}

// Plan generates n questions for every skill in skillsInput. Skills are
// generated concurrently; a failing skill falls back to templates without
// affecting the others.
func (p *Planner) Plan(ctx context.Context, skillsInput, skillArea string, n int) (*Plan, error) {
	if n <= 0 {
		return nil, ErrInvalidCount
	}

	skills := ParseSkills(skillsInput)
	jobContext := JobContext(skills, skillArea)

	batches := make([][]string, len(skills))
	sources := make([]string, len(skills))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, skill := range skills {
		g.Go(func() error {
			batches[i], sources[i] = p.generate(gctx, skill, jobContext, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to plan questions: %w", err)
	}

	plan := &Plan{
		Skills:            skills,
		QuestionsPerSkill: n,
		JobContext:        jobContext,
		Entries:           make([]Entry, 0, len(skills)*n),
		Blocks:            make(map[string]models.SkillBlock, len(skills)),
	}
	for i, skill := range skills {
		start := len(plan.Entries)
		for j, q := range batches[i] {
			plan.Entries = append(plan.Entries, Entry{
				Question:    q,
				Skill:       skill,
				SkillIndex:  j + 1,
				GlobalOrder: len(plan.Entries) + 1,
				Source:      sources[i],
			})
		}
		plan.Blocks[skill] = models.SkillBlock{
			StartIndex:    start,
			EndIndex:      len(plan.Entries),
			QuestionCount: len(plan.Entries) - start,
		}
		metrics.QuestionsPlanned(sources[i], len(batches[i]))
	}

	slog.Info("Question plan generated", "skills", len(skills), "questions", len(plan.Entries))
	return plan, nil
}

func (p *Planner) generate(ctx context.Context, skill, jobContext string, n int) ([]string, string) {
	if p.source == nil {
		return FallbackQuestions(skill, n), SourceTemplate
	}

	content, err := p.source.GenerateQuestions(ctx, skill, jobContext, n)
	if err != nil {
		slog.Warn("Question generation failed, using templates", "skill", skill, "error", err)
		return FallbackQuestions(skill, n), SourceTemplate
	}

	questions, source, ok := ParseQuestions(content, n)
	if !ok {
		slog.Warn("Failed to parse generated questions, using templates", "skill", skill, "response_length", len(content))
		return FallbackQuestions(skill, n), SourceTemplate
	}
	return questions, source
}
