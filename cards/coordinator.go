// Package cards generates one skill card image per rated skill, at most once
// per interview, and caches the outcome in the interview metadata.
package cards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/krshsl/skillcards/backend/locks"
	"github.com/krshsl/skillcards/backend/metrics"
	"github.com/krshsl/skillcards/backend/models"
	"github.com/krshsl/skillcards/backend/scoring"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 3

var (
	ErrGeneratorUnavailable = errors.New("card image generator not configured")
	ErrNoRatings            = errors.New("no skill ratings available")
	ErrRatingsIncomplete    = errors.New("skill ratings incomplete")
	ErrAllFailed            = errors.New("card generation failed for every skill")
)

// CardImage is a rendered card returned by the generator
type CardImage struct {
	Data        []byte
	MIMEType    string
	Description string
	Prompt      string
}

// ImageGenerator renders the card for one skill
type ImageGenerator interface {
	GenerateCard(ctx context.Context, skill, rarity string) (*CardImage, error)
}

// Repository is the slice of the interview store the coordinator needs
type Repository interface {
	GetInterview(ctx context.Context, id uint) (*models.Interview, error)
	MergeMetadata(ctx context.Context, id uint, fn func(md *models.Metadata) bool) (models.Metadata, error)
}

type Coordinator struct {
	repo        Repository
	generator   ImageGenerator
	store       ArtifactStore
	locker      locks.Locker
	concurrency int
}

// NewCoordinator creates a coordinator. A nil generator or store records a
// "not configured" result instead of generating.
func NewCoordinator(repo Repository, generator ImageGenerator, store ArtifactStore, locker locks.Locker, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if locker == nil {
		locker = locks.NewMemoryLocker()
	}
	return &Coordinator{
		repo:        repo,
		generator:   generator,
		store:       store,
		locker:      locker,
		concurrency: concurrency,
	}
}

// Available reports whether card images can be generated
func (c *Coordinator) Available() bool {
	return c.generator != nil && c.store != nil
}

// Ensure returns the cached card result for an interview, generating and
// storing it first if none exists. Cards wait until every assessed skill is
// rated; "no ratings" and "incomplete" results are not stored.
func (c *Coordinator) Ensure(ctx context.Context, interviewID uint) (*models.CardGeneration, error) {
	unlock, err := c.locker.Lock(ctx, fmt.Sprintf("interview:%d:cards", interviewID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	interview, err := c.repo.GetInterview(ctx, interviewID)
	if err != nil {
		return nil, err
	}
	md, err := interview.DecodeMetadata()
	if err != nil {
		return nil, err
	}

	if md.CardGeneration != nil {
		return md.CardGeneration, nil
	}

	ratings := orderedRatings(md)
	if len(ratings) == 0 {
		return &models.CardGeneration{
			CardsGenerated: false,
			Reason:         ErrNoRatings.Error(),
			GeneratedCards: []models.GeneratedCard{},
			FailedCards:    []models.FailedCard{},
			GeneratedAt:    time.Now(),
		}, nil
	}

	if pending := unratedSkills(md); len(pending) > 0 {
		return &models.CardGeneration{
			CardsGenerated: false,
			Reason:         fmt.Sprintf("%s: %d of %d skills rated", ErrRatingsIncomplete, len(ratings), len(ratings)+len(pending)),
			TotalSkills:    len(ratings) + len(pending),
			GeneratedCards: []models.GeneratedCard{},
			FailedCards:    []models.FailedCard{},
			GeneratedAt:    time.Now(),
		}, nil
	}

	var result *models.CardGeneration
	if !c.Available() {
		slog.Warn("Card generation unavailable", "interview_id", interviewID)
		result = &models.CardGeneration{
			CardsGenerated: false,
			Reason:         ErrGeneratorUnavailable.Error(),
			TotalSkills:    len(ratings),
			GeneratedCards: []models.GeneratedCard{},
			FailedCards:    []models.FailedCard{},
			GeneratedAt:    time.Now(),
		}
	} else {
		result = c.generate(ctx, interviewID, ratings)
	}

	var stored *models.CardGeneration
	if _, err := c.repo.MergeMetadata(ctx, interviewID, func(md *models.Metadata) bool {
		var written bool
		stored, written = md.RecordCardGeneration(result)
		return written
	}); err != nil {
		return nil, fmt.Errorf("failed to store card generation: %w", err)
	}

	slog.Info("Card generation recorded",
		"interview_id", interviewID,
		"cards_generated", stored.CardsGenerated,
		"success_count", stored.SuccessCount,
		"failure_count", stored.FailureCount)
	return stored, nil
}

type outcome struct {
	card   *models.GeneratedCard
	failed *models.FailedCard
}

func (c *Coordinator) generate(ctx context.Context, interviewID uint, ratings []models.SkillRating) *models.CardGeneration {
	outcomes := make([]outcome, len(ratings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, rating := range ratings {
		g.Go(func() error {
			outcomes[i] = c.generateOne(gctx, interviewID, i+1, rating)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.CardGeneration{
		TotalSkills:    len(ratings),
		GeneratedCards: []models.GeneratedCard{},
		FailedCards:    []models.FailedCard{},
		GeneratedAt:    time.Now(),
	}
	for _, o := range outcomes {
		if o.card != nil {
			result.GeneratedCards = append(result.GeneratedCards, *o.card)
		} else {
			result.FailedCards = append(result.FailedCards, *o.failed)
		}
	}
	result.SuccessCount = len(result.GeneratedCards)
	result.FailureCount = len(result.FailedCards)

	if result.SuccessCount == 0 {
		result.Reason = ErrAllFailed.Error()
		return result
	}
	result.CardsGenerated = true

	mapping := &models.CardMapping{
		GeneratedAt: result.GeneratedAt,
		InterviewID: interviewID,
		TotalCards:  result.SuccessCount,
		Cards:       make(map[string]models.CardMappingEntry, result.SuccessCount),
	}
	for _, card := range result.GeneratedCards {
		mapping.Cards[card.Skill] = models.CardMappingEntry{
			SkillName:   card.Skill,
			StarRating:  card.StarRating,
			Rarity:      card.Rarity,
			Description: card.Description,
			ImageRef:    card.ImageRef,
			PromptUsed:  card.PromptUsed,
		}
	}
	result.Mapping = mapping

	ref, err := c.store.WriteIndex(ctx, interviewID, mapping)
	if err != nil {
		slog.Error("Failed to write card mapping", "interview_id", interviewID, "error", err)
		result.MappingError = err.Error()
	} else {
		result.MappingFile = ref
	}
	return result
}

func (c *Coordinator) generateOne(ctx context.Context, interviewID uint, position int, rating models.SkillRating) outcome {
	rarity := scoring.Rarity(rating.StarRating)
	fail := func(err error) outcome {
		slog.Warn("Card generation failed", "interview_id", interviewID, "skill", rating.Skill, "error", err)
		metrics.CardGenerated(false)
		return outcome{failed: &models.FailedCard{
			Skill:      rating.Skill,
			StarRating: rating.StarRating,
			Rarity:     rarity,
			Error:      err.Error(),
		}}
	}

	image, err := c.generator.GenerateCard(ctx, rating.Skill, rarity)
	if err != nil {
		return fail(err)
	}
	if image == nil || len(image.Data) == 0 {
		return fail(errors.New("generator returned no image data"))
	}

	name := ArtifactName(position, rating.Skill, rarity, image.MIMEType)
	ref, err := c.store.WriteArtifact(ctx, interviewID, name, image.Data, image.MIMEType)
	if err != nil {
		return fail(err)
	}

	description := image.Description
	if description == "" {
		description = StarDescription(rating.Skill, rating.StarRating)
	}

	metrics.CardGenerated(true)
	return outcome{card: &models.GeneratedCard{
		Skill:       rating.Skill,
		StarRating:  rating.StarRating,
		Rarity:      rarity,
		Description: description,
		ImageRef:    ref,
		PromptUsed:  image.Prompt,
	}}
}

func unratedSkills(md models.Metadata) []string {
	var pending []string
	for _, skill := range md.SkillsAssessed {
		if _, ok := md.SkillRatings[skill]; !ok {
			pending = append(pending, skill)
		}
	}
	return pending
}

// orderedRatings lists ratings in skill order, then any unlisted skills by name
func orderedRatings(md models.Metadata) []models.SkillRating {
	ratings := make([]models.SkillRating, 0, len(md.SkillRatings))
	seen := make(map[string]bool, len(md.SkillRatings))

	for _, skill := range md.SkillsAssessed {
		if r, ok := md.SkillRatings[skill]; ok && !seen[skill] {
			r.Skill = skill
			ratings = append(ratings, r)
			seen[skill] = true
		}
	}

	var rest []string
	for skill := range md.SkillRatings {
		if !seen[skill] {
			rest = append(rest, skill)
		}
	}
	sort.Strings(rest)
	for _, skill := range rest {
		r := md.SkillRatings[skill]
		r.Skill = skill
		ratings = append(ratings, r)
	}
	return ratings
}
