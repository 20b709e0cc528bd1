package assessment

import (
	"fmt"
	"math"

	"github.com/krshsl/skillcards/backend/models"
	"github.com/krshsl/skillcards/backend/scoring"
)

// OverallRating summarizes every rated skill
type OverallRating struct {
	AverageScore     float64 `json:"average_score"`
	StarRating       int     `json:"star_rating"`
	ProficiencyLevel string  `json:"proficiency_level"`
	SkillsRated      int     `json:"skills_rated"`
}

// Overall averages the stored skill ratings. Stars are the rounded mean of
// the skill stars. With no ratings it is 1 star, Novice.
func Overall(ratings []models.SkillRating) OverallRating {
	if len(ratings) == 0 {
		return OverallRating{StarRating: 1, ProficiencyLevel: scoring.LevelNovice}
	}

	var scoreSum float64
	var starSum int
	for _, r := range ratings {
		scoreSum += r.AverageScore
		starSum += r.StarRating
	}
	n := float64(len(ratings))
	stars := int(math.Round(float64(starSum) / n))

	return OverallRating{
		AverageScore:     round2(scoreSum / n),
		StarRating:       stars,
		ProficiencyLevel: scoring.LevelForStars(stars),
		SkillsRated:      len(ratings),
	}
}

// Recommendations are derived from per-skill ratings
type Recommendations struct {
	Strengths        []string `json:"strengths"`
	ImprovementAreas []string `json:"improvement_areas"`
	FocusAreas       []string `json:"focus_areas"`
}

func Recommend(ratings []models.SkillRating) Recommendations {
	rec := Recommendations{
		Strengths:        []string{},
		ImprovementAreas: []string{},
		FocusAreas:       []string{},
	}

	for _, r := range ratings {
		switch {
		case r.StarRating >= 4:
			rec.Strengths = append(rec.Strengths, fmt.Sprintf("Strong proficiency in %s (%d/5 stars)", r.Skill, r.StarRating))
		case r.StarRating <= 2:
			rec.ImprovementAreas = append(rec.ImprovementAreas, fmt.Sprintf("%s needs development (%d/5 stars)", r.Skill, r.StarRating))
		}

		switch r.ProficiencyLevel {
		case scoring.LevelExpert:
			rec.FocusAreas = append(rec.FocusAreas, "Consider mentoring others in "+r.Skill)
		case scoring.LevelIntermediate:
			rec.FocusAreas = append(rec.FocusAreas, "Practice advanced applications of "+r.Skill)
		case scoring.LevelBeginner:
			rec.FocusAreas = append(rec.FocusAreas, "Invest time in foundational learning for "+r.Skill)
		}
	}
	return rec
}

// AssessmentDetails reports how much of the plan has been rated
type AssessmentDetails struct {
	SkillsDefined        int      `json:"skills_defined"`
	SkillsAssessed       int      `json:"skills_assessed"`
	AssessmentCompletion string   `json:"assessment_completion"`
	SkillSummary         []string `json:"skill_summary"`
}

func Details(md models.Metadata, ratings []models.SkillRating) AssessmentDetails {
	details := AssessmentDetails{
		SkillsDefined:        len(md.SkillsAssessed),
		SkillsAssessed:       len(ratings),
		AssessmentCompletion: fmt.Sprintf("%d/%d", len(ratings), len(md.SkillsAssessed)),
		SkillSummary:         make([]string, 0, len(ratings)),
	}
	for _, r := range ratings {
		details.SkillSummary = append(details.SkillSummary,
			fmt.Sprintf("%s: %d/5 stars (%s)", r.Skill, r.StarRating, r.ProficiencyLevel))
	}
	return details
}

// orderedRatings returns stored ratings in plan order
func orderedRatings(md models.Metadata) []models.SkillRating {
	ratings := make([]models.SkillRating, 0, len(md.SkillRatings))
	for _, skill := range md.SkillsAssessed {
		if r, ok := md.Rating(skill); ok {
			r.Skill = skill
			ratings = append(ratings, r)
		}
	}
	return ratings
}
