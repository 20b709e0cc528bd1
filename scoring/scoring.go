// Package scoring maps 1-10 evaluation scores onto star ratings, proficiency
// labels and card rarity tiers. Every caller goes through Classify so the
// thresholds exist in exactly one place.
package scoring

const (
	LevelExpert       = "Expert"
	LevelAdvanced     = "Advanced"
	LevelIntermediate = "Intermediate"
	LevelBeginner     = "Beginner"
	LevelNovice       = "Novice"
)

const (
	RarityLegendary = "Legendary"
	RarityEpic      = "Epic"
	RarityRare      = "Rare"
	RarityUncommon  = "Uncommon"
	RarityCommon    = "Common"
)

// Band is one row of the score policy
type Band struct {
	Stars int
	Level string
}

var bands = []struct {
	min  float64
	band Band
}{
	{9, Band{Stars: 5, Level: LevelExpert}},
	{7, Band{Stars: 4, Level: LevelAdvanced}},
	{5, Band{Stars: 3, Level: LevelIntermediate}},
	{3, Band{Stars: 2, Level: LevelBeginner}},
}

// Classify returns the band for a score. Scores below 3 are Novice.
func Classify(score float64) Band {
	for _, b := range bands {
		if score >= b.min {
			return b.band
		}
	}
	return Band{Stars: 1, Level: LevelNovice}
}

// Stars converts a 1-10 score to a 1-5 star rating
func Stars(score float64) int {
	return Classify(score).Stars
}

// Proficiency converts a 1-10 score to its proficiency label
func Proficiency(score float64) string {
	return Classify(score).Level
}

// LevelForStars returns the proficiency label that parallels a star rating.
// Out of range values are clamped to 1..5.
func LevelForStars(stars int) string {
	switch {
	case stars >= 5:
		return LevelExpert
	case stars == 4:
		return LevelAdvanced
	case stars == 3:
		return LevelIntermediate
	case stars == 2:
		return LevelBeginner
	default:
		return LevelNovice
	}
}

// Rarity maps a star rating to the cosmetic card tier
func Rarity(stars int) string {
	switch {
	case stars >= 5:
		return RarityLegendary
	case stars == 4:
		return RarityEpic
	case stars == 3:
		return RarityRare
	case stars == 2:
		return RarityUncommon
	default:
		return RarityCommon
	}
}
