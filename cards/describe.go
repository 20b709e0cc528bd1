package cards

import (
	"fmt"
	"regexp"
	"strings"
)

var descriptionTemplates = map[int]string{
	5: "Master-level expertise in %s. This legendary skill demonstrates exceptional proficiency and deep understanding.",
	4: "Advanced proficiency in %s. This epic skill shows strong capabilities and experience.",
	3: "Solid competence in %s. This rare skill indicates good knowledge and practical ability.",
	2: "Basic proficiency in %s. This uncommon skill shows foundational understanding.",
	1: "Entry-level knowledge in %s. This common skill represents initial learning and experience.",
}

// StarDescription is the card text used when the generator supplies none
func StarDescription(skill string, stars int) string {
	if stars > 5 {
		stars = 5
	}
	if stars < 1 {
		stars = 1
	}
	return fmt.Sprintf(descriptionTemplates[stars], skill)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// ArtifactName builds a unique file name for a skill card. The position
// prefix keeps skills that slug identically apart.
func ArtifactName(position int, skill, rarity, mimeType string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(skill), "_"), "_")
	if slug == "" {
		slug = "skill"
	}
	return fmt.Sprintf("%02d_%s_%s%s", position, slug, strings.ToLower(rarity), extension(mimeType))
}

func extension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
