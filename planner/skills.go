package planner

import (
	"fmt"
	"strings"
)

// DefaultSkill is used when the skill list is empty
const DefaultSkill = "general skills"

// ParseSkills splits a comma-separated skill list, trims each entry and drops
// case-insensitive duplicates. The first spelling seen is kept.
func ParseSkills(input string) []string {
	seen := make(map[string]struct{})
	var skills []string

	for _, raw := range strings.Split(input, ",") {
		skill := strings.TrimSpace(raw)
		if skill == "" {
			continue
		}
		key := strings.ToLower(skill)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, skill)
	}

	if len(skills) == 0 {
		return []string{DefaultSkill}
	}
	return skills
}

// JobContext builds the position description handed to the question source
// and the evaluator
func JobContext(skills []string, skillArea string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Position requiring expertise in %s.\n\n", strings.Join(skills, ", "))
	if area := strings.TrimSpace(skillArea); area != "" {
		fmt.Fprintf(&b, "Skill area: %s.\n\n", area)
	}
	b.WriteString("The ideal candidate should demonstrate proficiency in each of these areas:\n")
	for _, skill := range skills {
		fmt.Fprintf(&b, "- %s\n", skill)
	}
	b.WriteString("\nCandidates are assessed on depth of knowledge, problem-solving ability " +
		"and hands-on experience with each skill area.")

	return b.String()
}
