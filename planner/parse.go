package planner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Question sources, recorded on every planned question
const (
	SourceLLM         = "llm"
	SourceParsedLines = "parsed_lines"
	SourceTemplate    = "template"
)

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n\\s*```")
	listMarker  = regexp.MustCompile(`^(\d+\.|\*|-|•)\s+`)
)

var fallbackTemplates = []string{
	"How would you rate your proficiency in %s and why?",
	"Describe a challenging situation where you had to use your %s skills.",
	"What are the most important aspects to consider when applying %s?",
	"How do you stay updated with best practices in %s?",
	"Tell me about a project where %s was crucial to success.",
}

// ParseQuestions extracts n questions from raw model output. It tries a JSON
// array, then a fenced JSON block, then numbered or bulleted lines that
// contain a question mark. ok is false when no strategy yields n questions.
func ParseQuestions(content string, n int) (questions []string, source string, ok bool) {
	if n <= 0 {
		return nil, "", false
	}

	if qs := decodeArray(strings.TrimSpace(content)); len(qs) >= n {
		return qs[:n], SourceLLM, true
	}

	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		if qs := decodeArray(strings.TrimSpace(m[1])); len(qs) >= n {
			return qs[:n], SourceLLM, true
		}
	}

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !listMarker.MatchString(line) {
			continue
		}
		q := strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if q != "" && strings.Contains(q, "?") {
			lines = append(lines, q)
		}
	}
	if len(lines) >= n {
		return lines[:n], SourceParsedLines, true
	}

	return nil, "", false
}

// decodeArray accepts an array of strings or of objects with a "question" field
func decodeArray(text string) []string {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil
	}

	questions := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			var obj struct {
				Question string `json:"question"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				continue
			}
			s = obj.Question
		}
		if s = strings.TrimSpace(s); s != "" {
			questions = append(questions, s)
		}
	}
	return questions
}

// FallbackQuestions returns n template questions for a skill, cycling
// through the template pool
func FallbackQuestions(skill string, n int) []string {
	questions := make([]string, n)
	for i := range questions {
		questions[i] = fmt.Sprintf(fallbackTemplates[i%len(fallbackTemplates)], skill)
	}
	return questions
}
