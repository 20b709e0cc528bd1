package llm

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Template names
const (
	PromptQuestions  = "questions"
	PromptEvaluation = "evaluation"
	PromptCard       = "card"
)

// PromptTemplate is one YAML prompt file
type PromptTemplate struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// PromptManager renders the embedded prompt templates
type PromptManager struct {
	prompts map[string]PromptTemplate
}

// NewPromptManager loads every template in templates/
func NewPromptManager() (*PromptManager, error) {
	pm := &PromptManager{prompts: make(map[string]PromptTemplate)}

	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read templates directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := templateFS.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template file %s: %w", entry.Name(), err)
		}

		var tmpl PromptTemplate
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("failed to parse template file %s: %w", entry.Name(), err)
		}
		pm.prompts[strings.TrimSuffix(entry.Name(), ".yaml")] = tmpl
	}

	return pm, nil
}

// Render fills the {{.Key}} placeholders of a template's system and user parts
func (pm *PromptManager) Render(name string, vars map[string]string) (system, user string, err error) {
	tmpl, ok := pm.prompts[name]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", name)
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{."+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)

	return strings.TrimSpace(r.Replace(tmpl.System)), strings.TrimSpace(r.Replace(tmpl.User)), nil
}
