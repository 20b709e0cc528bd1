package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/krshsl/skillcards/backend/cards"
	"github.com/krshsl/skillcards/backend/evaluator"
	"google.golang.org/genai"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
	DefaultTimeout    = 30 * time.Second
	providerName      = "gemini"
)

// GeminiConfig configures a GeminiService
type GeminiConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
	Timeout    time.Duration
}

// GeminiService implements the question source, evaluation service and card
// image generator against the Gemini API
type GeminiService struct {
	genaiClient *genai.Client
	prompts     *PromptManager
	textModel   string
	imageModel  string
	timeout     time.Duration
}

func NewGeminiService(ctx context.Context, cfg GeminiConfig, prompts *PromptManager) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, &ProviderError{Provider: providerName, Code: ErrCodeAPIKey, Message: "API key not configured"}
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ProviderError{
			Provider: providerName,
			Code:     ErrCodeAPIKey,
			Message:  "Failed to create Gemini client",
			Err:      err,
		}
	}

	service := &GeminiService{
		genaiClient: genaiClient,
		prompts:     prompts,
		textModel:   cfg.TextModel,
		imageModel:  cfg.ImageModel,
		timeout:     cfg.Timeout,
	}
	if service.textModel == "" {
		service.textModel = DefaultTextModel
	}
	if service.imageModel == "" {
		service.imageModel = DefaultImageModel
	}
	if service.timeout <= 0 {
		service.timeout = DefaultTimeout
	}
	return service, nil
}

// GenerateQuestions asks the text model for count questions about one skill
// and returns the raw model output
func (g *GeminiService) GenerateQuestions(ctx context.Context, skill, jobContext string, count int) (string, error) {
	system, user, err := g.prompts.Render(PromptQuestions, map[string]string{
		"Skill":   skill,
		"Context": jobContext,
		"Count":   strconv.Itoa(count),
	})
	if err != nil {
		return "", err
	}

	text, err := g.generateText(ctx, system, user, 0.7)
	if err != nil {
		return "", fmt.Errorf("failed to generate questions: %w", err)
	}

	slog.Info("Generated skill questions", "skill", skill, "response_length", len(text))
	return text, nil
}

// Evaluate scores one response and returns the raw model output
func (g *GeminiService) Evaluate(ctx context.Context, req evaluator.Request) (string, error) {
	jobContext := ""
	if req.Context != "" {
		jobContext = "JOB DESCRIPTION:\n" + req.Context + "\n\n"
	}

	_, user, err := g.prompts.Render(PromptEvaluation, map[string]string{
		"Context":  jobContext,
		"Question": req.Question,
		"Response": req.Response,
	})
	if err != nil {
		return "", err
	}

	text, err := g.generateText(ctx, req.SystemRole, user, 0.3)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate response: %w", err)
	}
	return text, nil
}

// GenerateCard writes an image prompt and description for the skill, then
// renders the card image from that prompt
func (g *GeminiService) GenerateCard(ctx context.Context, skill, rarity string) (*cards.CardImage, error) {
	system, user, err := g.prompts.Render(PromptCard, map[string]string{
		"Skill":  skill,
		"Rarity": rarity,
	})
	if err != nil {
		return nil, err
	}

	imagePrompt, description := FallbackCardPrompt(skill, rarity)
	if text, err := g.generateText(ctx, system, user, 0.8); err != nil {
		slog.Warn("Failed to generate card prompt, using fallback", "skill", skill, "error", err)
	} else {
		imagePrompt, description = ParseCardPrompt(text, skill, rarity)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.imageModel, genai.Text(imagePrompt), config)
	if err != nil {
		return nil, g.wrapError(err, "Failed to generate card image")
	}

	blob := firstInlineData(result)
	if blob == nil {
		return nil, &ProviderError{Provider: providerName, Code: ErrCodeEmpty, Message: "No image data in response"}
	}

	slog.Info("Generated card image", "skill", skill, "rarity", rarity, "size", len(blob.Data))
	return &cards.CardImage{
		Data:        blob.Data,
		MIMEType:    blob.MIMEType,
		Description: description,
		Prompt:      imagePrompt,
	}, nil
}

func (g *GeminiService) generateText(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.textModel, genai.Text(prompt), config)
	if err != nil {
		return "", g.wrapError(err, "Failed to generate content")
	}
	if result == nil {
		return "", &ProviderError{Provider: providerName, Code: ErrCodeEmpty, Message: "No response generated"}
	}

	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", &ProviderError{Provider: providerName, Code: ErrCodeEmpty, Message: "Empty response generated"}
	}
	return text, nil
}

func (g *GeminiService) wrapError(err error, message string) error {
	code := ErrCodeServiceDown
	if errors.Is(err, context.DeadlineExceeded) {
		code = ErrCodeTimeout
	}
	return &ProviderError{Provider: providerName, Code: code, Message: message, Err: err}
}

func firstInlineData(result *genai.GenerateContentResponse) *genai.Blob {
	if result == nil {
		return nil
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData
			}
		}
	}
	return nil
}

// FallbackCardPrompt is the prompt and description used when the text model
// gives nothing usable
func FallbackCardPrompt(skill, rarity string) (string, string) {
	tier := strings.ToLower(rarity)
	prompt := fmt.Sprintf("Generate an image of someone demonstrating %s skills. Use %s color palette. "+
		"Style should be clean digital illustration suitable for a skill card. "+
		"300x160 aspect ratio, landscape orientation. No text or UI elements.", skill, tier)
	description := fmt.Sprintf("Demonstrates proficiency in %s. A %s skill that requires dedication and practice to master.", skill, tier)
	return prompt, description
}

// ParseCardPrompt extracts the IMAGE_PROMPT and SKILL_DESCRIPTION lines.
// A missing line is replaced by its fallback.
func ParseCardPrompt(text, skill, rarity string) (string, string) {
	prompt, description := FallbackCardPrompt(skill, rarity)

	var foundPrompt, foundDescription string
	current := ""
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "IMAGE_PROMPT:"):
			foundPrompt = strings.TrimSpace(strings.TrimPrefix(line, "IMAGE_PROMPT:"))
			current = "prompt"
		case strings.HasPrefix(line, "SKILL_DESCRIPTION:"):
			foundDescription = strings.TrimSpace(strings.TrimPrefix(line, "SKILL_DESCRIPTION:"))
			current = "description"
		case line == "":
			current = ""
		case current == "description":
			// Descriptions may wrap over several lines
			foundDescription += " " + line
		}
	}

	if foundPrompt != "" {
		prompt = foundPrompt
	}
	if foundDescription != "" {
		description = foundDescription
	}
	return prompt, description
}
