package analyze

import (
	"context"
	"fmt"

	"github.com/hollandm/glimpse/internal/config"
	"google.golang.org/genai"
)

// GeminiAnalyzer analyzes media through Vertex AI (Gemini). Models are
// tried in configured order; a model name the backend rejects (404) falls
// through to the next one.
type GeminiAnalyzer struct {
	client *genai.Client
	models []string
}

// NewGeminiAnalyzer creates an Analyzer backed by Vertex AI.
func NewGeminiAnalyzer(ctx context.Context, cfg config.AnalyzerConfig) (*GeminiAnalyzer, error) {
	if cfg.Project == "" || cfg.Location == "" {
		return nil, fmt.Errorf("analyze: project and location are required")
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("analyze: at least one model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  cfg.Project,
		Location: cfg.Location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: create client: %w", err)
	}

	return &GeminiAnalyzer{client: client, models: cfg.Models}, nil
}

// Analyze sends the media and prompt to each configured model in order
// until one returns text.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(data, mimeType),
			genai.NewPartFromText(PromptOrDefault(prompt, mimeType)),
		}, genai.RoleUser),
	}

	var lastErr error
	for _, model := range g.models {
		res, err := g.client.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			lastErr = fmt.Errorf("analyze: model %s: %w", model, err)
			continue
		}
		text := res.Text()
		if text == "" {
			lastErr = fmt.Errorf("analyze: model %s returned empty text", model)
			continue
		}
		return text, nil
	}
	return "", lastErr
}
