package analyze

import (
	"context"
	"errors"
	"testing"

	"github.com/hollandm/glimpse/internal/config"
)

func TestPromptOrDefault(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		mimeType string
		want     string
	}{
		{"explicit prompt wins", "what app is open?", "image/png", "what app is open?"},
		{"screenshot default", "", "image/png", DefaultScreenshotPrompt},
		{"video default", "", "video/webm", DefaultVideoPrompt},
		{"video default mp4", "", "video/mp4", DefaultVideoPrompt},
		{"unknown type falls back to screenshot", "", "", DefaultScreenshotPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PromptOrDefault(tt.prompt, tt.mimeType); got != tt.want {
				t.Errorf("PromptOrDefault(%q, %q) = %q, want %q", tt.prompt, tt.mimeType, got, tt.want)
			}
		})
	}
}

func TestNewGeminiAnalyzer_Validation(t *testing.T) {
	ctx := context.Background()
	if _, err := NewGeminiAnalyzer(ctx, config.AnalyzerConfig{Location: "us-central1", Models: []string{"m"}}); err == nil {
		t.Error("expected error for missing project")
	}
	if _, err := NewGeminiAnalyzer(ctx, config.AnalyzerConfig{Project: "p", Location: "l"}); err == nil {
		t.Error("expected error for empty model list")
	}
}

func TestMock_CannedAndError(t *testing.T) {
	ctx := context.Background()

	m := &Mock{Text: "a desktop with a terminal open"}
	got, err := m.Analyze(ctx, []byte("x"), "image/png", "")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got != "a desktop with a terminal open" {
		t.Errorf("text = %q", got)
	}
	if m.Calls() != 1 {
		t.Errorf("calls = %d, want 1", m.Calls())
	}

	m.Err = errors.New("model unavailable")
	if _, err := m.Analyze(ctx, []byte("x"), "image/png", ""); err == nil {
		t.Fatal("expected injected error")
	}
	if m.Calls() != 2 {
		t.Errorf("calls = %d, want 2", m.Calls())
	}
}
