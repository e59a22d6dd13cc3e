// Package analyze wraps the vision-LLM collaborator that turns captured
// media into a textual description for the chat transcript.
package analyze

import "context"

// Default prompts used when the requester supplies none.
const (
	DefaultScreenshotPrompt = "Describe this screenshot thoroughly: visible applications, windows, text, and any errors or dialogs."
	DefaultVideoPrompt      = "Describe this screen recording thoroughly: what happens over its course, and in particular the final state of the screen when it ends."
)

// Analyzer produces a textual analysis of media bytes.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, mimeType, prompt string) (string, error)
}

// PromptOrDefault picks the requester's prompt, falling back to the default
// for the media MIME type.
func PromptOrDefault(prompt, mimeType string) string {
	if prompt != "" {
		return prompt
	}
	if len(mimeType) >= 5 && mimeType[:5] == "video" {
		return DefaultVideoPrompt
	}
	return DefaultScreenshotPrompt
}
