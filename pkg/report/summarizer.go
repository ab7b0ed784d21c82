package report

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/crumble-dev/crumble/pkg/core"
	"github.com/crumble-dev/crumble/pkg/record"
)

// DefaultSummaryModel handles the one-shot summarization call.
const DefaultSummaryModel = "gemini-2.5-flash"

// Summarizer produces a short generated summary of a session's
// findings. Failures are retryable and never touch the record itself.
type Summarizer struct {
	client *genai.Client
	model  string
}

// NewSummarizer builds a summarizer authenticated with apiKey.
func NewSummarizer(ctx context.Context, apiKey, model string) (*Summarizer, error) {
	if strings.TrimSpace(model) == "" {
		model = DefaultSummaryModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, core.NewSummarizationError("create client", "initialize summarizer", err)
	}
	return &Summarizer{client: client, model: model}, nil
}

// Summarize generates a summary for the record's feedback entries.
func (s *Summarizer) Summarize(ctx context.Context, rec record.SessionRecord) (string, error) {
	prompt, err := buildSummaryPrompt(rec)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), nil)
	if err != nil {
		return "", core.NewSummarizationError("generate", "completion call failed", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", core.NewSummarizationError("generate", "empty completion", nil)
	}
	return text, nil
}

// buildSummaryPrompt flattens the record's feedback into a single
// prompt. Errors when there is nothing to summarize.
func buildSummaryPrompt(rec record.SessionRecord) (string, error) {
	var findings []string
	for _, e := range rec.Entries {
		if e.Type == record.EntryFeedback {
			findings = append(findings, "- "+e.Message)
		}
	}
	if len(findings) == 0 {
		return "", core.NewSummarizationError("prompt", "record has no feedback entries", nil)
	}
	var b strings.Builder
	b.WriteString("Summarize the following UX review findings from a ")
	fmt.Fprintf(&b, "%s screen-share session. ", rec.Duration)
	b.WriteString("Group related findings by theme. Use '## ' for theme headings, ")
	b.WriteString("'- ' for bullet points and '**bold**' for key terms. ")
	b.WriteString("Keep it under 200 words.\n\nFindings:\n")
	b.WriteString(strings.Join(findings, "\n"))
	return b.String(), nil
}
