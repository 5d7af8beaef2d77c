package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Spandai/samantha-telegram-agent/pkg/prompts"
)

// summaryMaxTokens caps a 2-3 sentence summary.
const summaryMaxTokens = 300

// Summary is the result of one consolidation call.
type Summary struct {
	Text  string
	Model string

	// Prompt is the exact user prompt sent, for cost accounting.
	Prompt string
	Usage  TokenUsage
}

// Summarizer condenses a conversation transcript with a chat model.
type Summarizer struct {
	model     ChatModel
	modelName string
}

// NewSummarizer creates a summarizer calling modelName on model.
func NewSummarizer(model ChatModel, modelName string) *Summarizer {
	return &Summarizer{model: model, modelName: modelName}
}

// Summarize returns a short summary of transcript.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (*Summary, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.New("empty transcript")
	}

	prompt := prompts.Summary(transcript)
	resp, err := s.model.Complete(ctx, &CompletionRequest{
		Model: s.modelName,
		Messages: []Message{
			{Role: RoleSystem, Content: prompts.SummarySystem},
			{Role: RoleUser, Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize conversation: %w", err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil, errors.New("model returned an empty summary")
	}

	return &Summary{
		Text:   text,
		Model:  resp.Model,
		Prompt: prompt,
		Usage:  resp.Usage,
	}, nil
}
