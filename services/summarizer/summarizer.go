// Package summarizer turns a query result into a short spoken-style answer.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/services/providers"
	"go.uber.org/zap"
)

const (
	MaxTokens   = 500
	Temperature = 0.7
)

const promptTemplate = `Based on the following database query result, provide a clear, concise summary in natural language:

User asked: %s
Database result: %s

Please provide a helpful summary that directly answers the user's question in a conversational tone.`

// Summarizer issues exactly one completion per call and never retries
type Summarizer struct {
	chat   providers.ChatProvider
	logger *zap.Logger
}

// NewSummarizer creates a new summarizer
func NewSummarizer(chat providers.ChatProvider, logger *zap.Logger) *Summarizer {
	return &Summarizer{chat: chat, logger: logger}
}

// BuildPrompt embeds the question and the stringified result verbatim
func BuildPrompt(question string, result *models.QueryResult) string {
	return fmt.Sprintf(promptTemplate, question, result.String())
}

// Summarize returns the natural-language answer
func (s *Summarizer) Summarize(ctx context.Context, question string, result *models.QueryResult) (string, error) {
	temperature := Temperature
	resp, err := s.chat.ChatCompletion(ctx, &providers.ChatRequest{
		Messages:     []providers.Message{{Role: "user", Content: BuildPrompt(question, result)}},
		MaxTokens:    MaxTokens,
		Temperature:  &temperature,
		DisableRetry: true,
	})
	if err != nil {
		return "", services.WrapError(services.ErrorTypeSummarizationFailed, "summary completion failed", err)
	}

	answer := strings.TrimSpace(resp.Message.Content)
	if answer == "" {
		return "", services.WrapError(services.ErrorTypeSummarizationFailed, "model returned an empty summary", nil)
	}

	s.logger.Debug("summary generated",
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("latency", resp.Latency))
	return answer, nil
}
