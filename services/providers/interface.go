package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ChatProvider performs chat completions, optionally with function tools
type ChatProvider interface {
	// ChatCompletion performs a chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// TranscriptionProvider turns recorded audio into text
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, req *TranscriptionRequest) (*TranscriptionResponse, error)
}

// SpeechProvider turns text into audio
type SpeechProvider interface {
	Speech(ctx context.Context, req *SpeechRequest) (*SpeechResponse, error)
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	// Messages in the conversation
	Messages []Message `json:"messages"`

	// Tools the model may call
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0). Nil leaves the deployment default.
	Temperature *float64 `json:"temperature,omitempty"`

	// User identifier for abuse monitoring
	User string `json:"user,omitempty"`

	// DisableRetry sends the request exactly once
	DisableRetry bool `json:"-"`
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", "assistant" or "tool"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`

	// ToolCalls requested by the assistant
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool result to the call it answers
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Tool describes a function the model may call
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is a function invocation requested by the model
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID           string        `json:"id"`
	Message      Message       `json:"message"`
	FinishReason string        `json:"finish_reason"`
	Usage        Usage         `json:"usage"`
	Latency      time.Duration `json:"latency"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TranscriptionRequest carries audio staged on disk
type TranscriptionRequest struct {
	// FilePath of the staged recording
	FilePath string

	// Filename reported to the API; its extension tells the model the container format
	Filename string

	// Language hint (ISO-639-1), optional
	Language string
}

// TranscriptionResponse holds the recognized text
type TranscriptionResponse struct {
	Text    string        `json:"text"`
	Latency time.Duration `json:"-"`
}

// SpeechRequest asks for synthesized speech
type SpeechRequest struct {
	Input          string
	Voice          string
	ResponseFormat string
}

// SpeechResponse holds synthesized audio
type SpeechResponse struct {
	Audio       []byte
	ContentType string
	Latency     time.Duration
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL is the resource endpoint
	BaseURL string

	// APIVersion is appended as the api-version query parameter
	APIVersion string

	// Timeout for requests
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// RetryDelay is the base of the exponential backoff
	RetryDelay time.Duration
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// IsRetryableStatus reports whether an HTTP status is worth retrying
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
