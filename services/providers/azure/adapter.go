package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/upb/voice-agent/services/providers"
	"go.uber.org/zap"
)

const providerName = "azure_openai"

// Deployments names the Azure OpenAI deployment used for each capability
type Deployments struct {
	Chat          string
	Transcription string
	Speech        string
}

// Adapter implements the chat, transcription and speech providers against Azure OpenAI
type Adapter struct {
	config      providers.ProviderConfig
	deployments Deployments
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewAdapter creates a new Azure OpenAI adapter
func NewAdapter(config providers.ProviderConfig, deployments Deployments, logger *zap.Logger) *Adapter {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}

	return &Adapter{
		config:      config,
		deployments: deployments,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return providerName
}

func (a *Adapter) deploymentURL(deployment, operation string) string {
	q := url.Values{}
	q.Set("api-version", a.config.APIVersion)
	return fmt.Sprintf("%s/openai/deployments/%s/%s?%s",
		a.config.BaseURL, url.PathEscape(deployment), operation, q.Encode())
}

func (a *Adapter) backoff(disable bool) retry.Backoff {
	maxRetries := a.config.MaxRetries
	if disable || maxRetries < 0 {
		maxRetries = 0
	}
	return retry.WithMaxRetries(uint64(maxRetries), retry.NewExponential(a.config.RetryDelay))
}

// send executes the request built by newReq, retrying retryable failures.
// newReq is called once per attempt so request bodies can be rebuilt.
func (a *Adapter) send(ctx context.Context, disableRetry bool, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, *http.Response, error) {
	var (
		body []byte
		resp *http.Response
	)

	err := retry.Do(ctx, a.backoff(disableRetry), func(ctx context.Context) error {
		req, err := newReq(ctx)
		if err != nil {
			return providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err)
		}
		req.Header.Set("api-key", a.config.APIKey)

		httpResp, err := a.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return providers.NewProviderError(a.Name(), "CANCELED", "Request canceled", 0, false, ctx.Err())
			}
			return retry.RetryableError(providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err))
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return providers.NewProviderError(a.Name(), "READ_ERROR", "Failed to read response", httpResp.StatusCode, false, err)
		}

		if httpResp.StatusCode != http.StatusOK {
			provErr := a.handleErrorResponse(httpResp.StatusCode, respBody)
			if provErr.Retryable {
				a.logger.Debug("retrying azure openai request",
					zap.Int("status", httpResp.StatusCode),
					zap.String("code", provErr.Code))
				return retry.RetryableError(provErr)
			}
			return provErr
		}

		body, resp = respBody, httpResp
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return body, resp, nil
}

// ChatCompletion performs a chat completion request
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(a.buildChatRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	endpoint := a.deploymentURL(a.deployments.Chat, "chat/completions")
	respBody, _, err := a.send(ctx, req.DisableRetry, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", http.StatusOK, false, err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "Response contained no choices", http.StatusOK, false, nil)
	}

	return a.convertChatResponse(&chatResp, time.Since(startTime)), nil
}

// Transcribe uploads the staged recording to the transcription deployment
func (a *Adapter) Transcribe(ctx context.Context, req *providers.TranscriptionRequest) (*providers.TranscriptionResponse, error) {
	startTime := time.Now()
	endpoint := a.deploymentURL(a.deployments.Transcription, "audio/transcriptions")

	respBody, _, err := a.send(ctx, false, func(ctx context.Context) (*http.Request, error) {
		body, contentType, err := buildTranscriptionForm(req)
		if err != nil {
			return nil, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", contentType)
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}

	var result transcriptionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", http.StatusOK, false, err)
	}

	return &providers.TranscriptionResponse{
		Text:    result.Text,
		Latency: time.Since(startTime),
	}, nil
}

func buildTranscriptionForm(req *providers.TranscriptionRequest) (*bytes.Buffer, string, error) {
	f, err := os.Open(req.FilePath)
	if err != nil {
		return nil, "", fmt.Errorf("opening staged audio: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return nil, "", fmt.Errorf("writing language field: %w", err)
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return nil, "", fmt.Errorf("writing response format field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}

// Speech synthesizes audio for the input text
func (a *Adapter) Speech(ctx context.Context, req *providers.SpeechRequest) (*providers.SpeechResponse, error) {
	startTime := time.Now()

	format := req.ResponseFormat
	if format == "" {
		format = "mp3"
	}

	reqBody, err := json.Marshal(speechRequest{
		Model:          a.deployments.Speech,
		Input:          req.Input,
		Voice:          req.Voice,
		ResponseFormat: format,
	})
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	endpoint := a.deploymentURL(a.deployments.Speech, "audio/speech")
	audio, resp, err := a.send(ctx, false, func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "Speech response contained no audio", http.StatusOK, false, nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	return &providers.SpeechResponse{
		Audio:       audio,
		ContentType: contentType,
		Latency:     time.Since(startTime),
	}, nil
}

// buildChatRequest converts the request to the Azure wire format
func (a *Adapter) buildChatRequest(req *providers.ChatRequest) *chatRequest {
	out := &chatRequest{
		Messages:    make([]chatMessage, len(req.Messages)),
		Temperature: req.Temperature,
	}

	for i, msg := range req.Messages {
		wire := chatMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatFunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out.Messages[i] = wire
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	if req.User != "" {
		out.User = &req.User
	}

	return out
}

// convertChatResponse converts the first choice to the unified response
func (a *Adapter) convertChatResponse(resp *chatResponse, latency time.Duration) *providers.ChatResponse {
	choice := resp.Choices[0]

	msg := providers.Message{
		Role:    choice.Message.Role,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, providers.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &providers.ChatResponse{
		ID:           resp.ID,
		Message:      msg,
		FinishReason: choice.FinishReason,
		Usage: providers.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency: latency,
	}
}

// handleErrorResponse handles Azure OpenAI error responses
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) *providers.ProviderError {
	retryable := providers.IsRetryableStatus(statusCode)

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", string(body), statusCode, retryable, err)
	}

	code := errResp.Error.Code
	if code == "" {
		code = errResp.Error.Type
	}

	return providers.NewProviderError(
		a.Name(),
		code,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// Azure-specific request/response types

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	User        *string       `json:"user,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Created int64        `json:"created"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
