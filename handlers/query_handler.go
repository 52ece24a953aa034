package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/upb/voice-agent/middleware"
	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/services/pipeline"
	"github.com/upb/voice-agent/utils"
	"go.uber.org/zap"
)

const (
	audioFormField = "audio_file"

	// DegradedHeader is "true" when the audio is the apology rather than an answer
	DegradedHeader = "X-Voice-Agent-Degraded"

	defaultMaxUploadBytes = 25 << 20
)

// QueryPipeline is the part of the pipeline the handlers drive
type QueryPipeline interface {
	RunVoice(ctx context.Context, caller *models.Caller, blob models.AudioBlob) (*pipeline.VoiceResult, error)
	RunText(ctx context.Context, caller *models.Caller, text string) (*pipeline.TextResult, error)
}

// TextQueryRequest is the body of POST /text-query
type TextQueryRequest struct {
	Text string `json:"text" validate:"required"`
}

// QueryHandler serves the voice and text query endpoints
type QueryHandler struct {
	pipeline       QueryPipeline
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewQueryHandler creates a new QueryHandler
func NewQueryHandler(p QueryPipeline, maxUploadBytes int64, logger *zap.Logger) *QueryHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &QueryHandler{
		pipeline:       p,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HandleVoiceQuery handles POST /voice-query
func (h *QueryHandler) HandleVoiceQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCallerFromContext(ctx)
	if caller == nil {
		HandleServiceError(w, services.ErrUnauthenticated, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile(audioFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "Audio file is too large", map[string]interface{}{
				"max_bytes": h.maxUploadBytes,
			})
			return
		}
		_ = utils.WriteBadRequest(w, "audio_file is required", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Failed to read audio_file", nil)
		return
	}

	blob := models.NewAudioBlob(data, header.Filename, header.Header.Get("Content-Type"))
	result, err := h.pipeline.RunVoice(ctx, caller, blob)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := writeAudio(w, result); err != nil {
		h.logger.Warn("failed to write audio response", zap.Error(err))
	}
}

// HandleTextQuery handles POST /text-query
func (h *QueryHandler) HandleTextQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCallerFromContext(ctx)
	if caller == nil {
		HandleServiceError(w, services.ErrUnauthenticated, h.logger)
		return
	}

	var req TextQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.pipeline.RunText(ctx, caller, req.Text)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("failed to write text query response", zap.Error(err))
	}
}

func writeAudio(w http.ResponseWriter, result *pipeline.VoiceResult) error {
	audio := result.Audio
	contentType := audio.ContentType
	if contentType == "" {
		contentType = models.ContentTypeMPEG
	}

	w.Header().Set(DegradedHeader, strconv.FormatBool(result.Degraded))
	return utils.WriteAttachment(w, contentType, audio.Filename, audio.Data)
}
