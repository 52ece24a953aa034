// Package speech converts between recorded audio and text.
package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/services/providers"
	"go.uber.org/zap"
)

// Transcriber stages an upload and sends it to the transcription deployment
type Transcriber struct {
	provider providers.TranscriptionProvider
	tempDir  string
	logger   *zap.Logger
}

// NewTranscriber creates a new transcriber. tempDir may be empty.
func NewTranscriber(provider providers.TranscriptionProvider, tempDir string, logger *zap.Logger) *Transcriber {
	return &Transcriber{provider: provider, tempDir: tempDir, logger: logger}
}

// Transcribe returns the recognized question. The staged copy of the audio is
// removed before Transcribe returns, whatever the outcome.
func (t *Transcriber) Transcribe(ctx context.Context, blob models.AudioBlob) (string, error) {
	if blob.IsEmpty() {
		return "", services.WrapError(services.ErrorTypeTranscriptionFailed, "audio is empty", nil)
	}
	if !models.IsSupportedAudioFormat(blob.Format) {
		return "", services.NewDomainError(services.ErrorTypeTranscriptionFailed, "unsupported audio format", nil).
			WithDetail("format", blob.Format)
	}

	path, release, err := StageAudio(t.tempDir, blob)
	if err != nil {
		return "", services.WrapError(services.ErrorTypeTranscriptionFailed, "failed to stage audio", err)
	}
	defer release()

	resp, err := t.provider.Transcribe(ctx, &providers.TranscriptionRequest{
		FilePath: path,
		Filename: uploadName(blob),
	})
	if err != nil {
		return "", services.WrapError(services.ErrorTypeTranscriptionFailed, "transcription request failed", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", services.WrapError(services.ErrorTypeTranscriptionFailed, "no speech recognized", nil)
	}

	t.logger.Debug("audio transcribed",
		zap.Int("audio_bytes", len(blob.Data)),
		zap.String("format", blob.Format),
		zap.Duration("latency", resp.Latency))
	return text, nil
}

// uploadName keeps the extension the API uses to detect the container
func uploadName(blob models.AudioBlob) string {
	if blob.Filename != "" && strings.HasSuffix(strings.ToLower(blob.Filename), "."+blob.Format) {
		return blob.Filename
	}
	return fmt.Sprintf("audio.%s", blob.Format)
}
