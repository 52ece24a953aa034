package speech

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/services/providers"
	"go.uber.org/zap"
)

const (
	DefaultVoice = "alloy"

	// MaxInputChars is the speech endpoint's input limit
	MaxInputChars = 4096
)

// Speaker synthesizes answers as mp3 audio
type Speaker struct {
	provider providers.SpeechProvider
	voice    string
	logger   *zap.Logger
}

// NewSpeaker creates a new speaker
func NewSpeaker(provider providers.SpeechProvider, voice string, logger *zap.Logger) *Speaker {
	if voice == "" {
		voice = DefaultVoice
	}
	return &Speaker{provider: provider, voice: voice, logger: logger}
}

// Synthesize returns the spoken form of text
func (s *Speaker) Synthesize(ctx context.Context, text string) (*models.AudioResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.WrapError(services.ErrorTypeSynthesisFailed, "nothing to synthesize", nil)
	}
	if n := utf8.RuneCountInString(text); n > MaxInputChars {
		return nil, services.NewDomainError(services.ErrorTypeSynthesisFailed, "text exceeds speech input limit", nil).
			WithDetail("chars", n)
	}

	resp, err := s.provider.Speech(ctx, &providers.SpeechRequest{
		Input:          text,
		Voice:          s.voice,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeSynthesisFailed, "speech request failed", err)
	}
	if len(resp.Audio) == 0 {
		return nil, services.WrapError(services.ErrorTypeSynthesisFailed, "speech response was empty", nil)
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = models.ContentTypeMPEG
	}

	s.logger.Debug("speech synthesized",
		zap.Int("chars", len(text)),
		zap.Int("audio_bytes", len(resp.Audio)),
		zap.Duration("latency", resp.Latency))

	return &models.AudioResponse{
		Data:        resp.Audio,
		ContentType: contentType,
		Filename:    models.ResponseFilename,
	}, nil
}
