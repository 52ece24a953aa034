package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/voice-agent/models"
	"github.com/upb/voice-agent/services"
	"github.com/upb/voice-agent/services/providers"
	"go.uber.org/zap"
)

type MockTranscriptionProvider struct {
	mock.Mock
}

func (m *MockTranscriptionProvider) Transcribe(ctx context.Context, req *providers.TranscriptionRequest) (*providers.TranscriptionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.TranscriptionResponse), args.Error(1)
}

type MockSpeechProvider struct {
	mock.Mock
}

func (m *MockSpeechProvider) Speech(ctx context.Context, req *providers.SpeechRequest) (*providers.SpeechResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.SpeechResponse), args.Error(1)
}

func dirEntries(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return len(entries)
}

func TestStageAudio(t *testing.T) {
	dir := t.TempDir()
	path, release, err := StageAudio(dir, models.AudioBlob{Data: []byte("RIFF"), Format: "wav"})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, ".wav"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))

	release()
	release()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStageAudio_BadDir(t *testing.T) {
	_, release, err := StageAudio(filepath.Join(t.TempDir(), "missing"), models.AudioBlob{Data: []byte("x")})
	assert.Error(t, err)
	assert.NotPanics(t, release)
}

func TestTranscriber_Transcribe(t *testing.T) {
	ctx := context.Background()
	blob := models.NewAudioBlob([]byte("fake-audio"), "question.webm", "audio/webm")

	t.Run("stages the file and cleans it up", func(t *testing.T) {
		dir := t.TempDir()
		provider := new(MockTranscriptionProvider)
		var stagedPath string
		provider.On("Transcribe", mock.Anything, mock.MatchedBy(func(req *providers.TranscriptionRequest) bool {
			return req.Filename == "question.webm"
		})).Run(func(args mock.Arguments) {
			stagedPath = args.Get(1).(*providers.TranscriptionRequest).FilePath
			data, err := os.ReadFile(stagedPath)
			assert.NoError(t, err)
			assert.Equal(t, "fake-audio", string(data))
		}).Return(&providers.TranscriptionResponse{Text: " How many tasks are open? "}, nil).Once()

		text, err := NewTranscriber(provider, dir, zap.NewNop()).Transcribe(ctx, blob)
		require.NoError(t, err)
		assert.Equal(t, "How many tasks are open?", text)
		assert.NotEmpty(t, stagedPath)
		assert.Equal(t, 0, dirEntries(t, dir))
		provider.AssertExpectations(t)
	})

	t.Run("provider failure still cleans up", func(t *testing.T) {
		dir := t.TempDir()
		provider := new(MockTranscriptionProvider)
		provider.On("Transcribe", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

		_, err := NewTranscriber(provider, dir, zap.NewNop()).Transcribe(ctx, blob)
		assert.True(t, services.IsTranscriptionError(err))
		assert.Equal(t, 0, dirEntries(t, dir))
	})

	t.Run("panic in provider still cleans up", func(t *testing.T) {
		dir := t.TempDir()
		provider := new(MockTranscriptionProvider)
		provider.On("Transcribe", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("provider exploded")
		}).Once()

		assert.Panics(t, func() {
			_, _ = NewTranscriber(provider, dir, zap.NewNop()).Transcribe(ctx, blob)
		})
		assert.Equal(t, 0, dirEntries(t, dir))
	})

	t.Run("empty transcript", func(t *testing.T) {
		provider := new(MockTranscriptionProvider)
		provider.On("Transcribe", mock.Anything, mock.Anything).Return(&providers.TranscriptionResponse{Text: "  "}, nil).Once()

		_, err := NewTranscriber(provider, t.TempDir(), zap.NewNop()).Transcribe(ctx, blob)
		assert.True(t, services.IsTranscriptionError(err))
	})

	t.Run("empty audio", func(t *testing.T) {
		provider := new(MockTranscriptionProvider)
		_, err := NewTranscriber(provider, t.TempDir(), zap.NewNop()).Transcribe(ctx, models.AudioBlob{Format: "wav"})
		assert.True(t, services.IsTranscriptionError(err))
		provider.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
	})

	t.Run("unsupported format", func(t *testing.T) {
		provider := new(MockTranscriptionProvider)
		_, err := NewTranscriber(provider, t.TempDir(), zap.NewNop()).
			Transcribe(ctx, models.NewAudioBlob([]byte("x"), "notes.txt", "text/plain"))
		assert.True(t, services.IsTranscriptionError(err))
		assert.Equal(t, "txt", services.GetErrorDetails(err)["format"])
		provider.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
	})
}

func TestUploadName(t *testing.T) {
	assert.Equal(t, "q.wav", uploadName(models.AudioBlob{Filename: "q.wav", Format: "wav"}))
	assert.Equal(t, "audio.mp3", uploadName(models.AudioBlob{Filename: "blob", Format: "mp3"}))
	assert.Equal(t, "audio.ogg", uploadName(models.AudioBlob{Format: "ogg"}))
}

func TestSpeaker_Synthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("uses the configured voice", func(t *testing.T) {
		provider := new(MockSpeechProvider)
		provider.On("Speech", mock.Anything, &providers.SpeechRequest{
			Input:          "Two cranes are available.",
			Voice:          "alloy",
			ResponseFormat: "mp3",
		}).Return(&providers.SpeechResponse{Audio: []byte("mp3"), ContentType: ""}, nil).Once()

		audio, err := NewSpeaker(provider, "", zap.NewNop()).Synthesize(ctx, "Two cranes are available.")
		require.NoError(t, err)
		assert.Equal(t, []byte("mp3"), audio.Data)
		assert.Equal(t, models.ContentTypeMPEG, audio.ContentType)
		assert.Equal(t, models.ResponseFilename, audio.Filename)
		provider.AssertExpectations(t)
	})

	t.Run("rejects oversized input before calling", func(t *testing.T) {
		provider := new(MockSpeechProvider)
		_, err := NewSpeaker(provider, "alloy", zap.NewNop()).Synthesize(ctx, strings.Repeat("a", MaxInputChars+1))
		assert.True(t, services.IsSynthesisError(err))
		provider.AssertNotCalled(t, "Speech", mock.Anything, mock.Anything)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		provider := new(MockSpeechProvider)
		_, err := NewSpeaker(provider, "alloy", zap.NewNop()).Synthesize(ctx, " ")
		assert.True(t, services.IsSynthesisError(err))
	})

	t.Run("provider failure", func(t *testing.T) {
		provider := new(MockSpeechProvider)
		provider.On("Speech", mock.Anything, mock.Anything).Return(nil, errors.New("down")).Once()
		_, err := NewSpeaker(provider, "alloy", zap.NewNop()).Synthesize(ctx, "hi")
		assert.True(t, services.IsSynthesisError(err))
	})

	t.Run("empty audio", func(t *testing.T) {
		provider := new(MockSpeechProvider)
		provider.On("Speech", mock.Anything, mock.Anything).Return(&providers.SpeechResponse{}, nil).Once()
		_, err := NewSpeaker(provider, "alloy", zap.NewNop()).Synthesize(ctx, "hi")
		assert.True(t, services.IsSynthesisError(err))
	})
}
