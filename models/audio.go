package models

import (
	"path/filepath"
	"strings"
)

// Audio content types returned by the service
const (
	ContentTypeMPEG = "audio/mpeg"

	ResponseFilename = "response.mp3"
	ErrorFilename    = "error.mp3"
)

// SupportedAudioFormats lists the container formats the speech model accepts
var SupportedAudioFormats = []string{"flac", "m4a", "mp3", "mp4", "mpeg", "mpga", "oga", "ogg", "wav", "webm"}

var contentTypeFormats = map[string]string{
	"audio/flac":   "flac",
	"audio/x-flac": "flac",
	"audio/m4a":    "m4a",
	"audio/x-m4a":  "m4a",
	"audio/mp4":    "mp4",
	"audio/mpeg":   "mp3",
	"audio/mp3":    "mp3",
	"audio/ogg":    "ogg",
	"audio/wav":    "wav",
	"audio/wave":   "wav",
	"audio/x-wav":  "wav",
	"audio/webm":   "webm",
	"video/mp4":    "mp4",
	"video/webm":   "webm",
}

// AudioBlob is an uploaded recording. Ephemeral, lives for one request.
type AudioBlob struct {
	Data     []byte
	Filename string
	Format   string
}

// NewAudioBlob builds a blob, deriving the format from the filename
// extension and falling back to the declared content type.
func NewAudioBlob(data []byte, filename, contentType string) AudioBlob {
	return AudioBlob{
		Data:     data,
		Filename: filename,
		Format:   DetectAudioFormat(filename, contentType),
	}
}

// DetectAudioFormat returns the lower-case format name, or "" when unknown
func DetectAudioFormat(filename, contentType string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if IsSupportedAudioFormat(ext) {
		return ext
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if format, ok := contentTypeFormats[mediaType]; ok {
		return format
	}
	return ext
}

// IsSupportedAudioFormat reports whether format is accepted by the speech model
func IsSupportedAudioFormat(format string) bool {
	for _, f := range SupportedAudioFormats {
		if f == format {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the blob carries no audio
func (a AudioBlob) IsEmpty() bool {
	return len(a.Data) == 0
}

// AudioResponse is synthesized speech ready to stream back
type AudioResponse struct {
	Data        []byte
	ContentType string
	Filename    string
}
