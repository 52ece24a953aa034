package speech

import (
	"fmt"
	"os"

	"github.com/upb/voice-agent/models"
)

// StageAudio writes the blob to a private temp file in dir (os.TempDir when
// empty). The returned release func removes the file and is safe to call more
// than once.
func StageAudio(dir string, blob models.AudioBlob) (path string, release func(), err error) {
	pattern := "voice-query-*"
	if blob.Format != "" {
		pattern += "." + blob.Format
	}

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to create staging file: %w", err)
	}
	path = f.Name()
	release = func() { _ = os.Remove(path) }

	if _, err := f.Write(blob.Data); err != nil {
		_ = f.Close()
		release()
		return "", func() {}, fmt.Errorf("failed to write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", func() {}, fmt.Errorf("failed to close staging file: %w", err)
	}

	return path, release, nil
}
