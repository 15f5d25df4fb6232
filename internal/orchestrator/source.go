package orchestrator

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// AudioSource resolves a stored audio reference back into bytes, so retries
// can re-run the pipeline from the same capture. The second return value is
// the MIME type.
type AudioSource interface {
	Fetch(ctx context.Context, audioBlobURL string) ([]byte, string, error)
}

// FileSource is an [AudioSource] that resolves references of the form
// "file://<path>" (or a bare path) against a base directory.
type FileSource struct {
	// BaseDir anchors relative references. Empty means the process working
	// directory.
	BaseDir string
}

// Compile-time interface check.
var _ AudioSource = (*FileSource)(nil)

// Fetch reads the referenced audio file and infers the MIME type from the
// file extension, defaulting to audio/webm.
func (s *FileSource) Fetch(_ context.Context, audioBlobURL string) ([]byte, string, error) {
	path := strings.TrimPrefix(audioBlobURL, "file://")
	if !filepath.IsAbs(path) && s.BaseDir != "" {
		path = filepath.Join(s.BaseDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("orchestrator: fetch audio %q: %w", audioBlobURL, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return data, mimeType, nil
}
