package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore persists rendered bytes under a name and returns a
// retrievable reference.
type ArtifactStore interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// LocalStore writes artifacts under a base directory. The returned reference
// is the absolute file path.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{baseDir: baseDir}
}

func (s *LocalStore) Store(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", classify(KindStore, err)
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", Transient(KindStore, fmt.Errorf("creating export directory: %w", err))
	}

	path := filepath.Join(s.baseDir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", Transient(KindStore, fmt.Errorf("writing artifact %s: %w", path, err))
	}

	return path, nil
}

// ArtifactFileName builds the on-disk name for a request, preferring the
// request's output hint when it carries one.
func ArtifactFileName(req *ExportRequest) string {
	if req.OutputHint != "" {
		hint := filepath.Base(req.OutputHint)
		if !strings.HasSuffix(hint, ".xlsx") {
			hint += ".xlsx"
		}
		return hint
	}
	return req.RequestID.String() + ".xlsx"
}
