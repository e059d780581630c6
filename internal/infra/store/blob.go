package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matchd-io/matchd/internal/domain"
)

// blobTier stores oversized result payloads as plain JSON files under
// <data dir>/results/. The row tier keeps the file path so lookups never
// guess at names.
type blobTier struct {
	dir string
}

func newBlobTier(dataDir string) (*blobTier, error) {
	dir := filepath.Join(dataDir, "results")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &blobTier{dir: dir}, nil
}

// put writes the payload atomically and returns the object path.
func (b *blobTier) put(jobID string, payload []byte) (string, error) {
	path := b.path(jobID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0600); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck // best-effort cleanup
		return "", err
	}
	return path, nil
}

func (b *blobTier) get(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrResultNotFound
	}
	return data, err
}

func (b *blobTier) path(jobID string) string {
	return filepath.Join(b.dir, sanitizeID(jobID)+".json")
}

// sanitizeID keeps caller-supplied job ids from escaping the blob dir.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
