package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/pacer/internal/domain"
)

const statusFileName = "status.json"

// StatusFile implements ports.StatusRepository using a JSON file.
type StatusFile struct {
	dir string
}

// NewStatusFile creates a StatusFile that writes into dir.
func NewStatusFile(dir string) *StatusFile {
	return &StatusFile{dir: dir}
}

// Load reads the last saved status.
// Returns an empty status and nil error if the file does not exist.
func (r *StatusFile) Load(ctx context.Context) (domain.Status, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Status{}, nil
		}
		return domain.Status{}, err
	}

	var status domain.Status
	if err := json.Unmarshal(data, &status); err != nil {
		return domain.Status{}, fmt.Errorf("decode %s: %w", r.Path(), err)
	}
	return status, nil
}

// Save writes status to a temp file and renames it over the previous one.
func (r *StatusFile) Save(ctx context.Context, status domain.Status) error {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path of the status file.
func (r *StatusFile) Path() string {
	return filepath.Join(r.dir, statusFileName)
}
