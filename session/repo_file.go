package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	fleeterrors "github.com/jrsteele09/fleet-console/internal/errors"
)

var _ Repo = (*FileRepo)(nil)

// FileRepo keeps one JSON document per key in a folder.
type FileRepo struct {
	mu     sync.Mutex
	folder string
}

// NewFileRepo creates the folder if needed.
func NewFileRepo(folder string) (*FileRepo, error) {
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fleeterrors.Wrapf(err, "[session NewFileRepo] creating %s", folder)
	}
	return &FileRepo{folder: folder}, nil
}

func (r *FileRepo) Load(key string) (Persisted, error) {
	path, err := r.path(key)
	if err != nil {
		return Persisted{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Persisted{}, fleeterrors.ErrSessionNotFound
	}
	if err != nil {
		return Persisted{}, fleeterrors.Wrapf(err, "[session FileRepo] reading %s", key)
	}

	var p Persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return Persisted{}, fleeterrors.Wrapf(err, "[session FileRepo] decoding %s", key)
	}
	return p, nil
}

func (r *FileRepo) Save(key string, p Persisted) error {
	path, err := r.path(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fleeterrors.Wrapf(err, "[session FileRepo] writing %s", key)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fleeterrors.Wrapf(err, "[session FileRepo] renaming %s", key)
	}
	return nil
}

func (r *FileRepo) Delete(key string) error {
	path, err := r.path(key)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fleeterrors.Wrapf(err, "[session FileRepo] deleting %s", key)
	}
	return nil
}

// path maps a key onto a file name; keys contain ':' in console mode.
func (r *FileRepo) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	name := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '_'
		}
	}, key)
	return filepath.Join(r.folder, name+".json"), nil
}
