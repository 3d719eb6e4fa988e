package screencast

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ugckit/ugckit/internal/config"
)

// Library resolves screencast names against an asset directory.
type Library struct {
	dir string
}

// NewLibrary creates a library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the library root.
func (l *Library) Dir() string {
	return l.dir
}

// Resolve maps a screencast name to its file path. Bare names get .mp4
// appended; a missing file is a configuration error since the script
// references an asset that cannot be composited.
func (l *Library) Resolve(name string) (string, error) {
	if !strings.Contains(name, ".") {
		name += ".mp4"
	}

	path := filepath.Join(l.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", config.Errorf("screencast", "not found in %s: %s", l.dir, name)
	}
	return path, nil
}

// List returns the available screencast files, sorted by name.
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".mp4", ".mov", ".webm", ".mkv":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
