package screencast

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ugckit/ugckit/internal/config"
)

func newTestLibrary(t *testing.T, files ...string) *Library {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return NewLibrary(dir)
}

func TestResolve(t *testing.T) {
	lib := newTestLibrary(t, "stats.mp4", "demo.mov")

	path, err := lib.Resolve("stats")
	if err != nil {
		t.Fatalf("Resolve(stats): %v", err)
	}
	if filepath.Base(path) != "stats.mp4" {
		t.Errorf("resolved %q, want stats.mp4", path)
	}

	path, err = lib.Resolve("demo.mov")
	if err != nil {
		t.Fatalf("Resolve(demo.mov): %v", err)
	}
	if filepath.Base(path) != "demo.mov" {
		t.Errorf("resolved %q, want demo.mov", path)
	}
}

func TestResolveMissing(t *testing.T) {
	lib := newTestLibrary(t, "stats.mp4")

	_, err := lib.Resolve("nope")
	if err == nil {
		t.Fatal("expected error for missing screencast")
	}
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		t.Errorf("error %T is not *config.Error", err)
	}
}

func TestList(t *testing.T) {
	lib := newTestLibrary(t, "b.mp4", "a.mov", "readme.txt")

	names, err := lib.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a.mov", "b.mp4"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List = %v, want %v", names, want)
	}
}
