package yarn

import (
	"os"
	"path/filepath"
	"testing"
)

// existsIn returns an ExistsFunc that reports only the given paths.
func existsIn(paths ...string) ExistsFunc {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[filepath.Clean(p)] = true
	}
	return func(path string) bool {
		return set[filepath.Clean(path)]
	}
}

func TestFindPathHoisted(t *testing.T) {
	exists := existsIn("root/node_modules/b")

	got, ok := FindPath(exists, []string{"root", "a"}, "b")
	if !ok {
		t.Fatal("expected b to be found")
	}
	if want := filepath.Join("root", "node_modules", "b"); got != want {
		t.Errorf("FindPath = %q, want %q", got, want)
	}
}

func TestFindPathPrefersInnermost(t *testing.T) {
	exists := existsIn(
		"root/node_modules/b",
		"root/node_modules/a/node_modules/b",
	)

	got, ok := FindPath(exists, []string{"root", "a"}, "b")
	if !ok {
		t.Fatal("expected b to be found")
	}
	if want := filepath.Join("root", "node_modules", "a", "node_modules", "b"); got != want {
		t.Errorf("FindPath = %q, want %q", got, want)
	}
}

func TestFindPathIntermediateLevel(t *testing.T) {
	exists := existsIn("root/node_modules/a/node_modules/c")

	got, ok := FindPath(exists, []string{"root", "a", "b"}, "c")
	if !ok {
		t.Fatal("expected c to be found")
	}
	if want := filepath.Join("root", "node_modules", "a", "node_modules", "c"); got != want {
		t.Errorf("FindPath = %q, want %q", got, want)
	}
}

func TestFindPathMissing(t *testing.T) {
	if got, ok := FindPath(existsIn(), []string{"root", "a"}, "b"); ok {
		t.Errorf("FindPath = %q, want not found", got)
	}
	if _, ok := FindPath(existsIn("node_modules/b"), nil, "b"); ok {
		t.Error("empty ancestry should never resolve")
	}
}

func TestFindPathScoped(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "node_modules", "@babel", "core")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := FindPath(DirExists, []string{root, "a"}, "@babel/core")
	if !ok {
		t.Fatal("expected @babel/core to be found")
	}
	if got != dir {
		t.Errorf("FindPath = %q, want %q", got, dir)
	}
}
