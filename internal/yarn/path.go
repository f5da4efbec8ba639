package yarn

import (
	"os"
	"path/filepath"
)

// ModulesDir is the folder packages are installed into.
const ModulesDir = "node_modules"

// ExistsFunc reports whether a directory exists.
type ExistsFunc func(path string) bool

// DirExists is the default ExistsFunc.
func DirExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// FindPath locates the installed directory of name for a package nested at
// ancestry (project root first, then each parent package name). It tries the
// innermost node_modules first and walks outward, the same lookup node uses,
// so hoisted packages are found at the level they were installed.
func FindPath(exists ExistsFunc, ancestry []string, name string) (string, bool) {
	for depth := len(ancestry); depth > 0; depth-- {
		candidate := modulesPath(ancestry[:depth], name)
		if exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// modulesPath joins ["root", "a", "b"] and "n" into
// root/node_modules/a/node_modules/b/node_modules/n.
func modulesPath(chain []string, name string) string {
	parts := make([]string, 0, 2*len(chain)+1)
	parts = append(parts, chain[0])
	for _, seg := range chain[1:] {
		parts = append(parts, ModulesDir, seg)
	}
	parts = append(parts, ModulesDir, name)
	return filepath.Join(parts...)
}
