// Package core provides shared types and errors for dependency resolution.
package core

import "strings"

// RawTreeNode is a node of the tree printed by the package manager, before
// it has been matched to a directory on disk.
type RawTreeNode struct {
	Name     string         `json:"name"` // "<name>@<version>"
	Children []*RawTreeNode `json:"children"`
}

// Dependency is an installed package resolved to its directory.
type Dependency struct {
	Name     string
	Version  string
	Path     string // absolute directory
	Children []*Dependency
}

// SplitDeclaredName splits "name@version" at the last '@'. A leading '@'
// belongs to the scope, so "@babel/core@7.24.0" yields "@babel/core", "7.24.0".
func SplitDeclaredName(declared string) (name, version string) {
	i := strings.LastIndex(declared, "@")
	if i <= 0 {
		return declared, ""
	}
	return declared[:i], declared[i+1:]
}

// Walk visits d and its descendants in pre-order. Returning false from fn
// skips the children of that dependency.
func (d *Dependency) Walk(fn func(*Dependency) bool) {
	stack := []*Dependency{d}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// Paths flattens deps into their directories in pre-order.
func Paths(deps []*Dependency) []string {
	var paths []string
	for _, d := range deps {
		d.Walk(func(dep *Dependency) bool {
			paths = append(paths, dep.Path)
			return true
		})
	}
	return paths
}

// Dedupe removes repeated strings, keeping the first occurrence.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
