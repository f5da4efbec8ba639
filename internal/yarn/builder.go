package yarn

import (
	"io"
	"regexp"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/git-pkgs/proddeps/internal/core"
)

// Top-level entries such as "foo@^1.0.0" are ranges yarn prints for
// workspace or meta packages, not installed packages.
var rangeEntry = regexp.MustCompile(`@[\^~]`)

// Builder resolves a raw yarn tree into installed dependencies. A Builder
// holds the orphan registry for one tree and must not be reused across
// documents or shared between goroutines.
type Builder struct {
	root    string
	exists  ExistsFunc
	logger  *log.Logger
	orphans map[string]*core.RawTreeNode
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithExists overrides the filesystem check used to locate packages.
func WithExists(fn ExistsFunc) BuilderOption {
	return func(b *Builder) {
		b.exists = fn
	}
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(l *log.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder creates a Builder for the project rooted at root.
func NewBuilder(root string, opts ...BuilderOption) *Builder {
	b := &Builder{
		root:    root,
		exists:  DirExists,
		logger:  log.New(io.Discard),
		orphans: make(map[string]*core.RawTreeNode),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// substitution is the chain of orphan names already spliced in above a
// node; an orphan is never spliced into its own subtree.
type substitution struct {
	name string
	up   *substitution
}

func (s *substitution) contains(name string) bool {
	for ; s != nil; s = s.up {
		if s.name == name {
			return true
		}
	}
	return false
}

type frame struct {
	raw      *core.RawTreeNode
	ancestry []string
	parent   *core.Dependency // nil for top-level nodes
	subs     *substitution
}

// Build resolves trees in document order. With prune set, top-level range
// entries are skipped. Nodes whose directory cannot be found are dropped
// together with their subtree and remembered as orphans: when a node with
// the same declared name shows up later as a child, the orphan's subtree
// is used in its place, since yarn prints the complete children of a
// hoisted package only once.
func (b *Builder) Build(trees []*core.RawTreeNode, prune bool) []*core.Dependency {
	var result []*core.Dependency

	stack := make([]frame, 0, len(trees))
	for i := len(trees) - 1; i >= 0; i-- {
		tree := trees[i]
		if tree == nil {
			continue
		}
		if prune && rangeEntry.MatchString(tree.Name) {
			b.logger.Debug("skipping range entry", "name", tree.Name)
			continue
		}
		stack = append(stack, frame{raw: tree, ancestry: []string{b.root}})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		raw := f.raw
		if f.parent != nil {
			if orphan, ok := b.orphans[raw.Name]; ok && !f.subs.contains(raw.Name) {
				b.logger.Debug("substituting orphan", "name", raw.Name, "children", len(orphan.Children))
				raw = orphan
				f.subs = &substitution{name: raw.Name, up: f.subs}
			}
		}

		name, version := core.SplitDeclaredName(raw.Name)
		var path string
		ok := false
		// An empty name would resolve to node_modules itself.
		if name != "" {
			path, ok = FindPath(b.exists, f.ancestry, name)
		}
		if !ok {
			b.logger.Debug("orphaned dependency", "name", raw.Name)
			b.orphans[raw.Name] = raw
			continue
		}

		dep := &core.Dependency{Name: name, Version: version, Path: path}
		if f.parent == nil {
			result = append(result, dep)
		} else {
			f.parent.Children = append(f.parent.Children, dep)
		}

		childAncestry := make([]string, len(f.ancestry)+1)
		copy(childAncestry, f.ancestry)
		childAncestry[len(f.ancestry)] = name

		for i := len(raw.Children) - 1; i >= 0; i-- {
			if raw.Children[i] == nil {
				continue
			}
			stack = append(stack, frame{
				raw:      raw.Children[i],
				ancestry: childAncestry,
				parent:   dep,
				subs:     f.subs,
			})
		}
	}

	return result
}

// Orphans returns the sorted declared names that could not be resolved
// at some point during Build.
func (b *Builder) Orphans() []string {
	names := make([]string, 0, len(b.orphans))
	for name := range b.orphans {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
