package yarn

import "github.com/git-pkgs/proddeps/internal/core"

// Select returns the dependencies reachable from the named top-level
// dependencies, each once, in first-visit depth-first order. With no names
// the top-level dependencies are returned unchanged.
//
// Yarn prints the children of a hoisted package as stubs under each parent;
// a child installed in the same directory as a top-level dependency is
// treated as that dependency, so its full subtree is followed.
func Select(deps []*core.Dependency, names []string) ([]*core.Dependency, error) {
	if len(names) == 0 {
		return deps, nil
	}

	index := make(map[string]*core.Dependency, len(deps))
	for _, dep := range deps {
		if _, dup := index[dep.Name]; dup {
			return nil, &core.DuplicateNameError{Name: dep.Name}
		}
		index[dep.Name] = dep
	}

	canonical := func(dep *core.Dependency) *core.Dependency {
		if top, ok := index[dep.Name]; ok && top.Path == dep.Path {
			return top
		}
		return dep
	}

	reached := make(map[*core.Dependency]struct{})
	var result []*core.Dependency

	for _, name := range names {
		entry, ok := index[name]
		if !ok {
			return nil, &core.UnknownNameError{Name: name}
		}

		stack := []*core.Dependency{entry}
		for len(stack) > 0 {
			dep := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if _, seen := reached[dep]; seen {
				continue
			}
			reached[dep] = struct{}{}
			result = append(result, dep)

			for i := len(dep.Children) - 1; i >= 0; i-- {
				stack = append(stack, canonical(dep.Children[i]))
			}
		}
	}

	return result, nil
}
