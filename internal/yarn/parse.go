package yarn

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/git-pkgs/proddeps/internal/core"
)

var treeLine = regexp.MustCompile(`^\{"type":"tree".*\}$`)

type treeDocument struct {
	Type string `json:"type"`
	Data struct {
		Trees []*core.RawTreeNode `json:"trees"`
	} `json:"data"`
}

// ParseTree extracts the dependency tree from `yarn list --json` output.
// Yarn prints one JSON document per line; exactly one of them must be the
// tree.
func ParseTree(out string) ([]*core.RawTreeNode, error) {
	var match string
	count := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if treeLine.MatchString(line) {
			match = line
			count++
		}
	}
	if count != 1 {
		return nil, &core.MalformedOutputError{Count: count}
	}

	var doc treeDocument
	if err := json.Unmarshal([]byte(match), &doc); err != nil {
		return nil, &core.MalformedOutputError{Count: count, Err: err}
	}
	return doc.Data.Trees, nil
}
