package simulation

import (
	"strings"

	"github.com/titan-sim/titan/internal/params"
)

// ScaleLeaves multiplies every numeric parameter whose dotted path satisfies
// match. YAML aliases may share one node between several paths; each node is
// scaled once.
func ScaleLeaves(p *params.Tree, match func(path string) bool, factor float64) error {
	seen := make(map[*params.Tree]bool)
	var paths []string
	p.Walk(func(path string, leaf *params.Tree) {
		if seen[leaf] || !match(path) {
			return
		}
		switch leaf.Scalar().(type) {
		case int, float64:
		default:
			return
		}
		seen[leaf] = true
		paths = append(paths, path)
	})
	for _, path := range paths {
		if err := p.Scale(path, factor); err != nil {
			return err
		}
	}
	return nil
}

// SetLeaves assigns v to every parameter whose dotted path satisfies match.
func SetLeaves(p *params.Tree, match func(path string) bool, v any) error {
	var paths []string
	p.Walk(func(path string, _ *params.Tree) {
		if match(path) {
			paths = append(paths, path)
		}
	})
	for _, path := range paths {
		if err := p.Set(path, v); err != nil {
			return err
		}
	}
	return nil
}

// Under matches paths inside the section prefix.
func Under(prefix string) func(string) bool {
	return func(path string) bool { return strings.HasPrefix(path, prefix+".") }
}
