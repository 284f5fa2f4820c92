package chain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/LavishGent/propkit/internal/types"
)

func rankOf(l Layer) int {
	if r, ok := l.(Ranked); ok {
		return r.Rank()
	}
	if r, ok := defaultRanks[l.Kind()]; ok {
		return r
	}
	return customRank
}

// resolveOrder sorts layers outer to inner. Among layers free to go next the
// lowest (rank, kind) wins, so the result is deterministic. Constraints that
// name an absent kind are ignored.
func resolveOrder(layers []Layer, extra []Constraint) ([]Layer, error) {
	byKind := make(map[Kind]Layer, len(layers))
	for _, l := range layers {
		if l == nil {
			return nil, fmt.Errorf("%w: nil layer", types.ErrConfiguration)
		}
		k := l.Kind()
		if k == "" {
			return nil, fmt.Errorf("%w: layer %T has no kind", types.ErrConfiguration, l)
		}
		if _, dup := byKind[k]; dup {
			return nil, fmt.Errorf("%w: duplicate layer %q", types.ErrConfiguration, k)
		}
		byKind[k] = l
	}

	constraints := append([]Constraint(nil), extra...)
	for _, l := range layers {
		if c, ok := l.(Constrained); ok {
			constraints = append(constraints, c.Constraints()...)
		}
	}

	succ := make(map[Kind]map[Kind]bool, len(layers))
	indeg := make(map[Kind]int, len(layers))
	for _, c := range constraints {
		if _, ok := byKind[c.Outer]; !ok {
			continue
		}
		if _, ok := byKind[c.Inner]; !ok {
			continue
		}
		if c.Outer == c.Inner {
			return nil, fmt.Errorf("%w: layer %q ordered against itself", types.ErrConfiguration, c.Outer)
		}
		if succ[c.Outer] == nil {
			succ[c.Outer] = make(map[Kind]bool)
		}
		if succ[c.Outer][c.Inner] {
			continue
		}
		succ[c.Outer][c.Inner] = true
		indeg[c.Inner]++
	}

	less := func(a, b Kind) bool {
		ra, rb := rankOf(byKind[a]), rankOf(byKind[b])
		if ra != rb {
			return ra < rb
		}
		return a < b
	}

	var ready []Kind
	for k := range byKind {
		if indeg[k] == 0 {
			ready = append(ready, k)
		}
	}

	out := make([]Layer, 0, len(layers))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		k := ready[0]
		ready = ready[1:]
		out = append(out, byKind[k])
		for next := range succ[k] {
			indeg[next]--
			if indeg[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	if len(out) != len(layers) {
		var stuck []string
		for k := range byKind {
			if indeg[k] > 0 {
				stuck = append(stuck, string(k))
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: layer order has a cycle among %s", types.ErrConfiguration, strings.Join(stuck, ", "))
	}
	return out, nil
}
