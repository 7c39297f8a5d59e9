package sync

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"wc-salesforce-sync/internal/store"
)

// Relationship ordering modes.
const (
	OrderingLegacy = "legacy"
	OrderingGraph  = "graph"
)

var ErrDependencyCycle = errors.New("relationship dependencies form a cycle")

// Prioritize moves relationships behind the relationships that create the
// objects they require. It is a single forward pass: for every required
// object that some other relationship creates and that currently sits after
// the dependent relationship, the dependent one is moved to the position
// right behind it. Chains and cycles are not guaranteed to end up in a valid
// order; PrioritizeGraph is the strict alternative.
func Prioritize(rels []*store.Relationship) []*store.Relationship {
	out := slices.Clone(rels)

	for i, rel := range rels {
		for _, req := range rel.RequiredObjects {
			for j, other := range rels {
				if i == j || req.Name != other.ToObject {
					continue
				}
				newPos := indexByTarget(out, req.Name)
				if newPos == -1 {
					continue
				}
				cur := indexByTarget(out, rel.ToObject)
				if newPos > cur {
					moved := out[cur]
					out = slices.Delete(out, cur, cur+1)
					out = slices.Insert(out, newPos, moved)
				}
			}
		}
	}
	return out
}

func indexByTarget(rels []*store.Relationship, toObject string) int {
	return slices.IndexFunc(rels, func(r *store.Relationship) bool {
		return r.ToObject == toObject
	})
}

// PrioritizeGraph orders relationships so that every relationship comes after
// all relationships creating an object it requires. Independent relationships
// keep their relative order.
func PrioritizeGraph(rels []*store.Relationship) ([]*store.Relationship, error) {
	n := len(rels)
	indegree := make([]int, n)
	dependents := make([][]int, n)

	for i, rel := range rels {
		for _, req := range rel.RequiredObjects {
			for j, other := range rels {
				if i != j && req.Name == other.ToObject {
					dependents[j] = append(dependents[j], i)
					indegree[i]++
				}
			}
		}
	}

	out := make([]*store.Relationship, 0, n)
	emitted := make([]bool, n)
	for len(out) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !emitted[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, cycleError(rels, emitted)
		}

		emitted[next] = true
		out = append(out, rels[next])
		for _, d := range dependents[next] {
			indegree[d]--
		}
	}
	return out, nil
}

func cycleError(rels []*store.Relationship, emitted []bool) error {
	var names []string
	for i, rel := range rels {
		if !emitted[i] {
			names = append(names, rel.ToObject)
		}
	}
	return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(names, ", "))
}

// order applies the configured ordering mode.
func order(mode string, rels []*store.Relationship) ([]*store.Relationship, error) {
	if mode == OrderingGraph {
		return PrioritizeGraph(rels)
	}
	return Prioritize(rels), nil
}
