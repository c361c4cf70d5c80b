package task

import (
	"fmt"
	"sort"
)

// Graph is a read-only adjacency view over a work item set.
type Graph struct {
	items      map[string]WorkItem
	order      []string            // input order
	dependents map[string][]string // dep -> items that depend on it
}

// NewGraph builds the adjacency for items without validating it. Callers that
// need the structural guarantees must use Validate.
func NewGraph(items []WorkItem) *Graph {
	g := &Graph{
		items:      make(map[string]WorkItem, len(items)),
		order:      make([]string, 0, len(items)),
		dependents: make(map[string][]string),
	}
	for _, it := range items {
		if _, seen := g.items[it.ID]; seen {
			continue
		}
		g.items[it.ID] = it
		g.order = append(g.order, it.ID)
	}
	for _, id := range g.order {
		for _, dep := range g.items[id].DependsOn {
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}
	return g
}

// Validate checks the work item set and returns its graph. Checks run in order:
// ids (empty, duplicate, artifact name collision), dependency existence, then
// cycles via depth-first search with recursion-stack coloring.
func Validate(items []WorkItem) (*Graph, error) {
	seen := make(map[string]bool, len(items))
	slugs := make(map[string]string, len(items))
	for _, it := range items {
		if it.ID == "" {
			return nil, &ValidationError{Kind: ErrEmptyID, Msg: fmt.Sprintf("item %q has no id", it.Name)}
		}
		if seen[it.ID] {
			return nil, &ValidationError{Kind: ErrDuplicateID, IDs: []string{it.ID}, Msg: it.ID}
		}
		seen[it.ID] = true
		slug := Slug(it.ID)
		if other, clash := slugs[slug]; clash {
			return nil, &ValidationError{
				Kind: ErrDuplicateID,
				IDs:  []string{other, it.ID},
				Msg:  fmt.Sprintf("%s and %s map to the same artifact name %q", other, it.ID, slug),
			}
		}
		slugs[slug] = it.ID
	}

	for _, it := range items {
		for _, dep := range it.DependsOn {
			if !seen[dep] {
				return nil, &ValidationError{
					Kind: ErrMissingDependency,
					IDs:  []string{it.ID, dep},
					Msg:  fmt.Sprintf("%s depends on unknown task %s", it.ID, dep),
				}
			}
		}
	}

	g := NewGraph(items)
	if err := g.checkCycles(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) checkCycles() error {
	visited := make(map[string]bool, len(g.items))
	recursionStack := make(map[string]bool, len(g.items))
	var path []string

	var visit func(id string) error
	visit = func(id string) error {
		visited[id] = true
		recursionStack[id] = true
		path = append(path, id)

		for _, dep := range g.items[id].DependsOn {
			if _, ok := g.items[dep]; !ok {
				continue
			}
			if !visited[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			} else if recursionStack[dep] {
				// Back edge: the cycle is the stack suffix starting at dep.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i
						break
					}
				}
				cycle := append([]string{}, path[start:]...)
				cycle = append(cycle, dep)
				return cycleError(cycle)
			}
		}

		recursionStack[id] = false
		path = path[:len(path)-1]
		return nil
	}

	for _, id := range g.order {
		if !visited[id] {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the number of items in the graph.
func (g *Graph) Len() int { return len(g.order) }

// Item returns the work item with the given id.
func (g *Graph) Item(id string) (WorkItem, bool) {
	it, ok := g.items[id]
	return it, ok
}

// Items returns the work items in input order.
func (g *Graph) Items() []WorkItem {
	out := make([]WorkItem, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.items[id])
	}
	return out
}

// Dependents returns the ids that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// ReadySet returns the items whose dependencies are all in completed and which
// are neither completed nor running. The result is ordered by priority, then by
// input order. It has no side effects.
func (g *Graph) ReadySet(completed, running map[string]bool) []string {
	var ready []WorkItem
	for _, id := range g.order {
		if completed[id] || running[id] {
			continue
		}
		it := g.items[id]
		ok := true
		for _, dep := range it.DependsOn {
			if !completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, it)
		}
	}
	ready = SortByPriority(ready)
	ids := make([]string, len(ready))
	for i, it := range ready {
		ids[i] = it.ID
	}
	return ids
}

// TopologicalOrder returns ids in dependency order (dependencies first).
// It assumes a validated graph.
func (g *Graph) TopologicalOrder() []string {
	var sorted []string
	visited := make(map[string]bool, len(g.items))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		it, exists := g.items[id]
		if !exists {
			return
		}
		for _, dep := range it.DependsOn {
			visit(dep)
		}
		sorted = append(sorted, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return sorted
}

// TransitiveDependencies returns every id reachable through depends_on edges.
func (g *Graph) TransitiveDependencies(id string) []string {
	seen := map[string]bool{}
	var walk func(string)
	walk = func(cur string) {
		for _, dep := range g.items[cur].DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			walk(dep)
		}
	}
	walk(id)
	out := make([]string, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}
