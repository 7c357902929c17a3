package validation

import (
	"fmt"
	"strings"

	"github.com/rendis/composer/pkg/schema"
)

// detectCycle runs a DFS with an explicit recursion stack over the dependency
// graph and reports the first cycle found as a single error. Self-dependencies
// and references to unknown steps are excluded from the graph; they are
// reported by other checks.
func detectCycle(steps []schema.Step, result *schema.ValidationResult) {
	ids := make([]string, 0, len(steps))
	graph := make(map[string][]string, len(steps))
	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		ids = append(ids, s.ID)
		known[s.ID] = true
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if dep == s.ID || !known[dep] {
				continue
			}
			graph[s.ID] = append(graph[s.ID], dep)
		}
	}

	visited := make(map[string]bool, len(steps))
	onStack := make(map[string]bool, len(steps))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, dep := range graph[id] {
			if onStack[dep] {
				// Close the loop: slice the stack from the first occurrence
				// of dep and append dep again for readability.
				for i, s := range stack {
					if s == dep {
						return append(append([]string{}, stack[i:]...), dep)
					}
				}
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		onStack[id] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, id := range ids {
		if visited[id] {
			continue
		}
		if cycle := visit(id); cycle != nil {
			result.AddError("steps", schema.ErrCodeCircularDependency,
				fmt.Sprintf("circular dependency detected: %s", strings.Join(cycle, " -> ")))
			return
		}
	}
}

// computeLevels levels the dependency graph with Kahn's algorithm. Each round
// drains the whole ready queue into one level, so a level holds every step
// whose dependencies are all satisfied by earlier levels. Steps appear within
// a level in definition order. Returns ok=false when not every step could be
// placed, which means a cycle survived.
func computeLevels(steps []schema.Step) ([][]string, bool) {
	known := make(map[string]bool, len(steps))
	for _, s := range steps {
		known[s.ID] = true
	}

	inDegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for _, s := range steps {
		inDegree[s.ID] = 0
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if dep == s.ID || !known[dep] {
				continue
			}
			inDegree[s.ID]++
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	ready := make([]string, 0, len(steps))
	for _, s := range steps {
		if inDegree[s.ID] == 0 {
			ready = append(ready, s.ID)
		}
	}

	order := make(map[string]int, len(steps))
	for i, s := range steps {
		order[s.ID] = i
	}

	var levels [][]string
	processed := 0
	for len(ready) > 0 {
		level := ready
		ready = nil
		levels = append(levels, level)
		processed += len(level)

		var next []string
		for _, id := range level {
			for _, dep := range dependents[id] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		// Keep definition order within the upcoming level.
		for i := 1; i < len(next); i++ {
			for j := i; j > 0 && order[next[j]] < order[next[j-1]]; j-- {
				next[j], next[j-1] = next[j-1], next[j]
			}
		}
		ready = next
	}

	if processed < len(steps) {
		return nil, false
	}
	return levels, true
}
