// Package plan implements the execution plan builder: Kahn's algorithm
// with level grouping over an already-validated workflow.
package plan

import (
	"sort"

	"github.com/google/uuid"

	"github.com/fluxwell/runtime/internal/domain"
)

// Build produces the workflow's execution levels. Within a level, node ids
// are ordered by their position in the workflow's declared node list so
// that the same workflow always yields the same plan (L3 determinism).
//
// Callers must only invoke Build on a workflow that already passed
// validate.Validate — Build does not re-check for cycles; a workflow with
// a cycle simply yields levels that omit the cyclic nodes.
func Build(w domain.Workflow) [][]uuid.UUID {
	inDegree := make(map[uuid.UUID]int, len(w.Nodes))
	adj := make(map[uuid.UUID][]uuid.UUID)
	for _, n := range w.Nodes {
		inDegree[n.ID] = 0
	}
	for _, e := range w.Edges {
		inDegree[e.Target]++
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	remaining := inDegree
	var levels [][]uuid.UUID
	placed := make(map[uuid.UUID]bool)

	for len(placed) < len(w.Nodes) {
		var level []uuid.UUID
		for _, n := range w.Nodes {
			if placed[n.ID] {
				continue
			}
			if remaining[n.ID] == 0 {
				level = append(level, n.ID)
			}
		}
		if len(level) == 0 {
			break // remaining nodes form a cycle; validator should have rejected this
		}

		sort.Slice(level, func(i, j int) bool { return w.NodePosition(level[i]) < w.NodePosition(level[j]) })

		for _, id := range level {
			placed[id] = true
		}
		for _, id := range level {
			for _, next := range adj[id] {
				remaining[next]--
			}
		}
		levels = append(levels, level)
	}

	return levels
}

// FlatOrder returns every node id in level-major order, used to build the
// WorkflowExecutionContext's flat NodeOrder field.
func FlatOrder(levels [][]uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, level := range levels {
		out = append(out, level...)
	}
	return out
}

// LevelOf returns the index of the level containing id, or -1 if absent
// (e.g. a cyclic node the planner could not place).
func LevelOf(levels [][]uuid.UUID, id uuid.UUID) int {
	for i, level := range levels {
		for _, n := range level {
			if n == id {
				return i
			}
		}
	}
	return -1
}
