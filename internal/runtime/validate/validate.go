// Package validate implements the graph validator: the set of static
// checks a workflow must pass before the runtime core will plan or run it.
package validate

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/fluxwell/runtime/internal/domain"
)

// ValidationError is one offense found by a single rule. Validate collects
// every offense from every rule before returning; it never stops early.
type ValidationError struct {
	Rule    string
	Message string
	NodeID  uuid.UUID // zero value if not node-specific
}

func (e ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Rule, e.Message) }

// Validate runs every structural rule against workflow and returns every
// offense found. A non-empty result means the workflow cannot be planned
// or executed.
func Validate(workflow domain.Workflow) []ValidationError {
	var errs []ValidationError

	nodeSet := make(map[uuid.UUID]domain.Node)
	for _, n := range workflow.Nodes {
		nodeSet[n.ID] = n
	}

	errs = append(errs, checkEdgeEndpoints(workflow, nodeSet)...)
	errs = append(errs, checkEdgeOutputsDeclared(workflow, nodeSet)...)
	errs = append(errs, checkEdgeInputsDeclared(workflow, nodeSet)...)
	errs = append(errs, checkCycles(workflow, nodeSet)...)
	errs = append(errs, checkTypeCompatibility(workflow, nodeSet)...)
	errs = append(errs, checkRequiredInputsSatisfiable(workflow, nodeSet)...)
	errs = append(errs, checkParamTypesKnown(workflow)...)

	return errs
}

func checkEdgeEndpoints(w domain.Workflow, nodes map[uuid.UUID]domain.Node) []ValidationError {
	var errs []ValidationError
	for _, e := range w.Edges {
		if _, ok := nodes[e.Source]; !ok {
			errs = append(errs, ValidationError{Rule: "edge_source_exists", Message: fmt.Sprintf("edge source %s does not reference an existing node", e.Source)})
		}
		if _, ok := nodes[e.Target]; !ok {
			errs = append(errs, ValidationError{Rule: "edge_target_exists", Message: fmt.Sprintf("edge target %s does not reference an existing node", e.Target)})
		}
	}
	return errs
}

func checkEdgeOutputsDeclared(w domain.Workflow, nodes map[uuid.UUID]domain.Node) []ValidationError {
	var errs []ValidationError
	for _, e := range w.Edges {
		src, ok := nodes[e.Source]
		if !ok {
			continue // already reported by checkEdgeEndpoints
		}
		if _, ok := src.OutputByName(e.SourceOutput); !ok {
			errs = append(errs, ValidationError{
				Rule: "edge_output_declared", NodeID: e.Source,
				Message: fmt.Sprintf("node %s has no declared output %q", src.Name, e.SourceOutput),
			})
		}
	}
	return errs
}

func checkEdgeInputsDeclared(w domain.Workflow, nodes map[uuid.UUID]domain.Node) []ValidationError {
	var errs []ValidationError
	for _, e := range w.Edges {
		tgt, ok := nodes[e.Target]
		if !ok {
			continue
		}
		if _, ok := tgt.InputByName(e.TargetInput); !ok {
			errs = append(errs, ValidationError{
				Rule: "edge_input_declared", NodeID: e.Target,
				Message: fmt.Sprintf("node %s has no declared input %q", tgt.Name, e.TargetInput),
			})
		}
	}
	return errs
}

// checkCycles runs a Kahn pass; any node left with non-zero in-degree after
// repeatedly removing zero-in-degree nodes belongs to a cycle.
func checkCycles(w domain.Workflow, nodes map[uuid.UUID]domain.Node) []ValidationError {
	inDegree := make(map[uuid.UUID]int, len(nodes))
	adj := make(map[uuid.UUID][]uuid.UUID)
	for id := range nodes {
		inDegree[id] = 0
	}
	for _, e := range w.Edges {
		if _, ok := nodes[e.Source]; !ok {
			continue
		}
		if _, ok := nodes[e.Target]; !ok {
			continue
		}
		inDegree[e.Target]++
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	queue := make([]uuid.UUID, 0, len(nodes))
	for _, n := range w.Nodes {
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	removed := make(map[uuid.UUID]bool)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		removed[id] = true
		for _, next := range adj[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	var remaining []uuid.UUID
	for _, n := range w.Nodes {
		if !removed[n.ID] {
			remaining = append(remaining, n.ID)
		}
	}
	if len(remaining) == 0 {
		return nil
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].String() < remaining[j].String() })
	return []ValidationError{{
		Rule:    "no_cycles",
		Message: fmt.Sprintf("workflow graph contains a cycle among nodes: %v", remaining),
	}}
}

func checkTypeCompatibility(w domain.Workflow, nodes map[uuid.UUID]domain.Node) []ValidationError {
	var errs []ValidationError
	for _, e := range w.Edges {
		src, ok1 := nodes[e.Source]
		tgt, ok2 := nodes[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		outParam, ok1 := src.OutputByName(e.SourceOutput)
		inParam, ok2 := tgt.InputByName(e.TargetInput)
		if !ok1 || !ok2 {
			continue // already reported
		}
		if !domain.TypesCompatible(outParam.Type, inParam.Type) {
			errs = append(errs, ValidationError{
				Rule: "type_compatibility", NodeID: e.Target,
				Message: fmt.Sprintf("edge %s.%s -> %s.%s: incompatible types %s -> %s",
					src.Name, e.SourceOutput, tgt.Name, e.TargetInput, outParam.Type, inParam.Type),
			})
		}
	}
	return errs
}

// checkParamTypesKnown rejects any node declaring an input or output whose
// ParamType tag is not one of the closed enum's known values.
func checkParamTypesKnown(w domain.Workflow) []ValidationError {
	var errs []ValidationError
	for _, n := range w.Nodes {
		for _, p := range n.Inputs {
			if !domain.ValidParamType(p.Type) {
				errs = append(errs, ValidationError{
					Rule: "param_type_known", NodeID: n.ID,
					Message: fmt.Sprintf("input %q of node %s declares unknown parameter type %q", p.Name, n.Name, p.Type),
				})
			}
		}
		for _, p := range n.Outputs {
			if !domain.ValidParamType(p.Type) {
				errs = append(errs, ValidationError{
					Rule: "param_type_known", NodeID: n.ID,
					Message: fmt.Sprintf("output %q of node %s declares unknown parameter type %q", p.Name, n.Name, p.Type),
				})
			}
		}
	}
	return errs
}

func checkRequiredInputsSatisfiable(w domain.Workflow, nodes map[uuid.UUID]domain.Node) []ValidationError {
	var errs []ValidationError
	for _, n := range w.Nodes {
		for _, p := range n.Inputs {
			if !p.Required {
				continue
			}
			if p.HasDefault {
				continue
			}
			if len(w.EdgesInto(n.ID, p.Name)) > 0 {
				continue
			}
			errs = append(errs, ValidationError{
				Rule: "required_input_satisfiable", NodeID: n.ID,
				Message: fmt.Sprintf("required input %q of node %s has neither a connected edge nor a default value", p.Name, n.Name),
			})
		}
	}
	return errs
}
