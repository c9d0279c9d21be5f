package domain

import "github.com/google/uuid"

// Parameter declares one named input or output slot on a node.
type Parameter struct {
	Name     string
	Type     ParamType
	Required bool
	Default  any  // used only when HasDefault is true
	HasDefault bool
	Hidden   bool
}

// Node is one typed unit of computation in a workflow. Type selects the
// ExecutableNode implementation from the node registry; the core never
// interprets Type itself.
type Node struct {
	ID      uuid.UUID
	Name    string
	Type    string
	Inputs  []Parameter
	Outputs []Parameter
	// Config is node-specific static configuration (e.g. an HTTP method,
	// a condition expression), opaque to the runtime core.
	Config map[string]any
	// EstimatedUsage is the node's statically declared credit cost, summed
	// by the Runtime Core's pre-flight credit check.
	EstimatedUsage int
}

func (n Node) InputByName(name string) (Parameter, bool) {
	for _, p := range n.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

func (n Node) OutputByName(name string) (Parameter, bool) {
	for _, p := range n.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Edge connects one node's declared output to another's declared input.
// Multiple edges into the same target input are collected deterministically
// by their position in Workflow.Edges — see EdgesInto.
type Edge struct {
	Source       uuid.UUID
	SourceOutput string
	Target       uuid.UUID
	TargetInput  string
	// Condition holds an optional expr-lang expression. Neither the core
	// nor any builtin node evaluates it; the conditional-router node reads
	// its condition from its own Config instead.
	Condition string
}

// Workflow is the immutable input to a run: a directed graph of Nodes
// connected by Edges.
type Workflow struct {
	ID      uuid.UUID
	Trigger TriggerType
	Nodes   []Node
	Edges   []Edge
}

func (w Workflow) NodeByID(id uuid.UUID) (Node, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodePosition returns the index of a node in the workflow's declared node
// list, used to break level-ordering ties deterministically.
func (w Workflow) NodePosition(id uuid.UUID) int {
	for i, n := range w.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// EdgesInto returns every edge targeting (node, input), in workflow edge
// declaration order.
func (w Workflow) EdgesInto(node uuid.UUID, input string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.Target == node && e.TargetInput == input {
			out = append(out, e)
		}
	}
	return out
}

// InboundEdges returns every edge terminating at node, regardless of input.
func (w Workflow) InboundEdges(node uuid.UUID) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.Target == node {
			out = append(out, e)
		}
	}
	return out
}

// Predecessors returns the distinct set of source node ids feeding node.
func (w Workflow) Predecessors(node uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, e := range w.InboundEdges(node) {
		if !seen[e.Source] {
			seen[e.Source] = true
			out = append(out, e.Source)
		}
	}
	return out
}
