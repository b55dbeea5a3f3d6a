package api

import "fmt"

// Op is a comparison operator usable in an edge condition.
// The operator set is fixed and closed; an unknown operator is rejected at
// graph validation time, never at evaluation time.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpLt Op = "<"
	OpGe Op = ">="
	OpLe Op = "<="
)

// ValidOp reports whether op is one of the supported comparison operators.
func ValidOp(op Op) bool {
	switch op {
	case OpEq, OpNe, OpGt, OpLt, OpGe, OpLe:
		return true
	}
	return false
}

// Condition is a single comparison of a state field against a literal value.
// Key may be a dotted path into nested maps ("profile.row_count").
type Condition struct {
	Key   string `json:"key"`
	Op    Op     `json:"op"`
	Value any    `json:"value"`
}

// NodeSpec is a single named step bound to a registered tool.
type NodeSpec struct {
	ID       string   `json:"id"`
	Tool     string   `json:"tool"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// EdgeSpec is a directed link between two nodes. A nil Condition makes the
// edge unconditional: it always matches when evaluated.
type EdgeSpec struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	Condition *Condition `json:"condition,omitempty"`
}

// GraphSpec describes a workflow graph. It is immutable once registered with
// an engine; "updating" a workflow means registering a new graph id.
//
// Edges out of the same node are evaluated in declaration order and the
// first match wins, so the order of Edges is significant.
type GraphSpec struct {
	// ID is optional. When empty the engine generates one.
	ID string `json:"id,omitempty"`

	Nodes []NodeSpec `json:"nodes"`
	Edges []EdgeSpec `json:"edges"`

	// StartNode defaults to the first declared node when empty.
	StartNode string `json:"start_node,omitempty"`

	// MaxSteps caps node executions for a single run of this graph.
	// Zero means the engine default.
	MaxSteps int `json:"max_steps,omitempty"`
}

// Start returns the effective start node id.
func (g GraphSpec) Start() string {
	if g.StartNode != "" {
		return g.StartNode
	}
	if len(g.Nodes) > 0 {
		return g.Nodes[0].ID
	}
	return ""
}

// Node returns the node with the given id.
func (g GraphSpec) Node(id string) (NodeSpec, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeSpec{}, false
}

// OutEdges returns the edges leaving the given node, in declaration order.
func (g GraphSpec) OutEdges(from string) []EdgeSpec {
	var out []EdgeSpec
	for _, e := range g.Edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the structural integrity of the spec and returns a
// *ValidationError enumerating every problem found, or nil.
//
// It checks that node ids are unique and non-empty, that the start node and
// every edge endpoint resolve to declared nodes, that all condition
// operators belong to the supported set, and that every node is reachable
// from the start node. Tool names are deliberately not checked here: tools
// are resolved lazily at run time, so graphs can be registered before their
// tools.
func (g GraphSpec) Validate() error {
	var v ValidationError

	if len(g.Nodes) == 0 {
		v.Issues = append(v.Issues, "graph must contain at least one node")
		return &v
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			v.Issues = append(v.Issues, "node with empty id")
			continue
		}
		if seen[n.ID] {
			v.Issues = append(v.Issues, fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seen[n.ID] = true
	}

	start := g.Start()
	if !seen[start] {
		v.Issues = append(v.Issues, fmt.Sprintf("start node %q is not a declared node", start))
	}

	for i, e := range g.Edges {
		if !seen[e.From] {
			v.Issues = append(v.Issues, fmt.Sprintf("edge %d references unknown from-node %q", i, e.From))
		}
		if !seen[e.To] {
			v.Issues = append(v.Issues, fmt.Sprintf("edge %d references unknown to-node %q", i, e.To))
		}
		if e.Condition != nil && !ValidOp(e.Condition.Op) {
			v.Issues = append(v.Issues, fmt.Sprintf("edge %d uses unknown operator %q", i, e.Condition.Op))
		}
	}

	// Reachability only makes sense once the endpoints check out.
	if len(v.Issues) == 0 {
		reachable := make(map[string]bool, len(g.Nodes))
		stack := []string{start}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reachable[cur] {
				continue
			}
			reachable[cur] = true
			for _, e := range g.OutEdges(cur) {
				stack = append(stack, e.To)
			}
		}
		for _, n := range g.Nodes {
			if !reachable[n.ID] {
				v.Issues = append(v.Issues, fmt.Sprintf("node %q is unreachable from start node %q", n.ID, start))
			}
		}
	}

	if len(v.Issues) > 0 {
		return &v
	}
	return nil
}
