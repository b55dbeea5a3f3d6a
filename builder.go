package virta

import (
	"fmt"

	"github.com/mhalonen/virta/pkg/api"
)

// GraphBuilder provides a fluent API for defining workflow graphs:
//
//	graph := virta.NewGraph("counter").
//	    Node("inc", "increment", nil).
//	    EdgeIf("inc", "inc", "count", virta.OpLt, 3).
//	    MaxSteps(100)
//
//	id, err := graph.Register(engine)
//
// The first declared node is the start node unless Start is called. Edge
// declaration order is evaluation order.
type GraphBuilder struct {
	spec api.GraphSpec
}

// NewGraph creates a new graph builder. The id is optional; pass "" to let
// the engine generate one at registration.
func NewGraph(id string) *GraphBuilder {
	return &GraphBuilder{
		spec: api.GraphSpec{ID: id},
	}
}

// ID returns the graph id given to NewGraph (possibly empty).
func (b *GraphBuilder) ID() string {
	return b.spec.ID
}

// Spec returns the underlying GraphSpec.
// Typically used when interacting with lower-level APIs.
func (b *GraphBuilder) Spec() GraphSpec {
	return b.spec
}

// Node declares a step bound to the named tool.
func (b *GraphBuilder) Node(id, tool string, meta Metadata) *GraphBuilder {
	if id == "" {
		panic("virta: node id must not be empty")
	}
	if tool == "" {
		panic(fmt.Sprintf("virta: node %q has empty tool name", id))
	}

	b.spec.Nodes = append(b.spec.Nodes, api.NodeSpec{
		ID:       id,
		Tool:     tool,
		Metadata: meta,
	})
	return b
}

// Edge declares an unconditional edge. When reached during edge evaluation
// it always matches.
func (b *GraphBuilder) Edge(from, to string) *GraphBuilder {
	b.spec.Edges = append(b.spec.Edges, api.EdgeSpec{From: from, To: to})
	return b
}

// EdgeIf declares an edge taken when the state field at key compares true
// against value under op.
func (b *GraphBuilder) EdgeIf(from, to, key string, op Op, value any) *GraphBuilder {
	b.spec.Edges = append(b.spec.Edges, api.EdgeSpec{
		From:      from,
		To:        to,
		Condition: &api.Condition{Key: key, Op: op, Value: value},
	})
	return b
}

// Start overrides the start node (default: the first declared node).
func (b *GraphBuilder) Start(nodeID string) *GraphBuilder {
	b.spec.StartNode = nodeID
	return b
}

// MaxSteps caps node executions per run of this graph, overriding the
// engine default.
func (b *GraphBuilder) MaxSteps(n int) *GraphBuilder {
	b.spec.MaxSteps = n
	return b
}

// Register validates and registers the built graph with the given engine,
// returning the graph id.
func (b *GraphBuilder) Register(eng Engine) (string, error) {
	return eng.CreateGraph(b.spec)
}

// MustRegister is like Register but panics on error.
// Useful for initialization in main().
func (b *GraphBuilder) MustRegister(eng Engine) string {
	id, err := b.Register(eng)
	if err != nil {
		panic(err)
	}
	return id
}
