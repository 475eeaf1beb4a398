// Package engine implements the workflow graph executor that drives jobs
// through the pipeline. The engine owns all job state commits: node
// handlers receive immutable snapshots and return partial-state patches,
// and every transition is persisted through the job store before the next
// step begins or a notification is emitted.
package engine

import (
	"context"
	"fmt"

	"github.com/slidesmith/slidesmith/internal/jobs"
)

// Complete is the terminal routing marker. A routing function returning
// Complete (or a node with no routing function) ends the job successfully.
const Complete = "__complete__"

// Handler is the contract a workflow node implements. Invoke receives an
// immutable snapshot of the job and returns a partial-state update or a
// classified failure. Handlers must not mutate the snapshot's maps or
// slices in ways the engine would observe; only the engine commits updates.
type Handler interface {
	Invoke(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, snapshot *jobs.Job) (*jobs.Patch, error) {
	return f(ctx, snapshot)
}

// RouteFunc maps the post-invocation job state to the name of the next
// node, or to Complete to end the job.
type RouteFunc func(j *jobs.Job) string

// Node is a named stage in the workflow graph.
type Node struct {
	Name    string
	Handler Handler
	Route   RouteFunc
}

// Graph is the static workflow definition: a fixed set of named nodes, a
// distinguished entry node, and an optional recovery node that fatal
// failures route through once per job. The graph is immutable once
// construction finishes and is shared read-only across concurrent jobs.
type Graph struct {
	nodes    map[string]*Node
	entry    string
	recovery string
}

// NewGraph creates an empty workflow graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode registers a named node with its handler and routing function.
// A nil route marks the node as terminal (routes to Complete).
func (g *Graph) AddNode(name string, handler Handler, route RouteFunc) error {
	if name == "" || name == Complete {
		return fmt.Errorf("invalid node name %q", name)
	}
	if handler == nil {
		return fmt.Errorf("node %s: handler required", name)
	}
	if _, exists := g.nodes[name]; exists {
		return fmt.Errorf("node %s already registered", name)
	}

	g.nodes[name] = &Node{Name: name, Handler: handler, Route: route}
	return nil
}

// SetEntryPoint designates the node where execution begins.
func (g *Graph) SetEntryPoint(name string) error {
	if _, exists := g.nodes[name]; !exists {
		return fmt.Errorf("entry node %s not registered", name)
	}
	g.entry = name
	return nil
}

// SetRecoveryNode designates the error-handling node that unrecovered
// failures route to, at most once per job. Without one, failures go
// directly to the failed status.
func (g *Graph) SetRecoveryNode(name string) error {
	if _, exists := g.nodes[name]; !exists {
		return fmt.Errorf("recovery node %s not registered", name)
	}
	g.recovery = name
	return nil
}

// Node looks up a registered node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Entry returns the entry node name.
func (g *Graph) Entry() string {
	return g.entry
}

// Recovery returns the recovery node name, or empty when none is set.
func (g *Graph) Recovery() string {
	return g.recovery
}

// Validate confirms the graph is executable: at least one node and a
// registered entry point.
func (g *Graph) Validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}
	if g.entry == "" {
		return fmt.Errorf("graph has no entry point")
	}
	return nil
}
