// Package graph validates workflow node/edge definitions and computes the
// execution order. Validation is fatal: a run never starts on a graph that
// fails here.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oddsflow/oddsflow/pkg/models"
)

// ErrorKind classifies graph validation failures.
type ErrorKind string

const (
	ErrorKindCycle        ErrorKind = "cycle"
	ErrorKindDanglingEdge ErrorKind = "dangling_edge"
	ErrorKindDuplicateID  ErrorKind = "duplicate_node_id"
)

// Error is a fatal graph validation error.
type Error struct {
	Kind    ErrorKind
	EdgeID  string
	NodeIDs []string // cycle members or the unknown node ids an edge references
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrorKindCycle:
		return fmt.Sprintf("workflow graph contains a cycle: %s", strings.Join(e.NodeIDs, ", "))
	case ErrorKindDanglingEdge:
		return fmt.Sprintf("edge %s references unknown node(s): %s", e.EdgeID, strings.Join(e.NodeIDs, ", "))
	case ErrorKindDuplicateID:
		return fmt.Sprintf("duplicate node id: %s", strings.Join(e.NodeIDs, ", "))
	default:
		return "invalid workflow graph"
	}
}

// OrderedGraph is a validated workflow graph with a fixed topological order.
type OrderedGraph struct {
	Order        []string
	Depth        map[string]int
	predecessors map[string][]string
	successors   map[string][]string
	nodes        map[string]*models.WorkflowNode
}

// Node returns the node definition for an id.
func (g *OrderedGraph) Node(id string) (*models.WorkflowNode, bool) {
	n, ok := g.nodes[id]

	return n, ok
}

// Predecessors returns the direct upstream node ids of a node.
func (g *OrderedGraph) Predecessors(id string) []string {
	return g.predecessors[id]
}

// Successors returns the direct downstream node ids of a node.
func (g *OrderedGraph) Successors(id string) []string {
	return g.successors[id]
}

// Descendants returns every node reachable downstream of a node. Used to skip
// the subtree of a failed node and to terminate a rejected approval branch.
func (g *OrderedGraph) Descendants(id string) []string {
	seen := make(map[string]bool)
	stack := append([]string(nil), g.successors[id]...)

	var out []string

	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if seen[next] {
			continue
		}

		seen[next] = true
		out = append(out, next)
		stack = append(stack, g.successors[next]...)
	}

	sort.Strings(out)

	return out
}

// Validate checks nodes and edges and computes a topological order using
// Kahn's algorithm. Ties between ready nodes are broken by node id so the
// order is deterministic for identical inputs.
func Validate(nodes []*models.WorkflowNode, edges []*models.Edge) (*OrderedGraph, error) {
	byID := make(map[string]*models.WorkflowNode, len(nodes))

	for _, n := range nodes {
		if _, dup := byID[n.ID]; dup {
			return nil, &Error{Kind: ErrorKindDuplicateID, NodeIDs: []string{n.ID}}
		}

		byID[n.ID] = n
	}

	predecessors := make(map[string][]string, len(nodes))
	successors := make(map[string][]string, len(nodes))
	inDegree := make(map[string]int, len(nodes))

	for _, e := range edges {
		var unknown []string

		if _, ok := byID[e.SourceNode]; !ok {
			unknown = append(unknown, e.SourceNode)
		}

		if _, ok := byID[e.TargetNode]; !ok {
			unknown = append(unknown, e.TargetNode)
		}

		if len(unknown) > 0 {
			return nil, &Error{Kind: ErrorKindDanglingEdge, EdgeID: e.ID, NodeIDs: unknown}
		}

		predecessors[e.TargetNode] = append(predecessors[e.TargetNode], e.SourceNode)
		successors[e.SourceNode] = append(successors[e.SourceNode], e.TargetNode)
		inDegree[e.TargetNode]++
	}

	// Kahn's algorithm over a sorted ready set.
	ready := make([]string, 0, len(nodes))

	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	sort.Strings(ready)

	remaining := make(map[string]int, len(inDegree))
	for id, d := range inDegree {
		remaining[id] = d
	}

	order := make([]string, 0, len(nodes))
	depth := make(map[string]int, len(nodes))

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, succ := range successors[id] {
			if d := depth[id] + 1; d > depth[succ] {
				depth[succ] = d
			}

			remaining[succ]--
			if remaining[succ] == 0 {
				ready = insertSorted(ready, succ)
			}
		}
	}

	if len(order) != len(nodes) {
		return nil, &Error{Kind: ErrorKindCycle, NodeIDs: cycleMembers(remaining, successors)}
	}

	return &OrderedGraph{
		Order:        order,
		Depth:        depth,
		predecessors: predecessors,
		successors:   successors,
		nodes:        byID,
	}, nil
}

// cycleMembers narrows the nodes Kahn could not order down to the actual
// cycle members. The residual set also holds nodes downstream of a cycle;
// peeling nodes with no residual successor until a fixpoint leaves only the
// nodes that keep an edge alive on each other.
func cycleMembers(remaining map[string]int, successors map[string][]string) []string {
	residual := make(map[string]bool)

	for id, d := range remaining {
		if d > 0 {
			residual[id] = true
		}
	}

	for changed := true; changed; {
		changed = false

		for id := range residual {
			keep := false

			for _, succ := range successors[id] {
				if residual[succ] {
					keep = true

					break
				}
			}

			if !keep {
				delete(residual, id)

				changed = true
			}
		}
	}

	members := make([]string, 0, len(residual))
	for id := range residual {
		members = append(members, id)
	}

	sort.Strings(members)

	return members
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id

	return ids
}
