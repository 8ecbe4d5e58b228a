// Package trafficlight computes hierarchical weekly status across the
// platform's sections. Leaves evaluate counters, external dependencies or
// data presence; parents aggregate children with strict priority
// gray > red > yellow > green.
package trafficlight

import (
	"context"
	"time"
)

// Status is one node's light.
type Status string

const (
	StatusGray   Status = "gray"
	StatusRed    Status = "red"
	StatusYellow Status = "yellow"
	StatusGreen  Status = "green"
)

// rank orders statuses by aggregation priority; lower rank dominates.
func rank(s Status) int {
	switch s {
	case StatusGray:
		return 0
	case StatusRed:
		return 1
	case StatusYellow:
		return 2
	default:
		return 3
	}
}

// Aggregate folds child statuses with gray > red > yellow > green. An empty
// child set is gray: a section with nothing to show is not green.
func Aggregate(children []Status) Status {
	if len(children) == 0 {
		return StatusGray
	}
	worst := StatusGreen
	for _, s := range children {
		if rank(s) < rank(worst) {
			worst = s
		}
	}
	return worst
}

// NodeResult is one evaluated node in the flat output map.
type NodeResult struct {
	Status   Status         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Leaf evaluates one leaf node for the given instant.
type Leaf interface {
	Evaluate(ctx context.Context, now time.Time) (NodeResult, error)
}

// LeafFunc adapts a plain function into a Leaf.
type LeafFunc func(ctx context.Context, now time.Time) (NodeResult, error)

func (f LeafFunc) Evaluate(ctx context.Context, now time.Time) (NodeResult, error) {
	return f(ctx, now)
}

// node is one registry entry: a leaf, or a parent listing child ids.
type node struct {
	id       string
	parent   string
	leaf     Leaf
	children []string
}

// Tree is the section registry. Register leaves and sections up front, then
// Evaluate per request; the tree itself is immutable after construction.
type Tree struct {
	nodes map[string]*node
	order []string
}

// NewTree creates an empty registry.
func NewTree() *Tree {
	return &Tree{nodes: map[string]*node{}}
}

// AddSection registers a parent node. parent may be empty for roots.
func (t *Tree) AddSection(id, parent string) {
	t.add(&node{id: id, parent: parent})
}

// AddLeaf registers a leaf under parent.
func (t *Tree) AddLeaf(id, parent string, leaf Leaf) {
	t.add(&node{id: id, parent: parent, leaf: leaf})
}

func (t *Tree) add(n *node) {
	t.nodes[n.id] = n
	t.order = append(t.order, n.id)
	if n.parent != "" {
		if p, ok := t.nodes[n.parent]; ok {
			p.children = append(p.children, n.id)
		}
	}
}

// Evaluate computes every node and returns the flat node_id → result map.
// A leaf whose evaluator errors reports gray with the error in metadata;
// one broken input never hides the rest of the board.
func (t *Tree) Evaluate(ctx context.Context, now time.Time) map[string]NodeResult {
	results := make(map[string]NodeResult, len(t.nodes))

	for _, id := range t.order {
		n := t.nodes[id]
		if n.leaf == nil {
			continue
		}
		res, err := n.leaf.Evaluate(ctx, now)
		if err != nil {
			res = NodeResult{
				Status:   StatusGray,
				Metadata: map[string]any{"error": err.Error()},
			}
		}
		results[id] = res
	}

	// Parents resolve children-first; order is reversed registration order,
	// which holds because sections are registered before their leaves.
	for i := len(t.order) - 1; i >= 0; i-- {
		n := t.nodes[t.order[i]]
		if n.leaf != nil {
			continue
		}
		statuses := make([]Status, 0, len(n.children))
		for _, child := range n.children {
			statuses = append(statuses, results[child].Status)
		}
		results[n.id] = NodeResult{
			Status:   Aggregate(statuses),
			Metadata: map[string]any{"children": len(n.children)},
		}
	}

	return results
}

// ComingSoon is the placeholder leaf for unreleased features.
func ComingSoon() Leaf {
	return LeafFunc(func(ctx context.Context, now time.Time) (NodeResult, error) {
		return NodeResult{Status: StatusGray, Metadata: map[string]any{"coming_soon": true}}, nil
	})
}

// CounterStatus applies the weekly-counter rule: green at or above goal,
// yellow when started, red at zero.
func CounterStatus(count, goal int) Status {
	switch {
	case count >= goal && goal > 0:
		return StatusGreen
	case count > 0:
		return StatusYellow
	default:
		return StatusRed
	}
}

// RateLimitSource reports whether the week carries an unresolved rate-limit
// alert for a persona ("" = any persona).
type RateLimitSource interface {
	HasUnresolvedRateLimit(ctx context.Context, weekKey, personaID string) (bool, error)
}
