// Package pipeline implements the LLM-driven analysis graph used in pipeline mode.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Update mutates the graph state with the output of one node.
type Update func(*State)

// NodeFunc computes a node's output from a read-only state snapshot.
type NodeFunc func(ctx context.Context, s State) (Update, error)

// Node is a named step in the graph.
type Node struct {
	Name      string
	DependsOn []string
	Run       NodeFunc
}

// NodeHook is called after every node run.
type NodeHook func(node string, duration time.Duration, err error)

// Graph runs nodes in dependency order. Nodes whose dependencies are all
// satisfied run concurrently; their updates are applied once the whole level
// finishes, in declaration order.
type Graph struct {
	nodes  []Node
	levels [][]int
	hook   NodeHook
}

// NewGraph validates the nodes and computes the execution levels.
// It implements Kahn's algorithm; unknown dependencies, duplicate names and
// cycles are rejected.
func NewGraph(nodes ...Node) (*Graph, error) {
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("node %d has no name", i)
		}
		if n.Run == nil {
			return nil, fmt.Errorf("node %s has no run function", n.Name)
		}
		if _, dup := index[n.Name]; dup {
			return nil, fmt.Errorf("duplicate node %s", n.Name)
		}
		index[n.Name] = i
	}

	inDegree := make([]int, len(nodes))
	downstream := make([][]int, len(nodes))
	for i, n := range nodes {
		for _, dep := range n.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("node %s depends on unknown node %s", n.Name, dep)
			}
			downstream[j] = append(downstream[j], i)
			inDegree[i]++
		}
	}

	var levels [][]int
	var ready []int
	for i := range nodes {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	placed := 0
	for len(ready) > 0 {
		levels = append(levels, ready)
		placed += len(ready)
		var next []int
		for _, i := range ready {
			for _, d := range downstream[i] {
				inDegree[d]--
				if inDegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		slices.Sort(next)
		ready = next
	}
	if placed != len(nodes) {
		return nil, fmt.Errorf("cycle detected: %d/%d nodes schedulable", placed, len(nodes))
	}

	return &Graph{nodes: nodes, levels: levels}, nil
}

// SetHook installs a hook called after each node run.
func (g *Graph) SetHook(hook NodeHook) {
	g.hook = hook
}

// Levels returns node names grouped by execution level.
func (g *Graph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, level := range g.levels {
		for _, idx := range level {
			out[i] = append(out[i], g.nodes[idx].Name)
		}
	}
	return out
}

// Invoke runs the graph against the initial state and returns the final state.
// The first node error cancels the remaining nodes of its level and is returned.
func (g *Graph) Invoke(ctx context.Context, initial State) (State, error) {
	state := initial.Clone()

	for _, level := range g.levels {
		if err := ctx.Err(); err != nil {
			return State{}, err
		}

		snapshot := state.Clone()
		updates := make([]Update, len(level))
		eg, egCtx := errgroup.WithContext(ctx)
		for i, idx := range level {
			node := g.nodes[idx]
			eg.Go(func() error {
				u, err := g.runNode(egCtx, node, snapshot)
				if err != nil {
					return fmt.Errorf("node %s: %w", node.Name, err)
				}
				updates[i] = u
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return State{}, err
		}

		for _, u := range updates {
			if u != nil {
				u(&state)
			}
		}
	}

	return state, nil
}

func (g *Graph) runNode(ctx context.Context, node Node, s State) (u Update, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if g.hook != nil {
			g.hook(node.Name, time.Since(start), err)
		}
	}()
	return node.Run(ctx, s)
}
