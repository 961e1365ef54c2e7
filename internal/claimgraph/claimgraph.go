// Package claimgraph implements structural mutation of the claim dependency
// graph: node edits, additions, and deletions with renumbering.
//
// The graph is an arena of node records keyed by string id inside one
// versioned JSONB payload, not a normalized relational graph. Every
// operation here is pure: it takes a graph value and returns a new one,
// leaving persistence (clone into a new version) to the drafting service.
// The dependency relation restricted to nodes present in the graph must stay
// acyclic; every structural change re-checks the whole graph, since an edit
// can introduce a cycle transitively through untouched nodes.
package claimgraph

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

// ErrNoChange is returned for an empty edit patch.
var ErrNoChange = errors.New("claimgraph: no fields provided for edit")

// NodeNotFoundError reports an operation on an absent node.
type NodeNotFoundError struct {
	NodeID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("claimgraph: claim node %q not found", e.NodeID)
}

// UnknownDependencyError reports a dependency on a node not present in the
// graph.
type UnknownDependencyError struct {
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("claimgraph: dependency %q does not exist", e.DependencyID)
}

// SelfDependencyError reports a node depending on itself.
type SelfDependencyError struct {
	NodeID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("claimgraph: claim %q cannot depend on itself", e.NodeID)
}

// DependentRequiresDependencyError reports a dependent-type claim with an
// empty dependency list.
type DependentRequiresDependencyError struct {
	NodeID string
}

func (e *DependentRequiresDependencyError) Error() string {
	return fmt.Sprintf("claimgraph: dependent claim %q must have at least one dependency", e.NodeID)
}

// CircularDependencyError reports a dependency cycle.
type CircularDependencyError struct {
	NodeID string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("claimgraph: circular dependency detected at claim %q", e.NodeID)
}

// CheckAcyclic runs a depth-first traversal over the dependency adjacency of
// all nodes, returning a CircularDependencyError if any dependency target is
// reached while already on the recursion stack. Dependencies pointing at
// ids absent from the graph are ignored here; they are validated at the
// operation boundary.
func CheckAcyclic(g model.ClaimGraph) error {
	adj := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		adj[n.ID] = n.Dependencies
	}

	visited := make(map[string]bool, len(g.Nodes))
	inStack := make(map[string]bool, len(g.Nodes))

	var dfs func(id string) error
	dfs = func(id string) error {
		visited[id] = true
		inStack[id] = true
		for _, dep := range adj[id] {
			if inStack[dep] {
				return &CircularDependencyError{NodeID: dep}
			}
			if _, known := adj[dep]; !known {
				continue
			}
			if !visited[dep] {
				if err := dfs(dep); err != nil {
					return err
				}
			}
		}
		inStack[id] = false
		return nil
	}

	for _, n := range g.Nodes {
		if !visited[n.ID] {
			if err := dfs(n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// EditNode applies a partial patch to one node and returns the resulting
// graph. The source graph is never modified. When the patch touches the
// node's type or dependencies, the dependent-requires-dependency invariant
// is re-checked, and the whole graph is re-validated for cycles.
func EditNode(g model.ClaimGraph, nodeID string, patch model.EditClaimRequest) (model.ClaimGraph, error) {
	if patch.Empty() {
		return model.ClaimGraph{}, ErrNoChange
	}

	out := clone(g)
	idx := -1
	for i, n := range out.Nodes {
		if n.ID == nodeID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return model.ClaimGraph{}, &NodeNotFoundError{NodeID: nodeID}
	}

	if patch.DependenciesSet {
		ids := out.NodeIDs()
		for _, dep := range patch.Dependencies {
			if dep == nodeID {
				return model.ClaimGraph{}, &SelfDependencyError{NodeID: nodeID}
			}
			if !ids[dep] {
				return model.ClaimGraph{}, &UnknownDependencyError{DependencyID: dep}
			}
		}
		out.Nodes[idx].Dependencies = append([]string(nil), patch.Dependencies...)
	}
	if patch.Type != nil {
		out.Nodes[idx].Type = model.ClaimType(*patch.Type)
	}
	if patch.Text != nil {
		out.Nodes[idx].Text = *patch.Text
	}
	if patch.Category != nil {
		out.Nodes[idx].Category = model.ClaimCategory(*patch.Category)
	}

	if patch.Type != nil || patch.DependenciesSet {
		n := out.Nodes[idx]
		if n.Type == model.ClaimDependent && len(n.Dependencies) == 0 {
			return model.ClaimGraph{}, &DependentRequiresDependencyError{NodeID: nodeID}
		}
	}

	if err := CheckAcyclic(out); err != nil {
		return model.ClaimGraph{}, err
	}
	return out, nil
}

// AddNode appends a new claim with the next unused sequential integer id
// and returns the resulting graph. Non-numeric legacy ids are tolerated by
// ignoring them in the max computation.
func AddNode(g model.ClaimGraph, req model.AddClaimRequest) (model.ClaimGraph, string, error) {
	ids := g.NodeIDs()
	for _, dep := range req.Dependencies {
		if !ids[dep] {
			return model.ClaimGraph{}, "", &UnknownDependencyError{DependencyID: dep}
		}
	}

	newID := nextID(g)
	if model.ClaimType(req.Type) == model.ClaimDependent && len(req.Dependencies) == 0 {
		return model.ClaimGraph{}, "", &DependentRequiresDependencyError{NodeID: newID}
	}

	out := clone(g)
	out.Nodes = append(out.Nodes, model.ClaimNode{
		ID:           newID,
		Type:         model.ClaimType(req.Type),
		Text:         req.Text,
		Category:     model.ClaimCategory(req.Category),
		Dependencies: append([]string(nil), req.Dependencies...),
		MirrorSource: req.MirrorSource,
	})

	if err := CheckAcyclic(out); err != nil {
		return model.ClaimGraph{}, "", err
	}
	return out, newID, nil
}

// DeleteNode removes a claim and renumbers the remaining nodes to
// sequential 1..N in their current order. Every dependency list is rewritten
// through the old→new id map, silently dropping references to the deleted
// node, and mirror_source references to the deleted node are cleared.
// The renumber map is returned for the audit trail.
func DeleteNode(g model.ClaimGraph, nodeID string) (model.ClaimGraph, map[string]string, error) {
	if !g.NodeIDs()[nodeID] {
		return model.ClaimGraph{}, nil, &NodeNotFoundError{NodeID: nodeID}
	}

	out := clone(g)
	kept := out.Nodes[:0]
	for _, n := range out.Nodes {
		if n.ID != nodeID {
			kept = append(kept, n)
		}
	}
	out.Nodes = kept

	renumber := make(map[string]string, len(out.Nodes))
	for i, n := range out.Nodes {
		renumber[n.ID] = strconv.Itoa(i + 1)
	}

	for i := range out.Nodes {
		n := &out.Nodes[i]
		n.ID = renumber[n.ID]

		deps := n.Dependencies[:0]
		for _, d := range n.Dependencies {
			if mapped, ok := renumber[d]; ok {
				deps = append(deps, mapped)
			}
		}
		n.Dependencies = deps

		if n.MirrorSource != nil {
			if mapped, ok := renumber[*n.MirrorSource]; ok {
				m := mapped
				n.MirrorSource = &m
			} else {
				n.MirrorSource = nil
			}
		}
	}

	return out, renumber, nil
}

// nextID computes max(numeric ids) + 1 as a string.
func nextID(g model.ClaimGraph) string {
	maxID := 0
	for _, n := range g.Nodes {
		v, err := strconv.Atoi(n.ID)
		if err != nil {
			continue
		}
		if v > maxID {
			maxID = v
		}
	}
	return strconv.Itoa(maxID + 1)
}

// clone deep-copies a graph so mutations never touch the source payload.
func clone(g model.ClaimGraph) model.ClaimGraph {
	out := model.ClaimGraph{Nodes: make([]model.ClaimNode, len(g.Nodes))}
	if g.RiskScore != nil {
		v := *g.RiskScore
		out.RiskScore = &v
	}
	for i, n := range g.Nodes {
		c := n
		c.Dependencies = append([]string(nil), n.Dependencies...)
		if n.MirrorSource != nil {
			m := *n.MirrorSource
			c.MirrorSource = &m
		}
		out.Nodes[i] = c
	}
	return out
}
