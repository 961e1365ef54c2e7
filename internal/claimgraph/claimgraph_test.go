package claimgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokkyo-ai/tokkyo/internal/model"
)

func strPtr(s string) *string { return &s }

func node(id string, typ model.ClaimType, deps ...string) model.ClaimNode {
	if deps == nil {
		deps = []string{}
	}
	return model.ClaimNode{ID: id, Type: typ, Text: "A claim.", Dependencies: deps}
}

func threeClaimGraph() model.ClaimGraph {
	return model.ClaimGraph{Nodes: []model.ClaimNode{
		node("1", model.ClaimIndependent),
		node("2", model.ClaimDependent, "1"),
		node("3", model.ClaimDependent, "2"),
	}}
}

func TestCheckAcyclic(t *testing.T) {
	require.NoError(t, CheckAcyclic(threeClaimGraph()))

	// Direct two-node cycle.
	g := model.ClaimGraph{Nodes: []model.ClaimNode{
		node("1", model.ClaimDependent, "2"),
		node("2", model.ClaimDependent, "1"),
	}}
	var cde *CircularDependencyError
	require.ErrorAs(t, CheckAcyclic(g), &cde)

	// Transitive cycle through an untouched node.
	g = model.ClaimGraph{Nodes: []model.ClaimNode{
		node("1", model.ClaimDependent, "3"),
		node("2", model.ClaimDependent, "1"),
		node("3", model.ClaimDependent, "2"),
	}}
	require.ErrorAs(t, CheckAcyclic(g), &cde)

	// Dangling dependency ids are not cycles.
	g = model.ClaimGraph{Nodes: []model.ClaimNode{
		node("1", model.ClaimDependent, "99"),
	}}
	require.NoError(t, CheckAcyclic(g))
}

func TestEditNode_Text(t *testing.T) {
	src := threeClaimGraph()
	out, err := EditNode(src, "2", model.EditClaimRequest{Text: strPtr("Revised claim text.")})
	require.NoError(t, err)
	assert.Equal(t, "Revised claim text.", out.Nodes[1].Text)
	// Source untouched.
	assert.Equal(t, "A claim.", src.Nodes[1].Text)
}

func TestEditNode_EmptyPatch(t *testing.T) {
	_, err := EditNode(threeClaimGraph(), "1", model.EditClaimRequest{})
	assert.ErrorIs(t, err, ErrNoChange)
}

func TestEditNode_NotFound(t *testing.T) {
	var nfe *NodeNotFoundError
	_, err := EditNode(threeClaimGraph(), "9", model.EditClaimRequest{Text: strPtr("x")})
	require.ErrorAs(t, err, &nfe)
	assert.Equal(t, "9", nfe.NodeID)
}

func TestEditNode_DependencyValidation(t *testing.T) {
	g := threeClaimGraph()

	var ude *UnknownDependencyError
	_, err := EditNode(g, "3", model.EditClaimRequest{Dependencies: []string{"7"}, DependenciesSet: true})
	require.ErrorAs(t, err, &ude)
	assert.Equal(t, "7", ude.DependencyID)

	var sde *SelfDependencyError
	_, err = EditNode(g, "3", model.EditClaimRequest{Dependencies: []string{"3"}, DependenciesSet: true})
	require.ErrorAs(t, err, &sde)
}

func TestEditNode_CycleRejectedGraphUnchanged(t *testing.T) {
	g := threeClaimGraph()
	_, err := EditNode(g, "1", model.EditClaimRequest{Dependencies: []string{"3"}, DependenciesSet: true})

	var cde *CircularDependencyError
	require.ErrorAs(t, err, &cde)
	// The source graph must be left exactly as it was.
	assert.Empty(t, g.Nodes[0].Dependencies)
}

func TestEditNode_DependentRequiresDependency(t *testing.T) {
	g := threeClaimGraph()
	var dre *DependentRequiresDependencyError

	// Clearing a dependent claim's dependencies is rejected.
	_, err := EditNode(g, "2", model.EditClaimRequest{Dependencies: []string{}, DependenciesSet: true})
	require.ErrorAs(t, err, &dre)

	// Flipping an independent claim to dependent without deps is rejected.
	_, err = EditNode(g, "1", model.EditClaimRequest{Type: strPtr("dependent")})
	require.ErrorAs(t, err, &dre)

	// But a text edit on a dependent claim does not re-check the invariant.
	_, err = EditNode(g, "2", model.EditClaimRequest{Text: strPtr("ok")})
	require.NoError(t, err)
}

func TestAddNode(t *testing.T) {
	out, id, err := AddNode(threeClaimGraph(), model.AddClaimRequest{
		Type: "dependent", Text: "New claim.", Dependencies: []string{"2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "4", id)
	require.Len(t, out.Nodes, 4)
	assert.Equal(t, []string{"2"}, out.Nodes[3].Dependencies)
}

func TestAddNode_IgnoresNonNumericIDs(t *testing.T) {
	g := model.ClaimGraph{Nodes: []model.ClaimNode{
		node("1", model.ClaimIndependent),
		node("legacy-a", model.ClaimIndependent),
		node("7", model.ClaimIndependent),
	}}
	_, id, err := AddNode(g, model.AddClaimRequest{Type: "independent", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "8", id)
}

func TestAddNode_Validation(t *testing.T) {
	var ude *UnknownDependencyError
	_, _, err := AddNode(threeClaimGraph(), model.AddClaimRequest{
		Type: "dependent", Text: "x", Dependencies: []string{"42"},
	})
	require.ErrorAs(t, err, &ude)

	var dre *DependentRequiresDependencyError
	_, _, err = AddNode(threeClaimGraph(), model.AddClaimRequest{Type: "dependent", Text: "x"})
	require.ErrorAs(t, err, &dre)
}

func TestDeleteNode_Renumbers(t *testing.T) {
	g := threeClaimGraph()
	g.Nodes[2].MirrorSource = strPtr("1")

	out, renumber, err := DeleteNode(g, "1")
	require.NoError(t, err)
	require.Len(t, out.Nodes, 2)

	// Old "2" becomes "1" with its dependency on the deleted node dropped.
	assert.Equal(t, "1", out.Nodes[0].ID)
	assert.Empty(t, out.Nodes[0].Dependencies)

	// Old "3" becomes "2", depending on the renumbered "1"; its
	// mirror_source pointed at the deleted node and is cleared.
	assert.Equal(t, "2", out.Nodes[1].ID)
	assert.Equal(t, []string{"1"}, out.Nodes[1].Dependencies)
	assert.Nil(t, out.Nodes[1].MirrorSource)

	assert.Equal(t, map[string]string{"2": "1", "3": "2"}, renumber)
}

func TestDeleteNode_MirrorSourceRemapped(t *testing.T) {
	g := model.ClaimGraph{Nodes: []model.ClaimNode{
		node("1", model.ClaimIndependent),
		node("2", model.ClaimIndependent),
		{ID: "3", Type: model.ClaimIndependent, Text: "Mirror.", Dependencies: []string{}, MirrorSource: strPtr("2")},
	}}
	out, _, err := DeleteNode(g, "1")
	require.NoError(t, err)
	require.NotNil(t, out.Nodes[1].MirrorSource)
	// Old "2" is now "1"; the mirror reference follows it.
	assert.Equal(t, "1", *out.Nodes[1].MirrorSource)
}

func TestDeleteNode_NotFound(t *testing.T) {
	var nfe *NodeNotFoundError
	_, _, err := DeleteNode(threeClaimGraph(), "5")
	require.ErrorAs(t, err, &nfe)
}

func TestDeleteNode_IDsAreExactlyOneToN(t *testing.T) {
	g := model.ClaimGraph{Nodes: []model.ClaimNode{
		node("1", model.ClaimIndependent),
		node("2", model.ClaimDependent, "1"),
		node("3", model.ClaimDependent, "1"),
		node("4", model.ClaimDependent, "2", "3"),
		node("5", model.ClaimDependent, "4"),
	}}
	out, _, err := DeleteNode(g, "3")
	require.NoError(t, err)
	require.Len(t, out.Nodes, 4)

	seen := out.NodeIDs()
	for _, want := range []string{"1", "2", "3", "4"} {
		assert.True(t, seen[want], "missing id %s", want)
	}
	// No dependency may reference an id outside the new graph.
	for _, n := range out.Nodes {
		for _, d := range n.Dependencies {
			assert.True(t, seen[d], "node %s has dangling dependency %s", n.ID, d)
		}
	}
	require.NoError(t, CheckAcyclic(out))
}
