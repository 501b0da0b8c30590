package likelihood

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootStartsAtLikelihoodOne(t *testing.T) {
	tree := New(42)
	require.Equal(t, 1.0, tree.RelativeLikelihood([]uint64{42}))
}

func TestExpandNormalizesChildren(t *testing.T) {
	tree := New(1)
	root := tree.Root()

	tree.Expand(root, []uint64{2, 3, 4}, []float64{1, 2, 1})

	var sum float64
	for _, c := range tree.Children(root) {
		sum += tree.NodeAt(c).RelLikelihood
	}
	require.InDelta(t, 1.0, sum, 1e-9)

	require.Equal(t, tree.RelativeLikelihood([]uint64{1, 3}), 0.5)
}

func TestExpandWithZeroTotalValueZeroesAllChildren(t *testing.T) {
	tree := New(1)
	root := tree.Root()

	tree.Expand(root, []uint64{2, 3}, []float64{0, 0})

	for _, c := range tree.Children(root) {
		require.Equal(t, 0.0, tree.NodeAt(c).RelLikelihood)
	}
}

func TestRelativeLikelihoodShortCircuitsOnZero(t *testing.T) {
	tree := New(1)
	root := tree.Root()
	tree.Expand(root, []uint64{2, 3}, []float64{1, 0})

	require.Equal(t, 0.0, tree.RelativeLikelihood([]uint64{1, 3}))
}

func TestUpdateRelLikelihoodRenormalizesAfterZeroing(t *testing.T) {
	tree := New(1)
	root := tree.Root()
	tree.Expand(root, []uint64{2, 3, 4}, []float64{1, 1, 1})

	children := tree.Children(root)
	// Observed percept mismatch zeroes one child's value.
	tree.SetValue(children[0], 0)
	tree.UpdateRelLikelihood(root)

	require.Equal(t, 0.0, tree.NodeAt(children[0]).RelLikelihood)
	require.InDelta(t, 0.5, tree.NodeAt(children[1]).RelLikelihood, 1e-9)
	require.InDelta(t, 0.5, tree.NodeAt(children[2]).RelLikelihood, 1e-9)
}

func TestRunningForwardExpansionTwiceIsIdempotent(t *testing.T) {
	tree := New(1)
	root := tree.Root()

	tree.Expand(root, []uint64{2, 3}, []float64{3, 1})
	first := append([]Node{}, tree.NodeAt(tree.Children(root)[0]), tree.NodeAt(tree.Children(root)[1]))

	// A second Expand call with the same surviving-move set and values
	// reproduces identical normalized likelihoods (spec.md §8 scenario 4).
	tree.Expand(root, []uint64{2, 3}, []float64{3, 1})
	second := append([]Node{}, tree.NodeAt(tree.Children(root)[0]), tree.NodeAt(tree.Children(root)[1]))

	require.Equal(t, first, second)
}
