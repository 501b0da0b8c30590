// Package population implements cap enforcement via a diversity filter over
// surviving hypergames, and the posterior probability each one carries from
// the Likelihood Tree.
package population

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"hyperplay/likelihood"
	"hyperplay/model"
	"hyperplay/rules"
)

// Posteriors returns each model's posterior probability, normalized from
// the Likelihood Tree's relative likelihood along its hash path. If every
// model's relative likelihood is zero the fallback is a uniform 1.0 for
// each.
func Posteriors(models []*model.Model, tree *likelihood.Tree) []float64 {
	raw := make([]float64, len(models))
	sum := 0.0
	for i, m := range models {
		raw[i] = tree.RelativeLikelihood(m.HashPath())
		sum += raw[i]
	}
	posteriors := make([]float64, len(models))
	if sum <= 0 {
		for i := range posteriors {
			posteriors[i] = 1.0
		}
		return posteriors
	}
	for i, l := range raw {
		posteriors[i] = l / sum
	}
	return posteriors
}

func fluentSet(state rules.State) map[rules.Fluent]struct{} {
	set := make(map[rules.Fluent]struct{})
	for _, f := range state.Fluents() {
		set[f] = struct{}{}
	}
	return set
}

func symmetricDifferenceSize(a, b map[rules.Fluent]struct{}) int {
	n := 0
	for f := range a {
		if _, ok := b[f]; !ok {
			n++
		}
	}
	for f := range b {
		if _, ok := a[f]; !ok {
			n++
		}
	}
	return n
}

func unionInto(dst, src map[rules.Fluent]struct{}) {
	for f := range src {
		dst[f] = struct{}{}
	}
}

// FilterByVariance retains the single highest-posterior-probability model
// first, then iteratively adds the model whose current-state fluent set has
// maximum symmetric difference from the union of already-chosen states'
// fluent sets, ties broken by higher posterior probability and then by
// insertion order, stopping at cap. If len(models) <= cap, models is
// returned unchanged.
func FilterByVariance(models []*model.Model, tree *likelihood.Tree, cap int) []*model.Model {
	if len(models) <= cap {
		return models
	}

	posteriors := Posteriors(models, tree)
	chosen := make([]int, 0, cap)
	remaining := make(map[int]struct{}, len(models))
	for i := range models {
		remaining[i] = struct{}{}
	}

	best := 0
	for i, p := range posteriors {
		if p > posteriors[best] {
			best = i
		}
	}
	chosen = append(chosen, best)
	delete(remaining, best)

	union := fluentSet(models[best].CurrentState())

	for len(chosen) < cap && len(remaining) > 0 {
		// Iterate remaining indices in ascending (insertion) order so ties
		// on both diff and posterior resolve deterministically to the
		// earliest-inserted model, rather than to map-iteration order.
		keys := maps.Keys(remaining)
		slices.Sort(keys)

		bestIdx := -1
		bestDiff := -1
		for _, i := range keys {
			diff := symmetricDifferenceSize(fluentSet(models[i].CurrentState()), union)
			if diff > bestDiff || (diff == bestDiff && (bestIdx == -1 || posteriors[i] > posteriors[bestIdx])) {
				bestDiff = diff
				bestIdx = i
			}
		}
		chosen = append(chosen, bestIdx)
		delete(remaining, bestIdx)
		unionInto(union, fluentSet(models[bestIdx].CurrentState()))
	}

	out := make([]*model.Model, len(chosen))
	for i, idx := range chosen {
		out[i] = models[idx]
	}
	return out
}
