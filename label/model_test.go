package label

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/datakiln/core"
)

// syntheticMatrix generates votes from a known ground truth: each function
// has a fixed accuracy and abstain rate. Returns the matrix and the truth.
func syntheticMatrix(t *testing.T, assets int, accuracies, abstainRates []float64, seed uint64) (*Matrix, []core.Vote) {
	t.Helper()
	require.Equal(t, len(accuracies), len(abstainRates))

	rng := rand.New(rand.NewPCG(seed, seed+1))
	m := &Matrix{
		Assets: make([]core.AssetID, assets),
		Funcs:  make([]string, len(accuracies)),
		Votes:  make([][]core.Vote, assets),
	}
	for j := range accuracies {
		m.Funcs[j] = fmt.Sprintf("lf-%d", j)
	}

	truth := make([]core.Vote, assets)
	for i := 0; i < assets; i++ {
		m.Assets[i] = core.AssetID(fmt.Sprintf("asset-%03d", i))
		truth[i] = core.VoteNegative
		if rng.Float64() < 0.5 {
			truth[i] = core.VotePositive
		}

		row := make([]core.Vote, len(accuracies))
		for j := range accuracies {
			switch {
			case rng.Float64() < abstainRates[j]:
				row[j] = core.VoteAbstain
			case rng.Float64() < accuracies[j]:
				row[j] = truth[i]
			default:
				if truth[i] == core.VotePositive {
					row[j] = core.VoteNegative
				} else {
					row[j] = core.VotePositive
				}
			}
		}
		m.Votes[i] = row
	}
	return m, truth
}

func TestAggregateRecoversGroundTruth(t *testing.T) {
	m, truth := syntheticMatrix(t, 200,
		[]float64{0.85, 0.8, 0.75, 0.9},
		[]float64{0.2, 0.3, 0.1, 0.25}, 7)

	labels, params, err := Aggregate(m, WithSeed(42))
	require.NoError(t, err)
	require.Len(t, labels, 200)

	// Thresholded posteriors should agree with the truth far more often
	// than chance for functions this accurate.
	correct := 0
	for i, l := range labels {
		require.GreaterOrEqual(t, l.PPositive, 0.0)
		require.LessOrEqual(t, l.PPositive, 1.0)
		predicted := core.VoteNegative
		if l.PPositive >= 0.5 {
			predicted = core.VotePositive
		}
		if predicted == truth[i] {
			correct++
		}
	}
	assert.Greater(t, correct, 170, "posteriors should recover most true labels")

	// Fitted accuracies should be better than chance
	for _, fp := range params.Funcs {
		assert.True(t, fp.Effective)
		assert.Greater(t, fp.Accuracy, 0.5)
	}
}

func TestAggregateDeterminismWithinTolerance(t *testing.T) {
	m, _ := syntheticMatrix(t, 150,
		[]float64{0.8, 0.7, 0.85},
		[]float64{0.3, 0.2, 0.4}, 11)

	first, _, err := Aggregate(m, WithSeed(99), WithRunID("run-a"))
	require.NoError(t, err)
	second, _, err := Aggregate(m, WithSeed(99), WithRunID("run-b"))
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.InDelta(t, first[i].PPositive, second[i].PPositive, 1e-3,
			"asset %s posteriors must agree across seeded reruns", first[i].AssetID)
	}
}

func TestAggregateMonotonicity(t *testing.T) {
	// Two otherwise-identical assets: on one every function votes
	// positive, on the other the same functions all abstain. Embed them
	// in a larger matrix so the fit has signal.
	m, _ := syntheticMatrix(t, 100,
		[]float64{0.8, 0.8, 0.8},
		[]float64{0.2, 0.2, 0.2}, 3)

	m.Assets = append(m.Assets, "asset-agree", "asset-silent")
	m.Votes = append(m.Votes,
		[]core.Vote{core.VotePositive, core.VotePositive, core.VotePositive},
		[]core.Vote{core.VoteAbstain, core.VoteAbstain, core.VoteAbstain})

	labels, params, err := Aggregate(m, WithSeed(5))
	require.NoError(t, err)

	byID := make(map[core.AssetID]*core.AggregatedLabel)
	for _, l := range labels {
		byID[l.AssetID] = l
	}

	agree := byID["asset-agree"]
	silent := byID["asset-silent"]
	require.NotNil(t, agree)
	require.NotNil(t, silent)

	assert.Greater(t, agree.PPositive, silent.PPositive,
		"unanimous positive votes must beat all-abstain")
	assert.InDelta(t, params.Prior, silent.PPositive, 1e-9,
		"an uninformed asset gets the fitted prior")
	assert.Equal(t, 3, agree.VoteCount)
	assert.Equal(t, 0, silent.VoteCount)
}

func TestAggregateTooFewFunctions(t *testing.T) {
	m := &Matrix{
		Assets: []core.AssetID{"a", "b"},
		Funcs:  []string{"only-lf"},
		Votes: [][]core.Vote{
			{core.VotePositive},
			{core.VoteNegative},
		},
	}
	_, _, err := Aggregate(m)
	var ae *AggregationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, ReasonTooFewFunctions, ae.Reason)
}

func TestAggregateAlwaysAbstainExcluded(t *testing.T) {
	// Two real functions plus one that always abstains: the fit must
	// proceed and report the silent function as not effective.
	m, _ := syntheticMatrix(t, 80,
		[]float64{0.8, 0.75},
		[]float64{0.2, 0.3}, 17)
	m.Funcs = append(m.Funcs, "lf-silent")
	for i := range m.Votes {
		m.Votes[i] = append(m.Votes[i], core.VoteAbstain)
	}

	withSilent, params, err := Aggregate(m, WithSeed(1))
	require.NoError(t, err)
	assert.False(t, params.Funcs[2].Effective)
	assert.Equal(t, 0.0, params.Funcs[2].VoteRate)

	// Removing the silent column must not change the posteriors
	trimmed := &Matrix{Assets: m.Assets, Funcs: m.Funcs[:2], Votes: make([][]core.Vote, len(m.Votes))}
	for i := range m.Votes {
		trimmed.Votes[i] = m.Votes[i][:2]
	}
	without, _, err := Aggregate(trimmed, WithSeed(1))
	require.NoError(t, err)
	for i := range withSilent {
		assert.InDelta(t, withSilent[i].PPositive, without[i].PPositive, 1e-9)
	}
}

func TestAggregateOnlySilentFunctions(t *testing.T) {
	m := &Matrix{
		Assets: []core.AssetID{"a", "b"},
		Funcs:  []string{"lf-0", "lf-1"},
		Votes: [][]core.Vote{
			{core.VoteAbstain, core.VoteAbstain},
			{core.VoteAbstain, core.VoteAbstain},
		},
	}
	_, _, err := Aggregate(m)
	var ae *AggregationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, ReasonTooFewFunctions, ae.Reason)
}

func TestAggregatePerfectlyCorrelated(t *testing.T) {
	// Three identical copies of one function: agreement carries no
	// information and the fit must refuse rather than guess.
	votes := []core.Vote{
		core.VotePositive, core.VoteNegative, core.VotePositive,
		core.VoteAbstain, core.VoteNegative, core.VotePositive,
	}
	m := &Matrix{Funcs: []string{"lf-a", "lf-b", "lf-c"}}
	for i, v := range votes {
		m.Assets = append(m.Assets, core.AssetID(fmt.Sprintf("asset-%d", i)))
		m.Votes = append(m.Votes, []core.Vote{v, v, v})
	}

	_, _, err := Aggregate(m)
	var ae *AggregationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, ReasonPerfectCorrelation, ae.Reason)
}

func TestAggregateNegatedCopyIsDegenerate(t *testing.T) {
	flip := func(v core.Vote) core.Vote {
		switch v {
		case core.VotePositive:
			return core.VoteNegative
		case core.VoteNegative:
			return core.VotePositive
		default:
			return core.VoteAbstain
		}
	}
	votes := []core.Vote{
		core.VotePositive, core.VoteNegative, core.VotePositive, core.VoteNegative,
	}
	m := &Matrix{Funcs: []string{"lf", "not-lf"}}
	for i, v := range votes {
		m.Assets = append(m.Assets, core.AssetID(fmt.Sprintf("asset-%d", i)))
		m.Votes = append(m.Votes, []core.Vote{v, flip(v)})
	}

	_, _, err := Aggregate(m)
	var ae *AggregationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, ReasonPerfectCorrelation, ae.Reason)
}

func TestAggregateSmallEndToEndMatrix(t *testing.T) {
	// The two-asset, two-function scenario: function 1 votes positive on
	// A and abstains on B; function 2 votes positive on A, negative on B.
	m := &Matrix{
		Assets: []core.AssetID{"asset-a", "asset-b"},
		Funcs:  []string{"lf-1", "lf-2"},
		Votes: [][]core.Vote{
			{core.VotePositive, core.VotePositive},
			{core.VoteAbstain, core.VoteNegative},
		},
	}

	labels, _, err := Aggregate(m, WithSeed(1))
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Greater(t, labels[0].PPositive, labels[1].PPositive)
	assert.Equal(t, 2, labels[0].VoteCount)
	assert.Equal(t, 1, labels[1].VoteCount)
}

func TestAggregateInvalidMatrix(t *testing.T) {
	_, _, err := Aggregate(&Matrix{})
	assert.ErrorIs(t, err, ErrEmptyMatrix)

	m := &Matrix{
		Assets: []core.AssetID{"a", "b"},
		Funcs:  []string{"lf-0", "lf-1"},
		Votes:  [][]core.Vote{{core.VotePositive, core.VoteNegative}},
	}
	_, _, err = Aggregate(m)
	assert.ErrorIs(t, err, ErrRaggedMatrix)
}

func TestMajorityVoteFallback(t *testing.T) {
	m := &Matrix{
		Assets: []core.AssetID{"a", "b", "c"},
		Funcs:  []string{"lf-0", "lf-1", "lf-2"},
		Votes: [][]core.Vote{
			{core.VotePositive, core.VotePositive, core.VoteNegative},
			{core.VoteAbstain, core.VoteAbstain, core.VoteAbstain},
			{core.VoteNegative, core.VoteNegative, core.VoteAbstain},
		},
	}

	labels, err := MajorityVote(m, "fallback-run")
	require.NoError(t, err)
	require.Len(t, labels, 3)

	assert.InDelta(t, 2.0/3.0, labels[0].PPositive, 1e-9)
	assert.Equal(t, 0.5, labels[1].PPositive)
	assert.Equal(t, 0.0, labels[2].PPositive)
	assert.Equal(t, 0, labels[1].VoteCount)
	assert.Equal(t, "fallback-run", labels[0].RunID)
}
