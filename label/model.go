// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package label

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/poiesic/datakiln/core"
)

const (
	// DefaultMaxIters bounds the EM loop.
	DefaultMaxIters = 100

	// DefaultTolerance is the relative log-likelihood delta that counts
	// as converged.
	DefaultTolerance = 1e-6

	// probFloor keeps fitted probabilities away from 0 and 1 so the
	// log-space E-step stays finite.
	probFloor = 1e-3

	// initAccuracy is the accuracy estimate all functions start from,
	// before the seeded jitter breaks ties.
	initAccuracy = 0.7

	// initJitter is the half-width of the seeded jitter around
	// initAccuracy.
	initJitter = 0.05
)

// FuncParams are the fitted parameters of one labeling function.
type FuncParams struct {
	Name string

	// Accuracy is the fitted probability of voting the true label when
	// not abstaining. NaN for a function that never votes.
	Accuracy float64

	// VoteRate is the observed fraction of assets the function voted on.
	VoteRate float64

	// Effective reports whether the function participated in the fit.
	// An always-abstaining function is excluded and contributes nothing.
	Effective bool
}

// ModelParams are the fitted parameters of one aggregation run.
type ModelParams struct {
	Prior         float64
	Funcs         []FuncParams
	Iterations    int
	LogLikelihood float64
}

// Option configures an aggregation run.
type Option func(*config)

type config struct {
	seed     uint64
	maxIters int
	tol      float64
	runID    string
	logger   *slog.Logger
}

// WithSeed seeds the jitter applied to the initial accuracy estimates.
// Two runs on the same matrix with the same seed reproduce posteriors
// within numeric tolerance.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = seed }
}

// WithMaxIters bounds the EM loop. Default is DefaultMaxIters.
func WithMaxIters(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxIters = n
		}
	}
}

// WithTolerance sets the relative log-likelihood convergence threshold.
// Default is DefaultTolerance.
func WithTolerance(tol float64) Option {
	return func(c *config) {
		if tol > 0 {
			c.tol = tol
		}
	}
}

// WithRunID sets the aggregation run identifier stamped on every label.
// Default is a random UUID.
func WithRunID(id string) Option {
	return func(c *config) {
		if id != "" {
			c.runID = id
		}
	}
}

// WithAggregateLogger sets a custom logger. Default is slog.Default().
func WithAggregateLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Aggregate fits the generative model to the vote matrix and returns one
// aggregated label per asset plus the fitted parameters. The fit is
// batch-fatal: on a degenerate matrix or a failed fit it returns
// *AggregationError and no partial output.
func Aggregate(m *Matrix, opts ...Option) ([]*core.AggregatedLabel, *ModelParams, error) {
	cfg := &config{
		maxIters: DefaultMaxIters,
		tol:      DefaultTolerance,
		runID:    uuid.NewString(),
		logger:   slog.Default().With("component", "label-aggregator"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := m.Validate(); err != nil {
		return nil, nil, err
	}

	effective := effectiveFuncs(m)
	if len(effective) < 2 {
		return nil, nil, &AggregationError{Reason: ReasonTooFewFunctions}
	}
	if allPerfectlyCorrelated(m, effective) {
		return nil, nil, &AggregationError{Reason: ReasonPerfectCorrelation}
	}

	post, params, err := fit(m, effective, cfg)
	if err != nil {
		return nil, nil, err
	}

	labels := make([]*core.AggregatedLabel, len(m.Assets))
	for i, id := range m.Assets {
		labels[i] = &core.AggregatedLabel{
			AssetID:   id,
			PPositive: post[i],
			VoteCount: m.VoteCount(i),
			RunID:     cfg.runID,
		}
		if err := core.ValidateLabel(labels[i]); err != nil {
			return nil, nil, err
		}
	}

	cfg.logger.Info("aggregation run complete",
		"run", cfg.runID,
		"assets", len(m.Assets),
		"functions", len(effective),
		"iterations", params.Iterations,
		"prior", params.Prior)
	return labels, params, nil
}

// effectiveFuncs returns the column indices of functions that vote at
// least once. Always-abstaining functions are excluded from fitting so
// they cannot perturb other functions' estimates.
func effectiveFuncs(m *Matrix) []int {
	var effective []int
	for j := range m.Funcs {
		for i := range m.Votes {
			if m.Votes[i][j] != core.VoteAbstain {
				effective = append(effective, j)
				break
			}
		}
	}
	return effective
}

// allPerfectlyCorrelated reports whether every pair of effective columns
// is a perfect copy: identical abstain pattern and fully correlated votes.
// Such a matrix carries no agreement signal and the likelihood is flat in
// the per-function accuracies.
func allPerfectlyCorrelated(m *Matrix, effective []int) bool {
	for a := 0; a < len(effective); a++ {
		for b := a + 1; b < len(effective); b++ {
			if !perfectlyCorrelated(m, effective[a], effective[b]) {
				return false
			}
		}
	}
	return true
}

// perfectlyCorrelated reports whether columns j and k abstain on exactly
// the same rows and their votes are perfectly correlated where they vote.
func perfectlyCorrelated(m *Matrix, j, k int) bool {
	var xs, ys []float64
	for i := range m.Votes {
		vj, vk := m.Votes[i][j], m.Votes[i][k]
		if (vj == core.VoteAbstain) != (vk == core.VoteAbstain) {
			// Different abstain patterns: not copies of each other
			return false
		}
		if vj != core.VoteAbstain {
			xs = append(xs, float64(vj))
			ys = append(ys, float64(vk))
		}
	}
	if len(xs) == 0 {
		return true
	}

	agree, disagree := 0, 0
	for i := range xs {
		if xs[i] == ys[i] {
			agree++
		} else {
			disagree++
		}
	}
	if agree != 0 && disagree != 0 {
		// Mixed agreement on an identical voting mask: check whether the
		// votes are still a deterministic (anti-)copy.
		r := stat.Correlation(xs, ys, nil)
		return !math.IsNaN(r) && math.Abs(r) >= 1-1e-9
	}
	// All-agree means duplicated function, all-disagree means negation;
	// both are perfectly correlated.
	return true
}

// fit runs expectation-maximization over the matrix and returns the
// per-asset posterior of the positive class plus the fitted parameters.
func fit(m *Matrix, effective []int, cfg *config) ([]float64, *ModelParams, error) {
	rows, cols := len(m.Assets), len(m.Funcs)
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15))

	// Initial accuracies: shared starting point with seeded jitter
	acc := make([]float64, cols)
	for j := range acc {
		acc[j] = math.NaN()
	}
	for _, j := range effective {
		acc[j] = clampProb(initAccuracy + initJitter*(2*rng.Float64()-1))
	}

	// Initial prior: observed positive fraction among all votes
	pos, voted := 0, 0
	for i := 0; i < rows; i++ {
		for _, j := range effective {
			switch m.Votes[i][j] {
			case core.VotePositive:
				pos++
				voted++
			case core.VoteNegative:
				voted++
			}
		}
	}
	prior := 0.5
	if voted > 0 {
		prior = clampProb(float64(pos) / float64(voted))
	}

	post := make([]float64, rows)
	logPair := make([]float64, 2)
	prevLL := math.Inf(-1)
	converged := false
	iterations := 0

	for iter := 0; iter < cfg.maxIters; iter++ {
		iterations = iter + 1

		// E-step: per-row posterior in log-space
		ll := 0.0
		for i := 0; i < rows; i++ {
			logNeg := math.Log(1 - prior)
			logPos := math.Log(prior)
			for _, j := range effective {
				switch m.Votes[i][j] {
				case core.VotePositive:
					logPos += math.Log(acc[j])
					logNeg += math.Log(1 - acc[j])
				case core.VoteNegative:
					logPos += math.Log(1 - acc[j])
					logNeg += math.Log(acc[j])
				}
			}
			logPair[0], logPair[1] = logNeg, logPos
			denom := floats.LogSumExp(logPair)
			post[i] = math.Exp(logPos - denom)
			ll += denom
		}

		// M-step: accuracies from posterior-weighted agreement
		for _, j := range effective {
			weight, n := 0.0, 0
			for i := 0; i < rows; i++ {
				switch m.Votes[i][j] {
				case core.VotePositive:
					weight += post[i]
					n++
				case core.VoteNegative:
					weight += 1 - post[i]
					n++
				}
			}
			if n > 0 {
				acc[j] = clampProb(weight / float64(n))
			}
		}
		prior = clampProb(stat.Mean(post, nil))

		if delta := math.Abs(ll - prevLL); delta < cfg.tol*(math.Abs(prevLL)+1) {
			converged = true
			prevLL = ll
			break
		}
		prevLL = ll
	}

	if !converged {
		cfg.logger.Warn("aggregation did not converge",
			"iterations", iterations, "log_likelihood", prevLL)
		return nil, nil, &AggregationError{Reason: ReasonNoConvergence}
	}

	// The likelihood is symmetric under flipping labels and accuracies.
	// Restore the better-than-chance convention so agreement raises the
	// posterior instead of lowering it.
	meanAcc := 0.0
	for _, j := range effective {
		meanAcc += acc[j]
	}
	if meanAcc/float64(len(effective)) < 0.5 {
		for _, j := range effective {
			acc[j] = 1 - acc[j]
		}
		for i := range post {
			post[i] = 1 - post[i]
		}
		prior = 1 - prior
	}

	// Rows where every effective function abstained carry no evidence;
	// pin them to the fitted class prior rather than a stale E-step value.
	for i := 0; i < rows; i++ {
		informed := false
		for _, j := range effective {
			if m.Votes[i][j] != core.VoteAbstain {
				informed = true
				break
			}
		}
		if !informed {
			post[i] = prior
		}
	}

	params := &ModelParams{
		Prior:         prior,
		Funcs:         make([]FuncParams, cols),
		Iterations:    iterations,
		LogLikelihood: prevLL,
	}
	isEffective := make(map[int]bool, len(effective))
	for _, j := range effective {
		isEffective[j] = true
	}
	for j := 0; j < cols; j++ {
		votes := 0
		for i := 0; i < rows; i++ {
			if m.Votes[i][j] != core.VoteAbstain {
				votes++
			}
		}
		params.Funcs[j] = FuncParams{
			Name:      m.Funcs[j],
			Accuracy:  acc[j],
			VoteRate:  float64(votes) / float64(rows),
			Effective: isEffective[j],
		}
	}
	return post, params, nil
}

func clampProb(p float64) float64 {
	if p < probFloor {
		return probFloor
	}
	if p > 1-probFloor {
		return 1 - probFloor
	}
	return p
}
