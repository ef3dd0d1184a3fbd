package label

import (
	"fmt"

	"github.com/poiesic/datakiln/core"
)

// Matrix is a full vote matrix: one row per asset, one column per labeling
// function. Aggregation always consumes the whole matrix at once.
type Matrix struct {
	Assets []core.AssetID
	Funcs  []string
	Votes  [][]core.Vote
}

// Validate checks the matrix shape and vote values.
func (m *Matrix) Validate() error {
	if len(m.Assets) == 0 || len(m.Funcs) == 0 {
		return ErrEmptyMatrix
	}
	if len(m.Votes) != len(m.Assets) {
		return fmt.Errorf("%w: %d rows for %d assets", ErrRaggedMatrix, len(m.Votes), len(m.Assets))
	}
	for i, row := range m.Votes {
		if len(row) != len(m.Funcs) {
			return fmt.Errorf("%w: row %d has %d cells for %d functions",
				ErrRaggedMatrix, i, len(row), len(m.Funcs))
		}
		for _, v := range row {
			if err := core.ValidateVote(v); err != nil {
				return err
			}
		}
	}
	return nil
}

// VoteCount returns the number of non-abstaining votes in row i.
func (m *Matrix) VoteCount(i int) int {
	count := 0
	for _, v := range m.Votes[i] {
		if v != core.VoteAbstain {
			count++
		}
	}
	return count
}

// Example is the per-asset row a labeling function inspects: the asset,
// its feature record (may be nil if extraction has not run) and its
// caption text.
type Example struct {
	Asset   *core.Asset
	Feature *core.FeatureRecord
	Caption string
}

// Func is one externally supplied labeling function: a pure function from
// an example to a vote. Functions may abstain on any example.
type Func struct {
	Name string
	Vote func(*Example) core.Vote
}

// Apply evaluates every labeling function on every example, producing the
// vote matrix the aggregator consumes. Functions are opaque: Apply imposes
// no semantics beyond the vote domain, and a function that panics is the
// caller's bug, not a skipped cell.
func Apply(funcs []Func, examples []*Example) (*Matrix, error) {
	if len(funcs) == 0 {
		return nil, ErrNoFunctions
	}
	if len(examples) == 0 {
		return nil, ErrNoExamples
	}

	m := &Matrix{
		Assets: make([]core.AssetID, len(examples)),
		Funcs:  make([]string, len(funcs)),
		Votes:  make([][]core.Vote, len(examples)),
	}
	for j, f := range funcs {
		m.Funcs[j] = f.Name
	}
	for i, ex := range examples {
		m.Assets[i] = ex.Asset.ID
		row := make([]core.Vote, len(funcs))
		for j, f := range funcs {
			row[j] = f.Vote(ex)
		}
		m.Votes[i] = row
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
