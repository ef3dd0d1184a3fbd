package label

import (
	"errors"
	"fmt"
)

// Degeneracy reasons carried by AggregationError.
const (
	// ReasonTooFewFunctions: fewer than two labeling functions ever vote.
	ReasonTooFewFunctions = "fewer than two effective labeling functions"

	// ReasonPerfectCorrelation: all effective labeling functions are
	// perfectly correlated copies; agreement carries no information.
	ReasonPerfectCorrelation = "labeling functions perfectly correlated"

	// ReasonNoConvergence: the likelihood did not converge within the
	// iteration budget.
	ReasonNoConvergence = "model fit did not converge"
)

// AggregationError reports a batch-fatal aggregation failure. No partial
// output accompanies it; the caller falls back to MajorityVote or rejects
// the batch.
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("label aggregation failed: %s", e.Reason)
}

var (
	// ErrEmptyMatrix indicates a matrix without assets or functions.
	ErrEmptyMatrix = errors.New("empty vote matrix")

	// ErrRaggedMatrix indicates a row whose width differs from the
	// function count.
	ErrRaggedMatrix = errors.New("ragged vote matrix")

	// ErrNoExamples is returned when Apply receives nothing to label.
	ErrNoExamples = errors.New("no examples to label")

	// ErrNoFunctions is returned when Apply receives no labeling functions.
	ErrNoFunctions = errors.New("no labeling functions")
)
