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


// Package label aggregates weak labeling-function votes into calibrated
// probabilistic labels.
//
// The input is a full vote matrix: rows are assets, columns are labeling
// functions, cells are abstain, negative or positive. Aggregation is a
// batch operation over the whole matrix, never a streaming update: the
// model estimates each function's accuracy and abstention rate without any
// ground truth, purely from the joint agreement pattern across many assets.
//
// The generative model assumes one unobserved true label per asset and,
// per function, an unknown accuracy (probability of voting correctly when
// not abstaining). Fitting runs expectation-maximization over the matrix:
// the E-step computes per-asset posteriors in log-space from the current
// parameters, the M-step re-estimates function accuracies from
// posterior-weighted agreement and the class prior from the mean posterior.
// The fitted posteriors are the aggregated labels.
//
// Degenerate inputs — fewer than two functions that ever vote, or a set of
// functions that are perfectly correlated copies of each other — cannot be
// fit and fail with *AggregationError. Callers fall back to MajorityVote
// or reject the batch; the model never emits a silently degenerate
// posterior.
//
// Fitting is seeded: the same matrix and seed reproduce posteriors within
// a small numeric tolerance.
package label
