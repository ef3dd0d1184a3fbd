package label

import "github.com/poiesic/datakiln/core"

// MajorityVote is the model-free fallback for matrices the generative fit
// rejects: each asset's probability is the positive fraction of its
// non-abstaining votes, 0.5 when every function abstained. No calibration
// is attempted.
func MajorityVote(m *Matrix, runID string) ([]*core.AggregatedLabel, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	labels := make([]*core.AggregatedLabel, len(m.Assets))
	for i, id := range m.Assets {
		pos, voted := 0, 0
		for _, v := range m.Votes[i] {
			switch v {
			case core.VotePositive:
				pos++
				voted++
			case core.VoteNegative:
				voted++
			}
		}

		p := 0.5
		if voted > 0 {
			p = float64(pos) / float64(voted)
		}
		labels[i] = &core.AggregatedLabel{
			AssetID:   id,
			PPositive: p,
			VoteCount: voted,
			RunID:     runID,
		}
	}
	return labels, nil
}
