package neardup

import (
	"fmt"
	"strings"
)

// FormatMatches renders matches as a human-readable report for CLI output.
func FormatMatches(matches []*Match) string {
	if len(matches) == 0 {
		return "no near-duplicates found\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-10s %-10s %s\n", "ASSET", "HAMMING", "COSINE", "SCORE")
	for _, m := range matches {
		hamming := "-"
		if m.ByFingerprint {
			hamming = fmt.Sprintf("%d", m.Hamming)
		}
		cosine := "-"
		if m.ByEmbedding {
			cosine = fmt.Sprintf("%.4f", m.Similarity)
		}
		fmt.Fprintf(&b, "%-38s %-10s %-10s %.4f\n", m.Record.AssetID, hamming, cosine, m.Score)
	}
	return b.String()
}
