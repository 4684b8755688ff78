// Package confidence folds per-field classifier scores into the single value
// auto-routing compares against its threshold.
package confidence

import (
	"fmt"
	"strings"

	"docdesk/internal/record"
)

// Policy selects how scores are combined.
type Policy string

const (
	PolicyMin Policy = "min"
	PolicyAvg Policy = "avg"
	PolicyMax Policy = "max"
)

// DefaultPolicy is the conservative choice: the weakest field decides.
const DefaultPolicy = PolicyMin

// ParsePolicy converts a string into a known Policy. Empty input yields the default.
func ParsePolicy(value string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyMin, PolicyAvg, PolicyMax:
		return p, nil
	default:
		return "", fmt.Errorf("unknown confidence policy %q", value)
	}
}

// Aggregate combines scores under policy. It reports false when scores is empty.
func Aggregate(policy Policy, scores []float64) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	switch policy {
	case PolicyAvg:
		var sum float64
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores)), true
	case PolicyMax:
		best := scores[0]
		for _, s := range scores[1:] {
			if s > best {
				best = s
			}
		}
		return best, true
	default:
		worst := scores[0]
		for _, s := range scores[1:] {
			if s < worst {
				worst = s
			}
		}
		return worst, true
	}
}

// Scores collects the effective confidence of each scored field on rec.
// Confidence overrides take precedence over raw classifier scores; fields
// with neither are skipped.
func Scores(rec *record.Record) []float64 {
	scores := make([]float64, 0, len(record.ScoredFields))
	for _, field := range record.ScoredFields {
		if score, ok := rec.EffectiveScore(field); ok {
			scores = append(scores, score)
		}
	}
	return scores
}
