// Package achievements decides which achievement definitions a player
// qualifies for after a score submission.
package achievements

import (
	"errors"
	"fmt"

	"github.com/Dosada05/arcade-tournaments/models"
)

var (
	ErrUnknownRuleType  = errors.New("unknown achievement rule type")
	ErrThresholdMissing = errors.New("achievement rule requires a threshold of at least 1")
)

// Submission describes the accepted score being evaluated.
type Submission struct {
	Value      int64
	IsTopScore bool
}

// Evaluate returns the definitions newly satisfied by snap and sub.
// Inactive definitions and ids present in earned are skipped. Each rule is
// checked on its own against the same snapshot, so the result does not
// depend on the order of defs beyond preserving it.
func Evaluate(defs []models.Achievement, earned map[int]bool, snap models.PlayerStats, sub Submission) []models.Achievement {
	var out []models.Achievement
	for _, def := range defs {
		if !def.IsActive || earned[def.ID] {
			continue
		}
		if qualifies(def, snap, sub) {
			out = append(out, def)
		}
	}
	return out
}

func qualifies(def models.Achievement, snap models.PlayerStats, sub Submission) bool {
	switch def.RuleType {
	case models.RuleFirstScore:
		return snap.TotalScores == 1
	case models.RuleScoreMilestone, models.RuleHighScorer:
		return sub.Value >= def.Threshold
	case models.RuleFirstPlace:
		return sub.IsTopScore
	case models.RuleGameMaster:
		return int64(snap.GamesPlayed) >= def.Threshold
	case models.RuleConsistentPlayer:
		return int64(snap.TotalScores) >= def.Threshold
	default:
		return false
	}
}

// UsesThreshold reports whether the rule type compares against a threshold.
func UsesThreshold(rt models.RuleType) bool {
	switch rt {
	case models.RuleScoreMilestone, models.RuleHighScorer, models.RuleGameMaster, models.RuleConsistentPlayer:
		return true
	}
	return false
}

// ValidateRule checks a definition's rule and returns the threshold to store.
func ValidateRule(rt models.RuleType, threshold int64) (int64, error) {
	switch rt {
	case models.RuleFirstScore, models.RuleFirstPlace:
		return 0, nil
	case models.RuleScoreMilestone, models.RuleHighScorer, models.RuleGameMaster, models.RuleConsistentPlayer:
		if threshold < 1 {
			return 0, fmt.Errorf("%w: %s", ErrThresholdMissing, rt)
		}
		return threshold, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRuleType, rt)
	}
}
