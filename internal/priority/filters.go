package priority

import "surveypilot/internal/model"

// Balance assigns tiers from the rule thresholds and drops questions that fall below the
// lowest tier or the request's base-priority floor. Trigger-activated questions are kept.
func Balance(questions []model.ScoredQuestion, thresholds model.PriorityThresholds, minBasePriority int) []model.ScoredQuestion {
	if thresholds.IsZero() {
		thresholds = model.DefaultThresholds()
	}
	out := make([]model.ScoredQuestion, 0, len(questions))
	for _, q := range questions {
		q.Tier = thresholds.TierFor(q.AdjustedPriority)
		if !q.Triggered {
			if q.Tier == model.TierMinimal {
				continue
			}
			if minBasePriority > 0 && q.PriorityLevel < minBasePriority {
				continue
			}
		}
		out = append(out, q)
	}
	return out
}

// InCooldown reports whether a question was asked fewer than RepeatFrequency interactions ago
func InCooldown(q *model.ScoredQuestion) bool {
	if q.RepeatFrequency <= 0 || q.InteractionsSinceLastAsked == nil {
		return false
	}
	return *q.InteractionsSinceLastAsked < q.RepeatFrequency
}

// Harmonize removes questions still inside their repeat window unless a trigger activated them
func Harmonize(questions []model.ScoredQuestion) []model.ScoredQuestion {
	out := make([]model.ScoredQuestion, 0, len(questions))
	for _, q := range questions {
		if InCooldown(&q) && !q.Triggered {
			continue
		}
		out = append(out, q)
	}
	return out
}

// TriggeredOnly keeps the trigger-activated questions
func TriggeredOnly(questions []model.ScoredQuestion) []model.ScoredQuestion {
	out := make([]model.ScoredQuestion, 0, len(questions))
	for _, q := range questions {
		if q.Triggered {
			out = append(out, q)
		}
	}
	return out
}
