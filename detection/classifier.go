// Package detection turns raw detector output into throttled alert events.
// It has no capture or inference dependencies so every policy decision can
// be exercised in isolation.
package detection

import (
	"strings"

	"github.com/khaledhikmat/wildwatch-go/model"
)

// Classifier maps detector labels to danger tiers using static lists.
// Labels are opaque strings compared case-insensitively.
type Classifier struct {
	high   map[string]struct{}
	medium map[string]struct{}
	human  map[string]struct{}
}

func NewClassifier(high, medium, human []string) *Classifier {
	return &Classifier{
		high:   toSet(high),
		medium: toSet(medium),
		human:  toSet(human),
	}
}

// Classify never fails: unknown labels are low.
func (c *Classifier) Classify(label string) model.DangerTier {
	l := normalizeLabel(label)

	if _, ok := c.human[l]; ok {
		return model.TierHuman
	}
	if _, ok := c.high[l]; ok {
		return model.TierHigh
	}
	if _, ok := c.medium[l]; ok {
		return model.TierMedium
	}
	return model.TierLow
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if n := normalizeLabel(l); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
