package riskmodel

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
)

// FeatureScale maps a port onto the unit interval.
const FeatureScale = float64(math.MaxUint16)

var errCorruptState = errors.New("corrupt model state")

func normalise(port uint16, scale float64) float64 {
	return float64(port) / scale
}

// encodeLabels builds the label encoding (distinct tiers, ascending) and the
// training rows for it.
func encodeLabels(labeled []domain.LabeledPort) ([]sample, []domain.Tier) {
	seen := make(map[domain.Tier]bool)
	for _, l := range labeled {
		seen[l.Tier] = true
	}
	classes := make([]domain.Tier, 0, len(seen))
	for t := range seen {
		classes = append(classes, t)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	index := make(map[domain.Tier]int, len(classes))
	for i, t := range classes {
		index[t] = i
	}
	rows := make([]sample, len(labeled))
	for i, l := range labeled {
		rows[i] = sample{x: normalise(l.Port, FeatureScale), y: index[l.Tier]}
	}
	return rows, classes
}

// usableSamples drops rows without a valid tier label.
func usableSamples(labeled []domain.LabeledPort) []domain.LabeledPort {
	out := labeled[:0:0]
	for _, l := range labeled {
		if l.Tier.IsValid() {
			out = append(out, l)
		}
	}
	return out
}

// validateState rejects persisted parameters that cannot be walked safely.
func validateState(s *domain.ModelState) error {
	if s.FeatureScale <= 0 {
		return fmt.Errorf("%w: feature scale %v", errCorruptState, s.FeatureScale)
	}
	if len(s.Classes) == 0 || len(s.Nodes) == 0 {
		return fmt.Errorf("%w: empty parameters", errCorruptState)
	}
	for _, c := range s.Classes {
		if !c.IsValid() {
			return fmt.Errorf("%w: class %d", errCorruptState, c)
		}
	}
	for i, n := range s.Nodes {
		if n.Class < 0 || n.Class >= len(s.Classes) {
			return fmt.Errorf("%w: node %d class %d", errCorruptState, i, n.Class)
		}
		if n.Leaf {
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(s.Nodes) || n.Right >= len(s.Nodes) {
			return fmt.Errorf("%w: node %d children", errCorruptState, i)
		}
	}
	return nil
}

// predictTier decodes the tree's prediction for one port.
func predictTier(s *domain.ModelState, port uint16) domain.Tier {
	return s.Classes[predict(s.Nodes, normalise(port, s.FeatureScale))]
}
