package classifier

import "github.com/lcalzada-xor/iotguard/internal/core/domain"

// Lookup resolves a port to its tier and recommendation. *rules.Table satisfies it.
type Lookup interface {
	Classify(port uint16) (domain.Tier, string)
}

// Result is the classified form of one probe result.
type Result struct {
	Observations []domain.ClassifiedObservation `json:"observations"`
	Counts       map[domain.Tier]int            `json:"counts"`
	Unknown      []domain.ClassifiedObservation `json:"unknown,omitempty"`
}

// Empty reports a scan with no open ports.
func (r Result) Empty() bool {
	return len(r.Observations) == 0
}

// HighRisk returns the High-tier observations in scan order.
func (r Result) HighRisk() []domain.ClassifiedObservation {
	return r.byTier(domain.TierHigh)
}

func (r Result) byTier(tier domain.Tier) []domain.ClassifiedObservation {
	var out []domain.ClassifiedObservation
	for _, o := range r.Observations {
		if o.Tier == tier {
			out = append(out, o)
		}
	}
	return out
}

// Tiers returns the per-observation tiers in scan order.
func (r Result) Tiers() []domain.Tier {
	out := make([]domain.Tier, len(r.Observations))
	for i, o := range r.Observations {
		out[i] = o.Tier
	}
	return out
}

// Classify applies the rule lookup to every observation. Order and length are preserved.
func Classify(lookup Lookup, observations []domain.Observation) Result {
	res := Result{
		Observations: make([]domain.ClassifiedObservation, 0, len(observations)),
		Counts:       make(map[domain.Tier]int),
	}
	for _, o := range observations {
		tier, rec := lookup.Classify(o.Port)
		c := domain.ClassifiedObservation{Observation: o, Tier: tier, Recommendation: rec}
		res.Observations = append(res.Observations, c)
		res.Counts[tier]++
		if tier == domain.TierUnknown {
			res.Unknown = append(res.Unknown, c)
		}
	}
	return res
}
