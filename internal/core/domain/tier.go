package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTier    = errors.New("invalid risk tier")
	ErrInvalidVerdict = errors.New("invalid risk verdict")
)

// Tier is the risk classification of a single endpoint.
type Tier int

const (
	TierUnknown Tier = iota
	TierLow
	TierMedium
	TierHigh
)

var tierNames = map[Tier]string{
	TierUnknown: "Unknown",
	TierLow:     "Low",
	TierMedium:  "Medium",
	TierHigh:    "High",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// IsValid reports whether t is one of the declared tiers.
func (t Tier) IsValid() bool {
	_, ok := tierNames[t]
	return ok
}

// Weight is the contribution of a tier to the aggregate score.
// Unknown counts as Low: an unrecognised port is not evidence of risk.
func (t Tier) Weight() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	default:
		return 1
	}
}

// ParseTier converts a tier label ("Low", "Medium", "High", "Unknown") into a Tier.
func ParseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return TierUnknown, fmt.Errorf("%w: %q", ErrInvalidTier, s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidTier
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Verdict is the aggregate risk classification of a whole scan.
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictLow
	VerdictMedium
	VerdictHigh
)

var verdictNames = map[Verdict]string{
	VerdictUnknown: "Unknown",
	VerdictLow:     "Low Risk",
	VerdictMedium:  "Medium Risk",
	VerdictHigh:    "High Risk",
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

func (v Verdict) IsValid() bool {
	_, ok := verdictNames[v]
	return ok
}

// ParseVerdict converts a verdict label ("High Risk", ...) into a Verdict.
func ParseVerdict(s string) (Verdict, error) {
	for v, name := range verdictNames {
		if name == s {
			return v, nil
		}
	}
	return VerdictUnknown, fmt.Errorf("%w: %q", ErrInvalidVerdict, s)
}

func (v Verdict) MarshalText() ([]byte, error) {
	if !v.IsValid() {
		return nil, ErrInvalidVerdict
	}
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	parsed, err := ParseVerdict(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Verdicts lists the scored verdicts from most to least severe.
func Verdicts() []Verdict {
	return []Verdict{VerdictHigh, VerdictMedium, VerdictLow}
}
