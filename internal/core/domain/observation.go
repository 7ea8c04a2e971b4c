package domain

import (
	"errors"
	"fmt"
	"math"
)

var ErrPortOutOfRange = errors.New("port out of range 0-65535")

// Observation is a single open endpoint reported by a probe.
type Observation struct {
	Port    uint16 `json:"port"`
	Service string `json:"service"`
}

// NewObservation validates a raw probe port before it enters the core.
func NewObservation(port int, service string) (Observation, error) {
	if port < 0 || port > math.MaxUint16 {
		return Observation{}, fmt.Errorf("%w: %d", ErrPortOutOfRange, port)
	}
	return Observation{Port: uint16(port), Service: service}, nil
}

// Rule maps a port to its risk tier and remediation guidance.
type Rule struct {
	Port           uint16 `json:"port"`
	Tier           Tier   `json:"tier"`
	Recommendation string `json:"recommendation"`
}

// ClassifiedObservation is an observation with its resolved rule.
type ClassifiedObservation struct {
	Observation
	Tier           Tier   `json:"tier"`
	Recommendation string `json:"recommendation"`
}

// LabeledPort is one training sample drawn from scan history.
type LabeledPort struct {
	Port uint16
	Tier Tier
}
