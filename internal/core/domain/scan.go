package domain

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

var (
	ErrEmptyTarget   = errors.New("target cannot be empty")
	ErrInvalidTarget = errors.New("target must be an IP address or hostname")
)

var hostnameRegex = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.)*[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?$`)

// ValidateTarget accepts IPv4/IPv6 literals and RFC 1123 hostnames.
func ValidateTarget(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return ErrEmptyTarget
	}
	if net.ParseIP(target) != nil {
		return nil
	}
	if len(target) > 253 || !hostnameRegex.MatchString(target) {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return nil
}

// ScanRecord is the persisted outcome of one completed scan.
type ScanRecord struct {
	ID            uint                    `json:"id"`
	Username      string                  `json:"username"`
	Target        string                  `json:"target"`
	OpenPortCount int                     `json:"open_port_count"`
	RiskSummary   string                  `json:"risk_summary"`
	Verdict       Verdict                 `json:"verdict"`
	Timestamp     time.Time               `json:"timestamp"`
	Observations  []ClassifiedObservation `json:"observations,omitempty"`
}

// NewScanRecord builds the record for a classified scan. The ID is assigned on insert.
func NewScanRecord(username, target string, observations []ClassifiedObservation, verdict Verdict, at time.Time) ScanRecord {
	return ScanRecord{
		Username:      username,
		Target:        target,
		OpenPortCount: len(observations),
		RiskSummary:   fmt.Sprintf("Detected %d open ports. AI Risk: %s", len(observations), verdict),
		Verdict:       verdict,
		Timestamp:     at.UTC(),
		Observations:  observations,
	}
}

// ScanFilter narrows scan history queries. Zero values mean "any".
type ScanFilter struct {
	Username string
	Target   string
	Verdict  *Verdict
	Since    time.Time
	Limit    int
}
