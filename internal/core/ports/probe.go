package ports

import "context"

// RawEndpoint is an open port as reported by a probe, before validation.
type RawEndpoint struct {
	Port    int
	Service string
}

// Probe enumerates the open endpoints of a target host.
// An empty result is a successful scan with no open ports.
type Probe interface {
	Name() string
	Probe(ctx context.Context, target string) ([]RawEndpoint, error)
}
