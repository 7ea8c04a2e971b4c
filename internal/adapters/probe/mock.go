package probe

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// Device profiles for demo scans.
var profiles = map[string][]ports.RawEndpoint{
	"camera": {
		{Port: 23, Service: "telnet"},
		{Port: 80, Service: "http"},
		{Port: 554, Service: "rtsp"},
		{Port: 37777, Service: "dahua-dvr"},
	},
	"router": {
		{Port: 53, Service: "domain"},
		{Port: 80, Service: "http"},
		{Port: 443, Service: "https"},
		{Port: 1900, Service: "upnp"},
		{Port: 7547, Service: "cwmp"},
	},
	"printer": {
		{Port: 80, Service: "http"},
		{Port: 515, Service: "printer"},
		{Port: 631, Service: "ipp"},
		{Port: 9100, Service: "jetdirect"},
	},
	"hub": {
		{Port: 1883, Service: "mqtt"},
		{Port: 5683, Service: "coap"},
		{Port: 8080, Service: "http-proxy"},
	},
	"nas": {
		{Port: 21, Service: "ftp"},
		{Port: 139, Service: "netbios-ssn"},
		{Port: 445, Service: "microsoft-ds"},
		{Port: 5000, Service: "upnp"},
	},
	"secure": {
		{Port: 22, Service: "ssh"},
		{Port: 443, Service: "https"},
	},
	"empty": {},
}

// Scenarios lists the names accepted by NewMockProbe besides "random".
func Scenarios() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MockProbe returns canned endpoints without touching the network. In the
// "random" scenario each target gets a stable pseudo-random mix of profiles.
type MockProbe struct {
	scenario string
	delay    time.Duration
}

func NewMockProbe(scenario string, delay time.Duration) (*MockProbe, error) {
	scenario = strings.ToLower(strings.TrimSpace(scenario))
	if scenario == "" {
		scenario = "random"
	}
	if _, ok := profiles[scenario]; !ok && scenario != "random" {
		return nil, fmt.Errorf("unknown mock scenario %q", scenario)
	}
	return &MockProbe{scenario: scenario, delay: delay}, nil
}

func (p *MockProbe) Name() string { return "mock" }

func (p *MockProbe) Probe(ctx context.Context, target string) ([]ports.RawEndpoint, error) {
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.scenario != "random" {
		return append([]ports.RawEndpoint{}, profiles[p.scenario]...), nil
	}
	return randomEndpoints(target), nil
}

// randomEndpoints picks one or two profiles seeded by the target name.
func randomEndpoints(target string) []ports.RawEndpoint {
	h := fnv.New64a()
	h.Write([]byte(target))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	names := Scenarios()
	picked := map[int]ports.RawEndpoint{}
	for i := 0; i < 1+rng.Intn(2); i++ {
		for _, ep := range profiles[names[rng.Intn(len(names))]] {
			picked[ep.Port] = ep
		}
	}

	out := make([]ports.RawEndpoint, 0, len(picked))
	for _, ep := range picked {
		out = append(out, ep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// New builds the probe selected by kind.
func New(kind string, opts Options) (ports.Probe, error) {
	switch strings.ToLower(kind) {
	case "", "nmap":
		return NewNmapProbe(opts.NmapPath, opts.NmapArgs), nil
	case "shodan":
		if opts.ShodanKey == "" {
			return nil, ErrShodanAuth
		}
		return NewShodanProbe(opts.ShodanKey, opts.ShodanURL), nil
	case "mock":
		return NewMockProbe(opts.MockScenario, opts.MockDelay)
	default:
		return nil, fmt.Errorf("unknown probe %q", kind)
	}
}

// Options carries the settings for every probe kind.
type Options struct {
	NmapPath     string
	NmapArgs     []string
	ShodanKey    string
	ShodanURL    string
	MockScenario string
	MockDelay    time.Duration
}
