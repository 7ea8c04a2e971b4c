package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

const DefaultShodanURL = "https://api.shodan.io"

var ErrShodanAuth = errors.New("invalid Shodan API key")

// shodanHost is the part of the host lookup response we use.
type shodanHost struct {
	IP    string          `json:"ip_str"`
	Ports []int           `json:"ports"`
	Data  []shodanService `json:"data"`
}

type shodanService struct {
	Port      int    `json:"port"`
	Transport string `json:"transport"`
	Product   string `json:"product"`
	Shodan    struct {
		Module string `json:"module"`
	} `json:"_shodan"`
}

// ShodanProbe reports the ports Shodan has indexed for a public IP. It does not
// touch the target itself.
type ShodanProbe struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *tokenBucket
}

// NewShodanProbe creates a client limited to a burst of 5 then 1 request per second.
func NewShodanProbe(apiKey, baseURL string) *ShodanProbe {
	if baseURL == "" {
		baseURL = DefaultShodanURL
	}
	return &ShodanProbe{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: newTokenBucket(5, time.Second),
	}
}

func (p *ShodanProbe) Name() string { return "shodan" }

func (p *ShodanProbe) Probe(ctx context.Context, target string) ([]ports.RawEndpoint, error) {
	ip, err := resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/shodan/host/%s?key=%s", p.baseURL, url.PathEscape(ip), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shodan request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// Not indexed: nothing is visible from the internet.
		return []ports.RawEndpoint{}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrShodanAuth
	case http.StatusTooManyRequests:
		return nil, errors.New("shodan rate limit exceeded")
	default:
		return nil, fmt.Errorf("shodan returned status %d", resp.StatusCode)
	}

	var host shodanHost
	if err := json.NewDecoder(resp.Body).Decode(&host); err != nil {
		return nil, fmt.Errorf("failed to parse shodan response: %w", err)
	}
	return hostEndpoints(host), nil
}

// hostEndpoints merges the port list with per-service data, sorted by port.
func hostEndpoints(host shodanHost) []ports.RawEndpoint {
	services := make(map[int]string)
	for _, d := range host.Data {
		name := d.Shodan.Module
		if name == "" {
			name = d.Product
		}
		if _, seen := services[d.Port]; !seen || services[d.Port] == "" {
			services[d.Port] = name
		}
	}
	for _, p := range host.Ports {
		if _, ok := services[p]; !ok {
			services[p] = ""
		}
	}

	out := make([]ports.RawEndpoint, 0, len(services))
	for port, svc := range services {
		out = append(out, ports.RawEndpoint{Port: port, Service: svc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// resolve turns a hostname into its first IPv4 address; IP literals pass through.
func resolve(ctx context.Context, target string) (string, error) {
	if ip := net.ParseIP(target); ip != nil {
		return ip.String(), nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", target, err)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP.String(), nil
	}
	return "", fmt.Errorf("no address for %s", target)
}
