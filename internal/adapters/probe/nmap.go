package probe

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
)

// nmapRun is the subset of the nmap XML report we read.
type nmapRun struct {
	XMLName  xml.Name   `xml:"nmaprun"`
	Hosts    []nmapHost `xml:"host"`
	RunStats *struct {
		Hosts *struct {
			Up   int `xml:"up,attr"`
			Down int `xml:"down,attr"`
		} `xml:"hosts"`
	} `xml:"runstats"`
}

type nmapHost struct {
	Status *struct {
		State string `xml:"state,attr"`
	} `xml:"status"`
	Ports *struct {
		List []nmapPort `xml:"port"`
	} `xml:"ports"`
}

type nmapPort struct {
	Protocol string `xml:"protocol,attr"`
	PortID   int    `xml:"portid,attr"`
	State    *struct {
		State string `xml:"state,attr"`
	} `xml:"state"`
	Service *struct {
		Name string `xml:"name,attr"`
	} `xml:"service"`
}

// commandRunner executes a process and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// NmapProbe runs a local nmap service scan.
type NmapProbe struct {
	path string
	args []string
	run  commandRunner
}

// NewNmapProbe builds a probe around the nmap binary at path. Extra args are
// passed before the target; "-sV" is used when none are given.
func NewNmapProbe(path string, args []string) *NmapProbe {
	if path == "" {
		path = "nmap"
	}
	if len(args) == 0 {
		args = []string{"-sV"}
	}
	return &NmapProbe{path: path, args: args, run: execRunner}
}

func (p *NmapProbe) Name() string { return "nmap" }

func (p *NmapProbe) Probe(ctx context.Context, target string) ([]ports.RawEndpoint, error) {
	args := append(append([]string{}, p.args...), "-oX", "-", target)
	out, err := p.run(ctx, p.path, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("nmap not available: %w", err)
		}
		return nil, fmt.Errorf("nmap failed: %w", err)
	}
	endpoints, err := parseNmapXML(out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target, err)
	}
	return endpoints, nil
}

// parseNmapXML returns the open ports of every host that is up, in report order.
// A report with no host up yields domain.ErrHostDown.
func parseNmapXML(data []byte) ([]ports.RawEndpoint, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse nmap output: %w", err)
	}
	up := 0
	endpoints := []ports.RawEndpoint{}
	for _, h := range run.Hosts {
		if h.Status != nil && h.Status.State != "up" {
			continue
		}
		up++
		if h.Ports == nil {
			continue
		}
		for _, p := range h.Ports.List {
			if p.State == nil || p.State.State != "open" {
				continue
			}
			service := ""
			if p.Service != nil {
				service = p.Service.Name
			}
			endpoints = append(endpoints, ports.RawEndpoint{Port: p.PortID, Service: service})
		}
	}
	if run.RunStats != nil && run.RunStats.Hosts != nil {
		up = run.RunStats.Hosts.Up
	}
	if up == 0 {
		return nil, domain.ErrHostDown
	}
	return endpoints, nil
}
