package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

const referenceBase = "https://www.speedguide.net/port.php?port="

// ReferenceURL returns the external lookup page for an unrecognised port.
func ReferenceURL(port uint16) string {
	return fmt.Sprintf("%s%d", referenceBase, port)
}

// UnknownRecommendation is the guidance attached to ports absent from the table.
func UnknownRecommendation(port uint16) string {
	return "Port not in database. Research recommended: " + ReferenceURL(port)
}

type ruleFile struct {
	Version string      `yaml:"version"`
	Rules   []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Port           int    `yaml:"port"`
	Tier           string `yaml:"tier"`
	Recommendation string `yaml:"recommendation"`
}

// Table is an immutable port -> rule mapping. Safe for concurrent use.
type Table struct {
	version string
	byPort  map[uint16]domain.Rule
}

// Load parses a YAML rule document. Duplicate ports are a load error.
func Load(r io.Reader) (*Table, error) {
	var file ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode rules: %w", err)
	}

	t := &Table{
		version: file.Version,
		byPort:  make(map[uint16]domain.Rule, len(file.Rules)),
	}
	for i, e := range file.Rules {
		obs, err := domain.NewObservation(e.Port, "")
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		tier, err := domain.ParseTier(e.Tier)
		if err != nil || tier == domain.TierUnknown {
			return nil, fmt.Errorf("rule %d (port %d): %w: %q", i, e.Port, domain.ErrInvalidTier, e.Tier)
		}
		if strings.TrimSpace(e.Recommendation) == "" {
			return nil, fmt.Errorf("rule %d (port %d): empty recommendation", i, e.Port)
		}
		if _, exists := t.byPort[obs.Port]; exists {
			return nil, fmt.Errorf("%w %d", domain.ErrDuplicateRule, e.Port)
		}
		t.byPort[obs.Port] = domain.Rule{Port: obs.Port, Tier: tier, Recommendation: e.Recommendation}
	}
	return t, nil
}

// LoadFile reads an operator-supplied rule file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the table shipped with the binary.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Load(bytes.NewReader(defaultRules))
		if err != nil {
			panic(fmt.Sprintf("embedded rules are invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Classify resolves a port to its tier and recommendation. Total: unknown ports
// yield TierUnknown with a research pointer.
func (t *Table) Classify(port uint16) (domain.Tier, string) {
	if r, ok := t.byPort[port]; ok {
		return r.Tier, r.Recommendation
	}
	return domain.TierUnknown, UnknownRecommendation(port)
}

// Lookup returns the rule for port, if one is defined.
func (t *Table) Lookup(port uint16) (domain.Rule, bool) {
	r, ok := t.byPort[port]
	return r, ok
}

func (t *Table) Version() string { return t.version }

func (t *Table) Len() int { return len(t.byPort) }

// Rules returns a copy of all rules ordered by port.
func (t *Table) Rules() []domain.Rule {
	out := make([]domain.Rule, 0, len(t.byPort))
	for _, r := range t.byPort {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}
