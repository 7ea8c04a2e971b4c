package riskmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lcalzada-xor/iotguard/internal/core/domain"
	"github.com/lcalzada-xor/iotguard/internal/core/ports"
	"golang.org/x/sync/singleflight"
)

// Verdict thresholds on the average tier weight. These are policy, tune here.
const (
	HighThreshold   = 2.5
	MediumThreshold = 1.7
)

// State is a lifecycle stage of the model.
type State int32

const (
	StateUntrained State = iota
	StateLoading
	StateTraining
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUntrained:
		return "untrained"
	case StateLoading:
		return "loading"
	case StateTraining:
		return "training"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Source tells which path produced the per-port tiers of an assessment.
type Source string

const (
	SourceModel Source = "model"
	SourceRules Source = "rules"
)

// Assessment is the aggregate verdict for one scan.
type Assessment struct {
	Verdict domain.Verdict `json:"verdict"`
	Score   float64        `json:"score"`
	Source  Source         `json:"source"`
	Tiers   []domain.Tier  `json:"tiers,omitempty"`
}

// Observer is notified on every lifecycle transition.
type Observer func(from, to State)

// HistorySource supplies labeled training samples.
type HistorySource interface {
	ListLabeledPorts(ctx context.Context) ([]domain.LabeledPort, error)
}

type Config struct {
	MinSamples int
	MaxDepth   int
	Seed       int64
}

// DefaultConfig matches the shipped training policy.
func DefaultConfig() Config {
	return Config{MinSamples: 5, MaxDepth: 3, Seed: 42}
}

// Info is a snapshot of the model for status endpoints.
type Info struct {
	State       string        `json:"state"`
	SampleCount int           `json:"sample_count"`
	Classes     []domain.Tier `json:"classes,omitempty"`
	Nodes       int           `json:"nodes"`
	MaxDepth    int           `json:"max_depth"`
	TrainedAt   *time.Time    `json:"trained_at,omitempty"`
}

// Model owns the trained risk classifier. Readers load an immutable parameter
// snapshot; writers are serialized by mu and publish with an atomic swap.
type Model struct {
	history HistorySource
	store   ports.ModelRepository
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	params atomic.Pointer[domain.ModelState]
	state  atomic.Int32

	mu   sync.Mutex
	init singleflight.Group

	obsMu     sync.RWMutex
	observers []Observer
}

func New(history HistorySource, store ports.ModelRepository, cfg Config, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	return &Model{
		history: history,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// OnTransition registers an observer for lifecycle changes.
func (m *Model) OnTransition(fn Observer) {
	m.obsMu.Lock()
	m.observers = append(m.observers, fn)
	m.obsMu.Unlock()
}

func (m *Model) State() State {
	return State(m.state.Load())
}

func (m *Model) setState(to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}
	m.logger.Debug("Risk model state change", "from", from.String(), "to", to.String())
	m.obsMu.RLock()
	obs := m.observers
	m.obsMu.RUnlock()
	for _, fn := range obs {
		fn(from, to)
	}
}

// Init loads persisted parameters or trains from history. Concurrent first
// callers share one attempt and return once it settles. Calls made while
// Ready or Unavailable return immediately.
func (m *Model) Init(ctx context.Context) error {
	if st := m.State(); st == StateReady || st == StateUnavailable {
		return nil
	}
	_, err, _ := m.init.Do("init", func() (interface{}, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.State() != StateUntrained {
			return nil, nil
		}
		return nil, m.load(ctx)
	})
	return err
}

// load runs Loading -> Ready, or Loading -> Training. Caller holds mu.
func (m *Model) load(ctx context.Context) error {
	m.setState(StateLoading)

	saved, err := m.store.LoadModel(ctx)
	if err != nil {
		m.logger.Warn("Failed to load persisted risk model", "error", err)
	}
	if saved != nil {
		if verr := validateState(saved); verr != nil {
			m.logger.Warn("Ignoring persisted risk model", "error", verr)
		} else {
			m.params.Store(saved)
			m.setState(StateReady)
			m.logger.Info("Risk model loaded", "samples", saved.SampleCount, "trained_at", saved.TrainedAt)
			return nil
		}
	}

	err = m.train(ctx, false)
	if errors.Is(err, domain.ErrInsufficientHistory) {
		// Unavailable is a valid degraded state, not an Init failure.
		return nil
	}
	return err
}

// Retrain fits fresh parameters from history. From Ready, insufficient history
// keeps the current parameters and returns ErrInsufficientHistory.
func (m *Model) Retrain(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.train(ctx, m.State() == StateReady)
}

// train moves to Training and ends in Ready or Unavailable. Caller holds mu.
func (m *Model) train(ctx context.Context, keepOnFailure bool) error {
	m.setState(StateTraining)

	fail := func(err error) error {
		if keepOnFailure && m.params.Load() != nil {
			m.setState(StateReady)
		} else {
			m.params.Store(nil)
			m.setState(StateUnavailable)
		}
		return err
	}

	labeled, err := m.history.ListLabeledPorts(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to read training history: %w", err))
	}
	labeled = usableSamples(labeled)
	if len(labeled) < m.cfg.MinSamples {
		m.logger.Info("Not enough history to train risk model", "samples", len(labeled), "required", m.cfg.MinSamples)
		return fail(fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientHistory, len(labeled), m.cfg.MinSamples))
	}

	rows, classes := encodeLabels(labeled)
	state := &domain.ModelState{
		FeatureScale: FeatureScale,
		Classes:      classes,
		Nodes:        fitTree(rows, len(classes), m.cfg.MaxDepth, m.cfg.Seed),
		MaxDepth:     m.cfg.MaxDepth,
		Seed:         m.cfg.Seed,
		SampleCount:  len(rows),
		TrainedAt:    m.now().UTC(),
	}

	m.params.Store(state)
	m.setState(StateReady)
	m.logger.Info("Risk model trained", "samples", state.SampleCount, "classes", len(classes), "nodes", len(state.Nodes))

	if err := m.store.SaveModel(ctx, *state); err != nil {
		return &domain.PersistenceError{Op: "save model", Err: err}
	}
	return nil
}

// Teardown drops the parameters and returns to Untrained.
func (m *Model) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params.Store(nil)
	m.setState(StateUntrained)
}

// Assess scores a classified scan. Never fails: without parameters it scores
// the rule-table tiers directly. A retrain in progress does not affect it; the
// published parameters serve until the swap.
func (m *Model) Assess(observations []domain.ClassifiedObservation) Assessment {
	params := m.params.Load()
	if params == nil {
		return scoreRules(observations)
	}
	if len(observations) == 0 {
		return Assessment{Verdict: domain.VerdictUnknown, Source: SourceModel}
	}
	tiers := make([]domain.Tier, len(observations))
	for i, o := range observations {
		tiers[i] = predictTier(params, o.Port)
	}
	verdict, score := Score(tiers)
	return Assessment{Verdict: verdict, Score: score, Source: SourceModel, Tiers: tiers}
}

func scoreRules(observations []domain.ClassifiedObservation) Assessment {
	if len(observations) == 0 {
		return Assessment{Verdict: domain.VerdictUnknown, Source: SourceRules}
	}
	tiers := make([]domain.Tier, len(observations))
	for i, o := range observations {
		tiers[i] = o.Tier
	}
	verdict, score := Score(tiers)
	return Assessment{Verdict: verdict, Score: score, Source: SourceRules, Tiers: tiers}
}

// Score averages the tier weights and maps the average onto a verdict.
// An empty list is Unknown.
func Score(tiers []domain.Tier) (domain.Verdict, float64) {
	if len(tiers) == 0 {
		return domain.VerdictUnknown, 0
	}
	total := 0
	for _, t := range tiers {
		total += t.Weight()
	}
	avg := float64(total) / float64(len(tiers))
	switch {
	case avg >= HighThreshold:
		return domain.VerdictHigh, avg
	case avg >= MediumThreshold:
		return domain.VerdictMedium, avg
	default:
		return domain.VerdictLow, avg
	}
}

// Info reports the current lifecycle state and parameter metadata.
func (m *Model) Info() Info {
	info := Info{State: m.State().String(), MaxDepth: m.cfg.MaxDepth}
	if p := m.params.Load(); p != nil {
		trained := p.TrainedAt
		info.SampleCount = p.SampleCount
		info.Classes = append([]domain.Tier(nil), p.Classes...)
		info.Nodes = len(p.Nodes)
		info.MaxDepth = p.MaxDepth
		info.TrainedAt = &trained
	}
	return info
}
