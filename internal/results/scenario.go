package results

import (
	"context"
	"fmt"
	"io"

	"github.com/xtxerr/perfres/config"
	"github.com/xtxerr/perfres/internal/errors"
	"github.com/xtxerr/perfres/internal/logging"
)

var log = logging.Component("results")

// ScenarioResults owns the per-configuration aggregates of one performance
// scenario. Ownership is strictly top-down: children receive the scenario
// context by value at construction and never point back.
type ScenarioResults struct {
	id      int32
	name    string
	configs []*ConfigResults
	byName  map[string]*ConfigResults
}

// NewScenarioResults creates an empty scenario.
func NewScenarioResults(id int32, name string) *ScenarioResults {
	return &ScenarioResults{
		id:     id,
		name:   name,
		byName: make(map[string]*ConfigResults),
	}
}

// ID returns the scenario id.
func (s *ScenarioResults) ID() int32 {
	return s.id
}

// Name returns the scenario name.
func (s *ScenarioResults) Name() string {
	return s.name
}

// Context returns the value injected into owned configurations.
func (s *ScenarioResults) Context() ScenarioContext {
	return ScenarioContext{ScenarioID: s.id, ScenarioName: s.name}
}

// Size returns the number of owned configurations.
func (s *ScenarioResults) Size() int {
	return len(s.configs)
}

// Configs returns the owned configurations in discovery order.
func (s *ScenarioResults) Configs() []*ConfigResults {
	out := make([]*ConfigResults, len(s.configs))
	copy(out, s.configs)
	return out
}

// Config returns the aggregate for the named configuration.
func (s *ScenarioResults) Config(name string) (*ConfigResults, bool) {
	c, ok := s.byName[name]
	return c, ok
}

// EnsureConfig returns the aggregate for the named configuration, creating
// it on first sight. Configuration ids are assigned in discovery order.
func (s *ScenarioResults) EnsureConfig(name string) *ConfigResults {
	if c, ok := s.byName[name]; ok {
		return c
	}
	c := NewConfigResults(int32(len(s.configs)), name, s.Context())
	s.addConfig(c)
	return c
}

func (s *ScenarioResults) addConfig(c *ConfigResults) {
	s.configs = append(s.configs, c)
	s.byName[c.Name()] = c
}

// SetValue routes a sample to the named configuration and build.
func (s *ScenarioResults) SetValue(configName, buildName string, dimID, step int32, value float64) {
	s.EnsureConfig(configName).SetValue(buildName, dimID, step, value)
}

// Update reconciles every owned configuration. The first enricher error
// aborts the fan-out and propagates unmodified.
func (s *ScenarioResults) Update(ctx context.Context, baselineName, currentName string, enricher Enricher) error {
	for _, c := range s.configs {
		if err := c.Update(ctx, baselineName, currentName, enricher); err != nil {
			return fmt.Errorf("scenario %s config %s: %w", s.name, c.Name(), err)
		}
	}
	return nil
}

// Scenario record format (big-endian):
//   - scenario id (4 bytes)
//   - scenario name (2-byte length + bytes)
//   - configuration count (4 bytes)
//   - per configuration: name (2-byte length + bytes), then its
//     configuration record (id, build count, build records)
//
// The configuration name travels in the scenario frame because the
// configuration record itself carries only the numeric id.

// Write serializes the scenario and all owned configurations.
func (s *ScenarioResults) Write(w io.Writer) error {
	if err := writeInt32(w, s.id); err != nil {
		return fmt.Errorf("write scenario id: %w", err)
	}
	if err := writeString(w, s.name); err != nil {
		return fmt.Errorf("write scenario name: %w", err)
	}
	if err := writeInt32(w, int32(len(s.configs))); err != nil {
		return fmt.Errorf("write config count: %w", err)
	}
	for _, c := range s.configs {
		if err := writeString(w, c.Name()); err != nil {
			return fmt.Errorf("scenario %s: write config name: %w", s.name, err)
		}
		if err := c.Write(w); err != nil {
			return fmt.Errorf("scenario %s: %w", s.name, err)
		}
	}
	return nil
}

// ReadScenario deserializes one scenario record. Truncated input is fatal;
// no partial scenario is returned.
func ReadScenario(r io.Reader) (*ScenarioResults, error) {
	id, err := readInt32(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario id: %w", err)
	}
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read scenario name: %w", err)
	}
	count, err := readInt32(r)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: read config count: %w", name, err)
	}
	if count < 0 || count > config.MaxBuildsPerConfig {
		return nil, fmt.Errorf("scenario %s: config count %d: %w", name, count, errors.ErrRecordTooLarge)
	}

	s := NewScenarioResults(id, name)
	for i := int32(0); i < count; i++ {
		configName, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: read config name: %w", name, err)
		}
		c := NewConfigResults(0, configName, s.Context())
		if err := c.ReadData(r); err != nil {
			return nil, fmt.Errorf("scenario %s: %w", name, err)
		}
		s.addConfig(c)
	}
	return s, nil
}

// PerformanceResults is the run-level container: the configured baseline
// and current build names plus every loaded scenario.
type PerformanceResults struct {
	baselineName string
	currentName  string
	scenarios    []*ScenarioResults
	byName       map[string]*ScenarioResults
}

// NewPerformanceResults creates an empty run container.
func NewPerformanceResults(baselineName, currentName string) *PerformanceResults {
	return &PerformanceResults{
		baselineName: baselineName,
		currentName:  currentName,
		byName:       make(map[string]*ScenarioResults),
	}
}

// BaselineName returns the configured baseline build name.
func (p *PerformanceResults) BaselineName() string {
	return p.baselineName
}

// Name returns the configured current build name.
func (p *PerformanceResults) Name() string {
	return p.currentName
}

// Scenarios returns the loaded scenarios in load order.
func (p *PerformanceResults) Scenarios() []*ScenarioResults {
	out := make([]*ScenarioResults, len(p.scenarios))
	copy(out, p.scenarios)
	return out
}

// Scenario returns the named scenario.
func (p *PerformanceResults) Scenario(name string) (*ScenarioResults, bool) {
	s, ok := p.byName[name]
	return s, ok
}

// AddScenario adds a loaded scenario to the run.
func (p *PerformanceResults) AddScenario(s *ScenarioResults) {
	p.scenarios = append(p.scenarios, s)
	p.byName[s.Name()] = s
}

// EnsureScenario returns the named scenario, creating it on first sight.
func (p *PerformanceResults) EnsureScenario(name string) *ScenarioResults {
	if s, ok := p.byName[name]; ok {
		return s
	}
	s := NewScenarioResults(int32(len(p.scenarios)), name)
	p.AddScenario(s)
	return s
}

// UpdateAll reconciles every scenario against the configured baseline and
// current build names. The first enricher error aborts and propagates.
func (p *PerformanceResults) UpdateAll(ctx context.Context, enricher Enricher) error {
	for _, s := range p.scenarios {
		if err := s.Update(ctx, p.baselineName, p.currentName, enricher); err != nil {
			return err
		}
		log.Debug("scenario reconciled", "scenario", s.Name(), "configs", s.Size())
	}
	return nil
}
