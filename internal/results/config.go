package results

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/xtxerr/perfres/config"
	"github.com/xtxerr/perfres/internal/dim"
	"github.com/xtxerr/perfres/internal/errors"
)

// ScenarioContext identifies the scenario a configuration belongs to.
// It is a non-owning back-link: ConfigResults never holds a reference to
// its parent, only this value.
type ScenarioContext struct {
	ScenarioID   int32
	ScenarioName string
}

// Enricher supplies failure and summary annotations for the resolved
// current and baseline builds of a configuration. Implemented by the
// remote results store; errors propagate unmodified to the Update caller.
type Enricher interface {
	QueryScenarioFailures(ctx context.Context, scn ScenarioContext, configName string, current, baseline *BuildResults) error
	QueryScenarioSummaries(ctx context.Context, scn ScenarioContext, configName string, current, baseline *BuildResults) error
}

// Stats holds cross-build summary statistics for one dimension.
type Stats struct {
	Count  int64
	Mean   float64
	StdDev float64
	// CV is the coefficient of variation as a percentage, rounded to two
	// decimal places.
	CV float64
}

// ConfigResults aggregates build results for one hardware/software test
// configuration. It owns an ordered sequence of BuildResults; insertion
// order is chronological build order.
//
// After Update has run, baseline and current always point into the owned
// sequence (exact name match or positional fallback) as long as at least
// one build store exists.
//
// ConfigResults is not safe for concurrent use. All mutation (SetValue,
// ReadData, Update) must complete before reads.
type ConfigResults struct {
	id       int32
	name     string
	scenario ScenarioContext

	builds []*BuildResults
	byName map[string]*BuildResults

	baseline *BuildResults
	current  *BuildResults

	baselined bool
	valid     bool
}

// NewConfigResults creates an empty aggregate for the named configuration.
// The display name and scenario context are resolved by the caller and
// injected once at construction.
func NewConfigResults(id int32, name string, scenario ScenarioContext) *ConfigResults {
	return &ConfigResults{
		id:       id,
		name:     name,
		scenario: scenario,
		byName:   make(map[string]*BuildResults),
	}
}

// ID returns the configuration id.
func (c *ConfigResults) ID() int32 {
	return c.id
}

// Name returns the configuration display name.
func (c *ConfigResults) Name() string {
	return c.name
}

// Scenario returns the scenario context.
func (c *ConfigResults) Scenario() ScenarioContext {
	return c.scenario
}

// Size returns the number of owned build stores.
func (c *ConfigResults) Size() int {
	return len(c.builds)
}

// SetValue appends a sample for the named build, creating its store on
// first sight. Stores are appended in discovery order.
func (c *ConfigResults) SetValue(buildName string, dimID, step int32, value float64) {
	b, ok := c.byName[buildName]
	if !ok {
		b = NewBuildResults(buildName)
		c.addBuild(b)
	}
	b.SetValue(dimID, step, value)
}

func (c *ConfigResults) addBuild(b *BuildResults) {
	c.builds = append(c.builds, b)
	c.byName[b.Name()] = b
}

// Build returns the owned store for the named build.
func (c *ConfigResults) Build(name string) (*BuildResults, bool) {
	b, ok := c.byName[name]
	return b, ok
}

// Builds returns the owned stores whose names match the given pattern,
// preserving chronological order.
func (c *ConfigResults) Builds(pattern string) []*BuildResults {
	var out []*BuildResults
	for _, b := range c.builds {
		if b.Match(pattern) {
			out = append(out, b)
		}
	}
	return out
}

// BuildsMatchingPrefixes returns the owned stores whose names start with
// any of the given prefixes, preserving chronological order.
//
// A store matching more than one prefix is included once per matching
// prefix. The duplication is long-standing observable behavior that
// downstream statistics depend on, so it is kept.
func (c *ConfigResults) BuildsMatchingPrefixes(prefixes []string) []*BuildResults {
	var out []*BuildResults
	for _, b := range c.builds {
		name := b.Name()
		for _, p := range prefixes {
			if len(name) >= len(p) && name[:len(p)] == p {
				out = append(out, b)
			}
		}
	}
	return out
}

// BaselineBuild returns the resolved baseline store, or nil before Update.
func (c *ConfigResults) BaselineBuild() *BuildResults {
	return c.baseline
}

// BaselineBuildName returns the resolved baseline build name, or "" before
// Update.
func (c *ConfigResults) BaselineBuildName() string {
	if c.baseline == nil {
		return ""
	}
	return c.baseline.Name()
}

// CurrentBuild returns the resolved current store, or nil before Update.
func (c *ConfigResults) CurrentBuild() *BuildResults {
	return c.current
}

// CurrentBuildName returns the resolved current build name, or "" before
// Update.
func (c *ConfigResults) CurrentBuildName() string {
	if c.current == nil {
		return ""
	}
	return c.current.Name()
}

// IsBaselined reports whether the baseline resolved via exact name match
// rather than positional fallback.
func (c *ConfigResults) IsBaselined() bool {
	return c.baselined
}

// IsValid reports whether the current build resolved via exact name match
// rather than positional fallback.
func (c *ConfigResults) IsValid() bool {
	return c.valid
}

// CurrentBuildDeviation returns the relative deviation of the current
// build against the baseline for the default dimension, with the
// propagated standard error of that estimate.
//
//	deviation = (current - baseline) / baseline
//
// A NaN ratio (zero baseline value) yields (NaN, NaN). A single-sample
// baseline or current series yields a NaN error. Otherwise the combined
// variance of the two series propagates linearly through the ratio,
// normalized by the baseline value; an undefined baseline error is
// treated as zero.
func (c *ConfigResults) CurrentBuildDeviation() (deviation, stderr float64) {
	if c.baseline == nil || c.current == nil {
		return math.NaN(), math.NaN()
	}
	dimID := dim.Default().ID
	baselineValue := c.baseline.Value(dimID)
	currentValue := c.current.Value(dimID)
	deviation = (currentValue - baselineValue) / baselineValue
	if math.IsNaN(deviation) {
		return math.NaN(), math.NaN()
	}
	if c.baseline.Count(dimID) == 1 || c.current.Count(dimID) == 1 {
		return deviation, math.NaN()
	}
	baselineError := c.baseline.Error(dimID)
	currentError := c.current.Error(dimID)
	if math.IsNaN(baselineError) {
		stderr = currentError / baselineValue
	} else {
		stderr = math.Sqrt(baselineError*baselineError+currentError*currentError) / baselineValue
	}
	return deviation, stderr
}

// Statistics computes cross-build statistics for a dimension over the
// stores matching the given prefixes, or over all owned stores when
// prefixes is empty. The count, mean, sample standard deviation (n-1
// denominator) and coefficient of variation (percent, two decimals) are
// returned; undefined results are NaN or Inf when the count is below two
// or the mean is zero.
func (c *ConfigResults) Statistics(prefixes []string, dimID int32) Stats {
	stores := c.builds
	if len(prefixes) > 0 {
		stores = c.BuildsMatchingPrefixes(prefixes)
	}

	count := len(stores)
	values := make([]float64, count)
	mean := 0.0
	for i, b := range stores {
		v := b.Value(dimID)
		values[i] = v
		mean += v
	}
	mean /= float64(count)

	stddev := 0.0
	for _, v := range values {
		d := v - mean
		stddev += d * d
	}
	stddev = math.Sqrt(stddev / float64(count-1))
	cv := math.Round(stddev/mean*100*100) / 100

	return Stats{
		Count:  int64(count),
		Mean:   mean,
		StdDev: stddev,
		CV:     cv,
	}
}

// LastNightlyBuildNames returns up to n most recent nightly build names,
// scanning backward from the store immediately preceding the current
// build, most-recent-first. Before Update it scans from the second-to-last
// store.
func (c *ConfigResults) LastNightlyBuildNames(n int) []string {
	start := len(c.builds) - 2
	if c.current != nil {
		start = c.indexOf(c.current) - 1
	}
	var names []string
	for i := start; i >= 0; i-- {
		b := c.builds[i]
		if b.IsNightly() {
			names = append(names, b.Name())
			if len(names) >= n {
				break
			}
		}
	}
	return names
}

func (c *ConfigResults) indexOf(b *BuildResults) int {
	for i, owned := range c.builds {
		if owned == b {
			return i
		}
	}
	return -1
}

// Update reconciles the aggregate after loading: cleans every store that
// holds samples, resolves the baseline and current stores by exact name
// match with positional fallback (first store for baseline, last store
// for current), then asks the enricher to annotate the resolved pair.
//
// Update is idempotent with respect to resolution: re-running it reselects
// the same stores unless membership changed. Enricher failures are not
// handled here; they surface to the caller unmodified.
func (c *ConfigResults) Update(ctx context.Context, baselineName, currentName string, enricher Enricher) error {
	for _, b := range c.builds {
		if b.HasSamples() {
			b.CleanValues()
		}
	}

	c.baseline, c.baselined = nil, false
	c.current, c.valid = nil, false
	for _, b := range c.builds {
		if b.Name() == baselineName {
			c.baseline = b
			c.baselined = true
			break
		}
	}
	for _, b := range c.builds {
		if b.Name() == currentName {
			c.current = b
			c.valid = true
			break
		}
	}
	if c.baseline == nil && len(c.builds) > 0 {
		c.baseline = c.builds[0]
	}
	if c.current == nil && len(c.builds) > 0 {
		c.current = c.builds[len(c.builds)-1]
	}

	if enricher == nil || c.current == nil {
		return nil
	}
	if err := enricher.QueryScenarioFailures(ctx, c.scenario, c.name, c.current, c.baseline); err != nil {
		return err
	}
	return enricher.QueryScenarioSummaries(ctx, c.scenario, c.name, c.current, c.baseline)
}

// =============================================================================
// Stream I/O
// =============================================================================

// Write serializes the owned sequence:
// 4-byte configuration id, 4-byte build count, then each build record in
// sequence order.
func (c *ConfigResults) Write(w io.Writer) error {
	if err := writeInt32(w, c.id); err != nil {
		return fmt.Errorf("write config id: %w", err)
	}
	if err := writeInt32(w, int32(len(c.builds))); err != nil {
		return fmt.Errorf("write build count: %w", err)
	}
	for _, b := range c.builds {
		if err := b.EncodeTo(w); err != nil {
			return fmt.Errorf("config %s: %w", c.name, err)
		}
	}
	return nil
}

// ReadData deserializes a configuration record, appending the
// reconstructed stores in stream order. Partial or truncated input is a
// fatal read failure; the aggregate must then be discarded.
func (c *ConfigResults) ReadData(r io.Reader) error {
	id, err := readInt32(r)
	if err != nil {
		return fmt.Errorf("read config id: %w", err)
	}
	count, err := readInt32(r)
	if err != nil {
		return fmt.Errorf("config %s: read build count: %w", c.name, err)
	}
	if count < 0 || count > config.MaxBuildsPerConfig {
		return fmt.Errorf("config %s: build count %d: %w", c.name, count, errors.ErrRecordTooLarge)
	}
	c.id = id
	for i := int32(0); i < count; i++ {
		b := NewBuildResults("")
		if err := b.DecodeFrom(r); err != nil {
			return fmt.Errorf("config %s: %w", c.name, err)
		}
		c.addBuild(b)
	}
	return nil
}
