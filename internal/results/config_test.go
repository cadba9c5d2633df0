package results

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/xtxerr/perfres/internal/dim"
)

var testScenario = ScenarioContext{ScenarioID: 1, ScenarioName: "ui-startup"}

// newTestConfig builds an aggregate with one default-dimension sample per
// build, in the given order.
func newTestConfig(t *testing.T, builds map[string][]float64, order []string) *ConfigResults {
	t.Helper()
	c := NewConfigResults(7, "linux-gtk-x86", testScenario)
	d := dim.Default().ID
	for _, name := range order {
		for step, v := range builds[name] {
			c.SetValue(name, d, int32(step), v)
		}
	}
	return c
}

// stubEnricher records enrichment calls and optionally fails.
type stubEnricher struct {
	failures   int
	summaries  int
	lastConfig string
	lastScn    ScenarioContext
	err        error
}

func (e *stubEnricher) QueryScenarioFailures(ctx context.Context, scn ScenarioContext, configName string, current, baseline *BuildResults) error {
	e.failures++
	e.lastConfig = configName
	e.lastScn = scn
	if current != nil {
		current.SetFailure("stubbed")
	}
	return e.err
}

func (e *stubEnricher) QueryScenarioSummaries(ctx context.Context, scn ScenarioContext, configName string, current, baseline *BuildResults) error {
	e.summaries++
	return e.err
}

func TestUpdate_ExactMatches(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N20040101": {10},
		"N20040102": {11},
		"I20040103": {12},
	}, []string{"N20040101", "N20040102", "I20040103"})

	if err := c.Update(context.Background(), "N20040101", "I20040103", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	if !c.IsBaselined() {
		t.Error("expected baselined=true for exact baseline match")
	}
	if !c.IsValid() {
		t.Error("expected valid=true for exact current match")
	}
	if got := c.BaselineBuildName(); got != "N20040101" {
		t.Errorf("baseline=%q, want N20040101", got)
	}
	if got := c.CurrentBuildName(); got != "I20040103" {
		t.Errorf("current=%q, want I20040103", got)
	}
}

func TestUpdate_PositionalFallback(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N20040101": {10},
		"N20040102": {11},
		"I20040103": {12},
	}, []string{"N20040101", "N20040102", "I20040103"})

	if err := c.Update(context.Background(), "N19990101", "I20050101", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	if c.IsBaselined() {
		t.Error("expected baselined=false when no exact baseline match")
	}
	if c.IsValid() {
		t.Error("expected valid=false when no exact current match")
	}
	if got := c.BaselineBuildName(); got != "N20040101" {
		t.Errorf("fallback baseline=%q, want chronologically first N20040101", got)
	}
	if got := c.CurrentBuildName(); got != "I20040103" {
		t.Errorf("fallback current=%q, want chronologically last I20040103", got)
	}
}

func TestUpdate_Idempotent(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {10},
		"I2": {12},
	}, []string{"N1", "I2"})

	ctx := context.Background()
	if err := c.Update(ctx, "N1", "I2", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	first := c.BaselineBuild()
	if err := c.Update(ctx, "N1", "I2", nil); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if c.BaselineBuild() != first {
		t.Error("re-running update must reselect the same baseline store")
	}
	if !c.IsBaselined() || !c.IsValid() {
		t.Error("flags must survive a second update")
	}
}

func TestUpdate_EnricherCalledAndErrorsPropagate(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {10},
		"I2": {12},
	}, []string{"N1", "I2"})

	e := &stubEnricher{}
	if err := c.Update(context.Background(), "N1", "I2", e); err != nil {
		t.Fatalf("update: %v", err)
	}
	if e.failures != 1 || e.summaries != 1 {
		t.Errorf("expected 1 failures + 1 summaries call, got %d/%d", e.failures, e.summaries)
	}
	if e.lastConfig != "linux-gtk-x86" {
		t.Errorf("enricher saw config %q", e.lastConfig)
	}
	if e.lastScn != testScenario {
		t.Errorf("enricher saw scenario %+v", e.lastScn)
	}
	if !c.CurrentBuild().HasFailure() {
		t.Error("enrichment side effect should be visible on the current store")
	}

	e2 := &stubEnricher{err: context.DeadlineExceeded}
	err := c.Update(context.Background(), "N1", "I2", e2)
	if err == nil {
		t.Fatal("expected enricher error to propagate")
	}
}

func TestCurrentBuildDeviation_EqualValues(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {10, 10},
		"I2": {10, 10},
	}, []string{"N1", "I2"})
	if err := c.Update(context.Background(), "N1", "I2", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	deviation, stderr := c.CurrentBuildDeviation()
	if deviation != 0 {
		t.Errorf("expected deviation=0 for equal values, got %f", deviation)
	}
	if math.IsNaN(stderr) {
		t.Error("expected defined stderr for multi-sample series")
	}
}

func TestCurrentBuildDeviation_SingleSampleBaseline(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {10},
		"I2": {11, 12, 13},
	}, []string{"N1", "I2"})
	if err := c.Update(context.Background(), "N1", "I2", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	deviation, stderr := c.CurrentBuildDeviation()
	if math.IsNaN(deviation) {
		t.Error("deviation itself should be defined")
	}
	if !math.IsNaN(stderr) {
		t.Errorf("expected NaN stderr for single-sample baseline, got %f", stderr)
	}
}

func TestCurrentBuildDeviation_ZeroBaseline(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {0, 0},
		"I2": {0, 0},
	}, []string{"N1", "I2"})
	if err := c.Update(context.Background(), "N1", "I2", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	deviation, stderr := c.CurrentBuildDeviation()
	if !math.IsNaN(deviation) || !math.IsNaN(stderr) {
		t.Errorf("expected (NaN, NaN) for zero baseline, got (%f, %f)", deviation, stderr)
	}
}

func TestCurrentBuildDeviation_ErrorPropagation(t *testing.T) {
	// baseline [10,10,10]: mean 10, stderr 0
	// current [12,12,12,12]: mean 12, stderr 0
	c := newTestConfig(t, map[string][]float64{
		"N1": {10, 10, 10},
		"I2": {12, 12, 12, 12},
	}, []string{"N1", "I2"})
	if err := c.Update(context.Background(), "N1", "I2", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	deviation, stderr := c.CurrentBuildDeviation()
	if math.Abs(deviation-0.2) > 1e-9 {
		t.Errorf("expected deviation=0.2, got %f", deviation)
	}
	if stderr != 0 {
		t.Errorf("expected stderr=0 for zero-variance series, got %f", stderr)
	}
}

func TestCurrentBuildDeviation_BeforeUpdate(t *testing.T) {
	c := NewConfigResults(0, "linux-gtk-x86", testScenario)
	deviation, stderr := c.CurrentBuildDeviation()
	if !math.IsNaN(deviation) || !math.IsNaN(stderr) {
		t.Errorf("expected (NaN, NaN) before update, got (%f, %f)", deviation, stderr)
	}
}

func TestStatistics_UniformValues(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {10}, "N2": {10}, "N3": {10},
	}, []string{"N1", "N2", "N3"})

	st := c.Statistics(nil, dim.Default().ID)
	if st.Count != 3 {
		t.Errorf("count=%d, want 3", st.Count)
	}
	if st.Mean != 10 {
		t.Errorf("mean=%f, want 10", st.Mean)
	}
	if st.StdDev != 0 {
		t.Errorf("stddev=%f, want 0", st.StdDev)
	}
	if st.CV != 0 {
		t.Errorf("cv=%f, want 0", st.CV)
	}
}

func TestStatistics_SampleVariance(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {8}, "N2": {10}, "N3": {12},
	}, []string{"N1", "N2", "N3"})

	st := c.Statistics(nil, dim.Default().ID)
	if st.Count != 3 {
		t.Errorf("count=%d, want 3", st.Count)
	}
	if st.Mean != 10 {
		t.Errorf("mean=%f, want 10", st.Mean)
	}
	// sample variance ((-2)^2 + 0 + 2^2) / 2 = 4
	if st.StdDev != 2 {
		t.Errorf("stddev=%f, want 2", st.StdDev)
	}
	if st.CV != 20 {
		t.Errorf("cv=%f, want 20", st.CV)
	}
}

func TestStatistics_UndefinedBelowTwo(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{"N1": {10}}, []string{"N1"})

	st := c.Statistics(nil, dim.Default().ID)
	if st.Count != 1 {
		t.Errorf("count=%d, want 1", st.Count)
	}
	if !math.IsNaN(st.StdDev) {
		t.Errorf("stddev should be undefined for a single build, got %f", st.StdDev)
	}
	if !math.IsNaN(st.CV) {
		t.Errorf("cv should be undefined for a single build, got %f", st.CV)
	}
}

func TestStatistics_PrefixFilter(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {8}, "I1": {12}, "X1": {1000},
	}, []string{"N1", "I1", "X1"})

	st := c.Statistics([]string{"N", "I"}, dim.Default().ID)
	if st.Count != 2 {
		t.Errorf("count=%d, want 2 (X1 excluded)", st.Count)
	}
	if st.Mean != 10 {
		t.Errorf("mean=%f, want 10", st.Mean)
	}
}

func TestBuilds_Pattern(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {1}, "N2": {1}, "I1": {1},
	}, []string{"N1", "N2", "I1"})

	got := c.Builds("N*")
	if len(got) != 2 || got[0].Name() != "N1" || got[1].Name() != "N2" {
		t.Errorf("Builds(N*) = %v", names(got))
	}
	if all := c.Builds(""); len(all) != 3 {
		t.Errorf("Builds(\"\") returned %d stores, want 3", len(all))
	}
}

func TestBuildsMatchingPrefixes_OrderAndDuplication(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {1}, "I1": {1}, "X1": {1},
	}, []string{"N1", "I1", "X1"})

	got := names(c.BuildsMatchingPrefixes([]string{"N", "I"}))
	want := []string{"N1", "I1"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("got %v, want %v", got, want)
	}

	// A build matching two prefixes appears once per matching prefix.
	// Long-standing behavior that downstream consumers rely on.
	dup := names(c.BuildsMatchingPrefixes([]string{"N", "N1"}))
	if len(dup) != 2 || dup[0] != "N1" || dup[1] != "N1" {
		t.Errorf("expected duplicated entry [N1 N1], got %v", dup)
	}
}

func TestLastNightlyBuildNames(t *testing.T) {
	c := newTestConfig(t, map[string][]float64{
		"N1": {1}, "N2": {1}, "I3": {1}, "N4": {1}, "I5": {1},
	}, []string{"N1", "N2", "I3", "N4", "I5"})
	if err := c.Update(context.Background(), "N1", "I5", nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	got := c.LastNightlyBuildNames(2)
	if len(got) != 2 || got[0] != "N4" || got[1] != "N2" {
		t.Errorf("got %v, want [N4 N2]", got)
	}

	// More than available: return what exists.
	all := c.LastNightlyBuildNames(10)
	if len(all) != 3 || all[0] != "N4" || all[1] != "N2" || all[2] != "N1" {
		t.Errorf("got %v, want [N4 N2 N1]", all)
	}
}

func TestConfigResults_RoundTrip(t *testing.T) {
	c := NewConfigResults(7, "linux-gtk-x86", testScenario)
	c.SetValue("N20040101", dim.IDElapsedProcess, 0, 10)
	c.SetValue("N20040101", dim.IDElapsedProcess, 1, 12)
	c.SetValue("N20040101", dim.IDCPUTime, 0, 5)
	c.SetValue("I20040103", dim.IDElapsedProcess, 0, 11)

	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	decoded := NewConfigResults(0, "linux-gtk-x86", testScenario)
	if err := decoded.ReadData(&buf); err != nil {
		t.Fatalf("read: %v", err)
	}

	if decoded.ID() != 7 {
		t.Errorf("id=%d, want 7", decoded.ID())
	}
	if decoded.Size() != c.Size() {
		t.Fatalf("size=%d, want %d", decoded.Size(), c.Size())
	}
	want := names(c.Builds(""))
	got := names(decoded.Builds(""))
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("build order %v, want %v", got, want)
		}
	}
	for _, name := range want {
		orig, _ := c.Build(name)
		clone, _ := decoded.Build(name)
		for _, id := range orig.Dimensions() {
			if clone.Value(id) != orig.Value(id) || clone.Count(id) != orig.Count(id) {
				t.Errorf("build %s dim %d: value/count mismatch", name, id)
			}
		}
	}
}

func TestConfigResults_ReadTruncated(t *testing.T) {
	c := NewConfigResults(7, "linux-gtk-x86", testScenario)
	c.SetValue("N20040101", dim.IDElapsedProcess, 0, 10)
	c.SetValue("I20040103", dim.IDElapsedProcess, 0, 11)

	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}

	data := buf.Bytes()
	decoded := NewConfigResults(0, "linux-gtk-x86", testScenario)
	if err := decoded.ReadData(bytes.NewReader(data[:len(data)-4])); err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func names(builds []*BuildResults) []string {
	out := make([]string, len(builds))
	for i, b := range builds {
		out[i] = b.Name()
	}
	return out
}
