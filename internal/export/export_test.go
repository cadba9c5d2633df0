package export

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/xtxerr/perfres/internal/dim"
	"github.com/xtxerr/perfres/internal/results"
)

func testScenario(t *testing.T) *results.ScenarioResults {
	t.Helper()
	d := dim.Default().ID
	scn := results.NewScenarioResults(0, "ui.startup")
	for step, v := range []float64{100, 110, 120} {
		scn.SetValue("linux-gtk", "N20040101", d, int32(step), v)
	}
	scn.SetValue("linux-gtk", "I20040103", d, 0, 130)
	if err := scn.Update(context.Background(), "N20040101", "I20040103", nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	return scn
}

func TestCollectStats(t *testing.T) {
	scn := testScenario(t)

	rows := CollectStats([]*results.ScenarioResults{scn})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	byBuild := make(map[string]StatRow, len(rows))
	for _, r := range rows {
		if r.Scenario != "ui.startup" || r.Config != "linux-gtk" {
			t.Errorf("row identity: %+v", r)
		}
		if r.Dim != dim.Default().Name || r.DimID != dim.Default().ID {
			t.Errorf("row dimension: %+v", r)
		}
		byBuild[r.Build] = r
	}

	base := byBuild["N20040101"]
	if base.Value != 110 || base.Count != 3 || !base.IsBase || base.IsCurrent {
		t.Errorf("baseline row: %+v", base)
	}
	if base.StdErr == 0 || math.IsNaN(base.StdErr) {
		t.Errorf("baseline stderr: %v", base.StdErr)
	}

	cur := byBuild["I20040103"]
	if cur.Value != 130 || cur.Count != 1 || !cur.IsCurrent || cur.IsBase {
		t.Errorf("current row: %+v", cur)
	}
	// Single-sample stderr is undefined and must export as zero.
	if cur.StdErr != 0 {
		t.Errorf("current stderr: %v", cur.StdErr)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	scn := testScenario(t)
	rows := CollectStats([]*results.ScenarioResults{scn})
	path := filepath.Join(t.TempDir(), "stats.parquet")

	if err := WriteStats(path, rows, DefaultOptions()); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadStats(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d: got %+v, want %+v", i, got[i], rows[i])
		}
	}
}

func TestWriteStats_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	if err := WriteStats(path, nil, Options{Compression: "none"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadStats(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}
