// Package export writes per-build statistics to parquet files for
// downstream analysis tools.
package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/perfres/internal/dim"
	"github.com/xtxerr/perfres/internal/results"
)

// Options configures the parquet export.
type Options struct {
	// Compression algorithm: "zstd", "snappy", "lz4", "gzip", "none".
	Compression string
}

// DefaultOptions returns default export options.
func DefaultOptions() Options {
	return Options{Compression: "zstd"}
}

// codec returns the parquet-go compression codec for the option string.
func codec(name string) compress.Codec {
	switch name {
	case "snappy":
		return &parquet.Snappy
	case "zstd":
		return &parquet.Zstd
	case "lz4":
		return &parquet.Lz4Raw
	case "gzip":
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// StatRow is one per-build, per-dimension statistics row.
type StatRow struct {
	Scenario  string  `parquet:"scenario,zstd"`
	Config    string  `parquet:"config,zstd"`
	Build     string  `parquet:"build,zstd"`
	Dim       string  `parquet:"dim,zstd"`
	DimID     int32   `parquet:"dim_id"`
	Value     float64 `parquet:"value"`
	Count     int64   `parquet:"count"`
	StdErr    float64 `parquet:"std_err"`
	IsCurrent bool    `parquet:"is_current"`
	IsBase    bool    `parquet:"is_baseline"`
}

// CollectStats flattens a run's result trees into statistics rows, one per
// (build, recorded dimension). NaN standard errors are exported as zero so
// the column stays filterable.
func CollectStats(scenarios []*results.ScenarioResults) []StatRow {
	var rows []StatRow
	for _, scn := range scenarios {
		for _, cfg := range scn.Configs() {
			for _, b := range cfg.Builds("") {
				for _, dimID := range b.Dimensions() {
					name := fmt.Sprintf("dim-%d", dimID)
					if d, ok := dim.ByID(dimID); ok {
						name = d.Name
					}
					stderr := b.Error(dimID)
					if math.IsNaN(stderr) {
						stderr = 0
					}
					rows = append(rows, StatRow{
						Scenario:  scn.Name(),
						Config:    cfg.Name(),
						Build:     b.Name(),
						Dim:       name,
						DimID:     dimID,
						Value:     b.Value(dimID),
						Count:     b.Count(dimID),
						StdErr:    stderr,
						IsCurrent: b == cfg.CurrentBuild(),
						IsBase:    b == cfg.BaselineBuild(),
					})
				}
			}
		}
	}
	return rows
}

// WriteStats writes statistics rows to a parquet file.
func WriteStats(path string, rows []StatRow, opts Options) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	w := parquet.NewGenericWriter[StatRow](f, parquet.Compression(codec(opts.Compression)))

	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			f.Close()
			return fmt.Errorf("write rows: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Close()
}

// ReadStats reads back statistics rows from a parquet file.
func ReadStats(path string) ([]StatRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	defer f.Close()

	r := parquet.NewGenericReader[StatRow](f)
	defer r.Close()

	rows := make([]StatRow, r.NumRows())
	if len(rows) == 0 {
		return nil, nil
	}
	n, err := r.Read(rows)
	if err != nil && n < len(rows) {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:n], nil
}
