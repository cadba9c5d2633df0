package results

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xtxerr/perfres/config"
	"github.com/xtxerr/perfres/internal/errors"
)

// maxSeriesLen caps per-dimension sample counts read from a stream.
// Guards decoding against corrupt count fields.
const maxSeriesLen = 1 << 20

// sample is one recorded measurement for a (dimension, step) pair.
type sample struct {
	step  int32
	value float64
}

// BuildResults holds all measurement samples recorded for one build of one
// configuration, grouped by dimension. Identity is the build name.
//
// BuildResults is mutable while samples are appended and treated as stable
// after its owning ConfigResults has run Update. It is not safe for
// concurrent use; callers serialize access.
type BuildResults struct {
	name string

	// dims preserves dimension insertion order so the binary record is
	// deterministic for a given append sequence.
	dims   []int32
	series map[int32][]sample

	// Enrichment annotations set by the remote results store. Not part of
	// the persisted record.
	failure        string
	summaryComment string
	summaryKind    int32
	hasSummary     bool
}

// NewBuildResults creates an empty store for the named build.
func NewBuildResults(name string) *BuildResults {
	return &BuildResults{
		name:   name,
		series: make(map[int32][]sample),
	}
}

// Name returns the build name.
func (b *BuildResults) Name() string {
	return b.name
}

// IsNightly reports whether the build carries the reserved nightly marker
// prefix.
func (b *BuildResults) IsNightly() bool {
	return strings.HasPrefix(b.name, config.NightlyBuildPrefix)
}

// SetValue appends a sample for the given dimension and step. Steps carry
// no ordering constraint.
func (b *BuildResults) SetValue(dimID, step int32, value float64) {
	if _, ok := b.series[dimID]; !ok {
		b.dims = append(b.dims, dimID)
	}
	b.series[dimID] = append(b.series[dimID], sample{step: step, value: value})
}

// HasSamples reports whether any dimension holds at least one sample.
func (b *BuildResults) HasSamples() bool {
	for _, s := range b.series {
		if len(s) > 0 {
			return true
		}
	}
	return false
}

// Dimensions returns the recorded dimension ids in insertion order.
func (b *BuildResults) Dimensions() []int32 {
	out := make([]int32, len(b.dims))
	copy(out, b.dims)
	return out
}

// Value returns the aggregate value for the dimension: the arithmetic mean
// of all recorded samples. Returns NaN when no samples were recorded.
func (b *BuildResults) Value(dimID int32) float64 {
	s := b.series[dimID]
	if len(s) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range s {
		sum += v.value
	}
	return sum / float64(len(s))
}

// Count returns the number of samples contributing to Value.
func (b *BuildResults) Count(dimID int32) int64 {
	return int64(len(b.series[dimID]))
}

// Error returns the standard error of the mean for the dimension:
// sample standard deviation (n-1 denominator) divided by sqrt(n).
// Returns NaN when fewer than two samples were recorded.
func (b *BuildResults) Error(dimID int32) float64 {
	s := b.series[dimID]
	n := len(s)
	if n < 2 {
		return math.NaN()
	}
	mean := b.Value(dimID)
	sum := 0.0
	for _, v := range s {
		d := v.value - mean
		sum += d * d
	}
	stddev := math.Sqrt(sum / float64(n-1))
	return stddev / math.Sqrt(float64(n))
}

// CleanValues discards dimension entries that cannot contribute to
// computation: zero-sample placeholders and series holding only
// non-finite values. Idempotent.
func (b *BuildResults) CleanValues() {
	kept := b.dims[:0]
	for _, id := range b.dims {
		if seriesUsable(b.series[id]) {
			kept = append(kept, id)
		} else {
			delete(b.series, id)
		}
	}
	b.dims = kept
}

func seriesUsable(s []sample) bool {
	for _, v := range s {
		if !math.IsNaN(v.value) && !math.IsInf(v.value, 0) {
			return true
		}
	}
	return false
}

// Match reports whether the build name matches the given pattern.
// An empty pattern or "*" matches every build. A pattern without
// wildcards is a prefix match. Otherwise '*' matches any run of
// characters: "N*" matches nightly builds, "*2004*" matches builds
// containing "2004".
func (b *BuildResults) Match(pattern string) bool {
	return matchName(b.name, pattern)
}

func matchName(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return strings.HasPrefix(name, pattern)
	}
	parts := strings.Split(pattern, "*")
	// Anchored prefix.
	if parts[0] != "" {
		if !strings.HasPrefix(name, parts[0]) {
			return false
		}
		name = name[len(parts[0]):]
	}
	// Anchored suffix.
	last := parts[len(parts)-1]
	if last != "" {
		if !strings.HasSuffix(name, last) {
			return false
		}
		name = name[:len(name)-len(last)]
	}
	// Middle segments in order.
	for _, p := range parts[1 : len(parts)-1] {
		if p == "" {
			continue
		}
		i := strings.Index(name, p)
		if i < 0 {
			return false
		}
		name = name[i+len(p):]
	}
	return true
}

// =============================================================================
// Enrichment annotations
// =============================================================================

// SetFailure records a failure annotation from the results store.
func (b *BuildResults) SetFailure(message string) {
	b.failure = message
}

// Failure returns the failure annotation, or "" if none was recorded.
func (b *BuildResults) Failure() string {
	return b.failure
}

// HasFailure reports whether a failure annotation was recorded.
func (b *BuildResults) HasFailure() bool {
	return b.failure != ""
}

// SetSummary records a summary annotation from the results store.
func (b *BuildResults) SetSummary(comment string, kind int32) {
	b.summaryComment = comment
	b.summaryKind = kind
	b.hasSummary = true
}

// Summary returns the summary annotation and whether one was recorded.
func (b *BuildResults) Summary() (comment string, kind int32, ok bool) {
	return b.summaryComment, b.summaryKind, b.hasSummary
}

// =============================================================================
// Binary record
// =============================================================================

// Record format (big-endian, versionless):
//   - name length (2 bytes) + name bytes
//   - dimension count (4 bytes)
//   - per dimension: dimension id (4 bytes), sample count (4 bytes),
//     then per sample: step (4 bytes) + value (8 bytes, float64 bits)

// EncodeTo writes the build record to the stream.
func (b *BuildResults) EncodeTo(w io.Writer) error {
	if err := writeString(w, b.name); err != nil {
		return fmt.Errorf("write build name: %w", err)
	}
	if err := writeInt32(w, int32(len(b.dims))); err != nil {
		return fmt.Errorf("write dim count: %w", err)
	}
	for _, id := range b.dims {
		s := b.series[id]
		if err := writeInt32(w, id); err != nil {
			return fmt.Errorf("write dim id: %w", err)
		}
		if err := writeInt32(w, int32(len(s))); err != nil {
			return fmt.Errorf("write sample count: %w", err)
		}
		for _, v := range s {
			if err := writeInt32(w, v.step); err != nil {
				return fmt.Errorf("write step: %w", err)
			}
			if err := writeFloat64(w, v.value); err != nil {
				return fmt.Errorf("write value: %w", err)
			}
		}
	}
	return nil
}

// DecodeFrom reads a build record from the stream into this store,
// replacing any prior content. Truncated input is a fatal decode error.
func (b *BuildResults) DecodeFrom(r io.Reader) error {
	name, err := readString(r)
	if err != nil {
		return fmt.Errorf("read build name: %w", err)
	}
	dimCount, err := readInt32(r)
	if err != nil {
		return fmt.Errorf("build %s: read dim count: %w", name, err)
	}
	if dimCount < 0 || dimCount > maxSeriesLen {
		return fmt.Errorf("build %s: dim count %d: %w", name, dimCount, errors.ErrRecordTooLarge)
	}

	b.name = name
	b.dims = b.dims[:0]
	b.series = make(map[int32][]sample, dimCount)

	for i := int32(0); i < dimCount; i++ {
		dimID, err := readInt32(r)
		if err != nil {
			return fmt.Errorf("build %s: read dim id: %w", name, err)
		}
		sampleCount, err := readInt32(r)
		if err != nil {
			return fmt.Errorf("build %s dim %d: read sample count: %w", name, dimID, err)
		}
		if sampleCount < 0 || sampleCount > maxSeriesLen {
			return fmt.Errorf("build %s dim %d: sample count %d: %w", name, dimID, sampleCount, errors.ErrRecordTooLarge)
		}
		s := make([]sample, sampleCount)
		for j := int32(0); j < sampleCount; j++ {
			step, err := readInt32(r)
			if err != nil {
				return fmt.Errorf("build %s dim %d: read step: %w", name, dimID, err)
			}
			value, err := readFloat64(r)
			if err != nil {
				return fmt.Errorf("build %s dim %d: read value: %w", name, dimID, err)
			}
			s[j] = sample{step: step, value: value}
		}
		b.dims = append(b.dims, dimID)
		b.series[dimID] = s
	}
	return nil
}
