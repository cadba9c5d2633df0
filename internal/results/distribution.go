package results

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
)

// sketchAccuracy is the DDSketch relative accuracy used for build value
// distributions (1% error).
const sketchAccuracy = 0.01

// Distribution summarizes the spread of per-build aggregate values for
// one dimension across a set of builds.
type Distribution struct {
	Count int64
	Min   float64
	Max   float64
	P50   float64
	P90   float64
	P95   float64
	P99   float64
}

// HasPercentiles reports whether percentile data is available.
func (d Distribution) HasPercentiles() bool {
	return d.Count > 0
}

// Distribution computes a percentile summary of the per-build values for
// a dimension over the stores matching the given prefixes, or over all
// owned stores when prefixes is empty. Builds whose value the sketch
// cannot accept (no samples, non-positive values) are skipped; Count
// reflects the values actually summarized.
func (c *ConfigResults) Distribution(prefixes []string, dimID int32) Distribution {
	stores := c.builds
	if len(prefixes) > 0 {
		stores = c.BuildsMatchingPrefixes(prefixes)
	}

	sketch, err := ddsketch.NewDefaultDDSketch(sketchAccuracy)
	if err != nil {
		return Distribution{}
	}

	var dist Distribution
	for _, b := range stores {
		v := b.Value(dimID)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if err := sketch.Add(v); err != nil {
			continue
		}
		if dist.Count == 0 || v < dist.Min {
			dist.Min = v
		}
		if dist.Count == 0 || v > dist.Max {
			dist.Max = v
		}
		dist.Count++
	}
	if dist.Count == 0 {
		return dist
	}

	p50, _ := sketch.GetValueAtQuantile(0.50)
	p90, _ := sketch.GetValueAtQuantile(0.90)
	p95, _ := sketch.GetValueAtQuantile(0.95)
	p99, _ := sketch.GetValueAtQuantile(0.99)
	dist.P50 = p50
	dist.P90 = p90
	dist.P95 = p95
	dist.P99 = p99
	return dist
}
