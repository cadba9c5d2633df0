// Package results implements the per-configuration result aggregation and
// statistics engine.
//
// Raw measurement samples are appended per (configuration, build,
// dimension, step) as they are discovered, either from the results store
// or from a local binary cache. A reconciliation step (Update) cleans the
// stored values, fixes the baseline and current builds by exact name match
// with positional fallback, and triggers annotation enrichment. Report
// consumers then read deviations and cross-build statistics.
//
// The engine is single-threaded by contract: no internal locking, and all
// mutation must complete before reads.
package results
