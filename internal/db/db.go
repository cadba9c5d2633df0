// Package db implements the remote results store on DuckDB.
//
// The store holds raw measurement samples plus the failure and summary
// annotations recorded by the test harness. It feeds the in-memory result
// tree (LoadScenario) and implements results.Enricher to annotate the
// resolved current and baseline builds during reconciliation.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/perfres/internal/errors"
	"github.com/xtxerr/perfres/internal/logging"
	"github.com/xtxerr/perfres/internal/results"
)

var log = logging.Component("db")

// Store is a DuckDB-backed results store.
//
// Store methods are safe for concurrent use (database/sql pools
// connections); the result trees it produces are not.
type Store struct {
	db   *sql.DB
	path string

	// seq orders samples; insertion order is chronological build order.
	seq atomic.Int64

	closed atomic.Bool
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS samples (
		seq      BIGINT NOT NULL,
		scenario VARCHAR NOT NULL,
		config   VARCHAR NOT NULL,
		build    VARCHAR NOT NULL,
		dim_id   INTEGER NOT NULL,
		step     INTEGER NOT NULL,
		value    DOUBLE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS failures (
		scenario VARCHAR NOT NULL,
		config   VARCHAR NOT NULL,
		build    VARCHAR NOT NULL,
		message  VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		scenario VARCHAR NOT NULL,
		config   VARCHAR NOT NULL,
		build    VARCHAR NOT NULL,
		comment  VARCHAR NOT NULL,
		kind     INTEGER NOT NULL
	)`,
}

// Open opens a results store at path, creating the schema if needed.
// An empty path opens an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	s := &Store{db: db, path: path}

	var maxSeq sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(seq) FROM samples`).Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("read max seq: %w", err)
	}
	if maxSeq.Valid {
		s.seq.Store(maxSeq.Int64)
	}

	log.Debug("store opened", "path", path, "seq", s.seq.Load())
	return s, nil
}

// Close closes the store.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// =============================================================================
// Ingestion
// =============================================================================

// AddSample records one measurement sample. Samples are ordered by
// insertion; callers append builds in chronological order.
func (s *Store) AddSample(ctx context.Context, scenario, config, build string, dimID, step int32, value float64) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (seq, scenario, config, build, dim_id, step, value) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.seq.Add(1), scenario, config, build, dimID, step, value)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// AddFailure records a failure annotation for a build.
func (s *Store) AddFailure(ctx context.Context, scenario, config, build, message string) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (scenario, config, build, message) VALUES (?, ?, ?, ?)`,
		scenario, config, build, message)
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

// AddSummary records a summary annotation for a build.
func (s *Store) AddSummary(ctx context.Context, scenario, config, build, comment string, kind int32) error {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (scenario, config, build, comment, kind) VALUES (?, ?, ?, ?, ?)`,
		scenario, config, build, comment, kind)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// =============================================================================
// Loading
// =============================================================================

// ListScenarios returns the distinct scenario names in first-seen order.
func (s *Store) ListScenarios(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, errors.ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT scenario FROM samples GROUP BY scenario ORDER BY MIN(seq)`)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// LoadScenario reconstructs the result tree for one scenario, feeding
// samples in insertion order so build discovery order matches
// chronological build order.
func (s *Store) LoadScenario(ctx context.Context, id int32, name string) (*results.ScenarioResults, error) {
	if s.closed.Load() {
		return nil, errors.ErrStoreClosed
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT config, build, dim_id, step, value FROM samples WHERE scenario = ? ORDER BY seq`,
		name)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	scn := results.NewScenarioResults(id, name)
	n := 0
	for rows.Next() {
		var (
			config, build string
			dimID, step   int32
			value         float64
		)
		if err := rows.Scan(&config, &build, &dimID, &step, &value); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		scn.SetValue(config, build, dimID, step, value)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("scenario %q: %w", name, errors.ErrScenarioNotFound)
	}

	log.Debug("scenario loaded", "scenario", name, "samples", n, "configs", scn.Size())
	return scn, nil
}

// LoadAll reconstructs result trees for every scenario in the store.
func (s *Store) LoadAll(ctx context.Context) ([]*results.ScenarioResults, error) {
	names, err := s.ListScenarios(ctx)
	if err != nil {
		return nil, err
	}
	scenarios := make([]*results.ScenarioResults, 0, len(names))
	for i, name := range names {
		scn, err := s.LoadScenario(ctx, int32(i), name)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, scn)
	}
	return scenarios, nil
}

// =============================================================================
// Enrichment (results.Enricher)
// =============================================================================

// QueryScenarioFailures annotates the resolved current and baseline builds
// with the failure messages recorded for them, if any.
func (s *Store) QueryScenarioFailures(ctx context.Context, scn results.ScenarioContext, configName string, current, baseline *results.BuildResults) error {
	for _, b := range []*results.BuildResults{current, baseline} {
		if b == nil {
			continue
		}
		var message string
		err := s.db.QueryRowContext(ctx,
			`SELECT message FROM failures WHERE scenario = ? AND config = ? AND build = ? LIMIT 1`,
			scn.ScenarioName, configName, b.Name()).Scan(&message)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("query failures: %w", err)
		}
		b.SetFailure(message)
	}
	return nil
}

// QueryScenarioSummaries annotates the resolved current and baseline
// builds with the summaries recorded for them, if any.
func (s *Store) QueryScenarioSummaries(ctx context.Context, scn results.ScenarioContext, configName string, current, baseline *results.BuildResults) error {
	for _, b := range []*results.BuildResults{current, baseline} {
		if b == nil {
			continue
		}
		var (
			comment string
			kind    int32
		)
		err := s.db.QueryRowContext(ctx,
			`SELECT comment, kind FROM summaries WHERE scenario = ? AND config = ? AND build = ? LIMIT 1`,
			scn.ScenarioName, configName, b.Name()).Scan(&comment, &kind)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("query summaries: %w", err)
		}
		b.SetSummary(comment, kind)
	}
	return nil
}

// compile-time interface check
var _ results.Enricher = (*Store)(nil)
