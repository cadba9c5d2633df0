// Package config provides configuration defaults and shared constants
// for the perfres application.
//
// This package defines all configurable constants with documented defaults.
// Users can override the configurable values via perfres.yaml or CLI flags.
package config

// =============================================================================
// Build Naming
// =============================================================================

const (
	// NightlyBuildPrefix is the reserved marker prefix for nightly builds.
	// Build names starting with this prefix are considered nightly builds
	// by ConfigResults.LastNightlyBuildNames.
	NightlyBuildPrefix = "N"

	// IntegrationBuildPrefix is the conventional marker prefix for
	// integration builds.
	IntegrationBuildPrefix = "I"
)

// DefaultMilestonePrefixes are the build name prefixes used for cross-build
// statistics when the run configuration does not specify its own.
var DefaultMilestonePrefixes = []string{NightlyBuildPrefix, IntegrationBuildPrefix}

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultDBPath is the default DuckDB results store path.
	// An empty path opens an in-memory database.
	// Override via config: db
	DefaultDBPath = "results.duckdb"

	// DefaultArchiveDir is the default directory for local result caches.
	// Override via config: archive_dir
	DefaultArchiveDir = "archive"

	// MaxRecordSize limits the size of a single archived scenario record.
	// 64 MiB is far beyond any realistic result set and guards against
	// allocating from a corrupt length prefix.
	MaxRecordSize = 64 * 1024 * 1024

	// MaxBuildsPerConfig caps the build count read from a configuration
	// record. Guards decoding against corrupt count fields.
	MaxBuildsPerConfig = 1 << 20
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportCompression is the parquet compression codec used for
	// statistics exports.
	// Override via config: export.compression
	DefaultExportCompression = "zstd"
)
