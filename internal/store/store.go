// Package store persists build output in an embedded SQLite database.
// Single-writer by design: concurrent builds against the same file are
// unsupported, and only a warning is surfaced when one is suspected.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mhollis/airscore/internal/model"
)

// SchemaVersion is the schema this build of the code writes and reads.
const SchemaVersion = 1

// StorageError wraps any database-layer failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Store handles all database operations.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and verifies
// the schema version.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, storageErr("mkdir", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, storageErr("open", err)
	}

	// Serialize access through one connection; the build is
	// single-writer and sequential anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema and checks the version record.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS feature_scores (
		icao TEXT NOT NULL,
		feature TEXT NOT NULL,
		score REAL NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (icao, feature)
	);

	CREATE TABLE IF NOT EXISTS persona_scores (
		icao TEXT NOT NULL,
		persona TEXT NOT NULL,
		score REAL NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (icao, persona)
	);

	CREATE TABLE IF NOT EXISTS review_summary (
		icao TEXT PRIMARY KEY,
		review_count INTEGER NOT NULL,
		rating_count INTEGER NOT NULL,
		rating_mean REAL NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tag_aggregates (
		icao TEXT NOT NULL,
		aspect TEXT NOT NULL,
		extraction_count INTEGER NOT NULL,
		weight_total REAL NOT NULL,
		mean_value REAL NOT NULL,
		PRIMARY KEY (icao, aspect)
	);

	CREATE TABLE IF NOT EXISTS fee_bands (
		icao TEXT NOT NULL,
		band TEXT NOT NULL,
		fee_count INTEGER NOT NULL,
		fee_mean REAL NOT NULL,
		PRIMARY KEY (icao, band)
	);

	CREATE TABLE IF NOT EXISTS notification_rules (
		icao TEXT NOT NULL,
		kind TEXT NOT NULL,
		rule_text TEXT NOT NULL,
		notice_hours REAL NOT NULL,
		processed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rule_summary (
		icao TEXT PRIMARY KEY,
		ppr_required BOOLEAN NOT NULL,
		customs_required BOOLEAN NOT NULL,
		max_notice_hours REAL NOT NULL,
		summary TEXT NOT NULL,
		hassle_contribution REAL NOT NULL,
		processed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS global_priors (
		feature TEXT PRIMARY KEY,
		prior_mean REAL NOT NULL,
		pseudo_count REAL NOT NULL,
		computed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS review_state (
		icao TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		review_count INTEGER NOT NULL,
		last_processed DATETIME NOT NULL,
		skip_until_forced BOOLEAN NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_notification_rules_icao ON notification_rules(icao);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return storageErr("migrate", err)
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		_, err = s.db.Exec(`INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)`,
			strconv.Itoa(SchemaVersion))
		if err != nil {
			return storageErr("write schema version", err)
		}
		return nil
	case err != nil:
		return storageErr("read schema version", err)
	}

	version, err := strconv.Atoi(value)
	if err != nil || version != SchemaVersion {
		return storageErr("schema version",
			fmt.Errorf("database has schema %q, this build requires %d", value, SchemaVersion))
	}

	return nil
}

// Checkpoint returns the build checkpoint, or a zero checkpoint when no
// build has completed an airport yet.
func (s *Store) Checkpoint() (model.BuildCheckpoint, error) {
	var cp model.BuildCheckpoint
	err := s.db.QueryRow(`SELECT value, updated_at FROM checkpoints WHERE name = 'build'`).
		Scan(&cp.LastSuccessfulICAO, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.BuildCheckpoint{}, nil
	}
	if err != nil {
		return model.BuildCheckpoint{}, storageErr("read checkpoint", err)
	}
	return cp, nil
}

// ResetCheckpoint clears the build checkpoint (explicit operator action).
func (s *Store) ResetCheckpoint() error {
	if _, err := s.db.Exec(`DELETE FROM checkpoints WHERE name = 'build'`); err != nil {
		return storageErr("reset checkpoint", err)
	}
	return nil
}

// AIPCursor returns the timestamp of the last processed AIP input; zero
// when the AIP pass has never run.
func (s *Store) AIPCursor() (time.Time, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM checkpoints WHERE name = 'aip'`).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, storageErr("read aip cursor", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, storageErr("parse aip cursor", err)
	}
	return ts, nil
}

// SetAIPCursor advances the AIP incremental cursor.
func (s *Store) SetAIPCursor(ts time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO checkpoints (name, value, updated_at) VALUES ('aip', ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, ts.UTC().Format(time.RFC3339Nano), time.Now().UTC())
	if err != nil {
		return storageErr("set aip cursor", err)
	}
	return nil
}

// SaveGlobalPriors persists the priors used by this build for
// reproducibility and debugging.
func (s *Store) SaveGlobalPriors(priors model.GlobalPriors) error {
	now := time.Now().UTC()
	for _, f := range model.AllFeatures {
		prior, ok := priors[f]
		if !ok {
			continue
		}
		_, err := s.db.Exec(`
			INSERT INTO global_priors (feature, prior_mean, pseudo_count, computed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(feature) DO UPDATE SET
				prior_mean = excluded.prior_mean,
				pseudo_count = excluded.pseudo_count,
				computed_at = excluded.computed_at
		`, string(f), prior.Mean, prior.K, now)
		if err != nil {
			return storageErr("save priors", err)
		}
	}
	return nil
}

// GlobalPriors loads the persisted priors; empty when none were saved.
func (s *Store) GlobalPriors() (model.GlobalPriors, error) {
	rows, err := s.db.Query(`SELECT feature, prior_mean, pseudo_count FROM global_priors`)
	if err != nil {
		return nil, storageErr("load priors", err)
	}
	defer func() { _ = rows.Close() }()

	priors := make(model.GlobalPriors)
	for rows.Next() {
		var feature string
		var prior model.Prior
		if err := rows.Scan(&feature, &prior.Mean, &prior.K); err != nil {
			return nil, storageErr("scan prior", err)
		}
		priors[model.Feature(feature)] = prior
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate priors", err)
	}

	return priors, nil
}

// SkippedAirports lists airports marked skip-until-forced.
func (s *Store) SkippedAirports() ([]string, error) {
	rows, err := s.db.Query(`SELECT icao FROM review_state WHERE skip_until_forced ORDER BY icao`)
	if err != nil {
		return nil, storageErr("load skipped", err)
	}
	defer func() { _ = rows.Close() }()

	var icaos []string
	for rows.Next() {
		var icao string
		if err := rows.Scan(&icao); err != nil {
			return nil, storageErr("scan skipped", err)
		}
		icaos = append(icaos, icao)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate skipped", err)
	}

	return icaos, nil
}

// FeatureScores loads the persisted scores for one airport; nil when
// the airport has never been scored.
func (s *Store) FeatureScores(icao string) (model.FeatureScores, error) {
	rows, err := s.db.Query(`SELECT feature, score FROM feature_scores WHERE icao = ?`, icao)
	if err != nil {
		return nil, storageErr("load feature scores", err)
	}
	defer func() { _ = rows.Close() }()

	scores := make(model.FeatureScores)
	for rows.Next() {
		var feature string
		var score float64
		if err := rows.Scan(&feature, &score); err != nil {
			return nil, storageErr("scan feature score", err)
		}
		scores[model.Feature(feature)] = score
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate feature scores", err)
	}

	if len(scores) == 0 {
		return nil, nil
	}
	return scores, nil
}

// PersonaScores loads the persisted persona scores for one airport.
func (s *Store) PersonaScores(icao string) (model.PersonaScores, error) {
	rows, err := s.db.Query(`SELECT persona, score FROM persona_scores WHERE icao = ?`, icao)
	if err != nil {
		return nil, storageErr("load persona scores", err)
	}
	defer func() { _ = rows.Close() }()

	scores := make(model.PersonaScores)
	for rows.Next() {
		var persona string
		var score float64
		if err := rows.Scan(&persona, &score); err != nil {
			return nil, storageErr("scan persona score", err)
		}
		scores[persona] = score
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate persona scores", err)
	}

	return scores, nil
}

// RuleSummary loads the persisted AIP rule summary and hassle
// contribution for one airport; ok is false when none exists.
func (s *Store) RuleSummary(icao string) (model.RuleSummary, float64, bool, error) {
	var summary model.RuleSummary
	var contribution float64
	err := s.db.QueryRow(`
		SELECT icao, ppr_required, customs_required, max_notice_hours, summary, hassle_contribution, processed_at
		FROM rule_summary WHERE icao = ?
	`, icao).Scan(&summary.ICAO, &summary.PPRRequired, &summary.CustomsRequired,
		&summary.MaxNoticeHours, &summary.Summary, &contribution, &summary.ProcessedAt)
	if err == sql.ErrNoRows {
		return model.RuleSummary{}, 0, false, nil
	}
	if err != nil {
		return model.RuleSummary{}, 0, false, storageErr("load rule summary", err)
	}
	return summary, contribution, true, nil
}

// TagAggregates loads the persisted per-aspect aggregates for one
// airport, sorted by aspect.
func (s *Store) TagAggregates(icao string) ([]model.TagAggregate, error) {
	rows, err := s.db.Query(`
		SELECT aspect, extraction_count, weight_total, mean_value
		FROM tag_aggregates WHERE icao = ? ORDER BY aspect
	`, icao)
	if err != nil {
		return nil, storageErr("load tag aggregates", err)
	}
	defer func() { _ = rows.Close() }()

	var aggregates []model.TagAggregate
	for rows.Next() {
		var agg model.TagAggregate
		if err := rows.Scan(&agg.Aspect, &agg.Count, &agg.WeightTotal, &agg.MeanValue); err != nil {
			return nil, storageErr("scan tag aggregate", err)
		}
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate tag aggregates", err)
	}

	return aggregates, nil
}

// FeeBands loads the per-band fee aggregates for one airport; empty when
// the airport has never been summarized.
func (s *Store) FeeBands(icao string) (map[model.FeeBand]model.BandAggregate, error) {
	rows, err := s.db.Query(`SELECT band, fee_count, fee_mean FROM fee_bands WHERE icao = ?`, icao)
	if err != nil {
		return nil, storageErr("load fee bands", err)
	}
	defer func() { _ = rows.Close() }()

	bands := make(map[model.FeeBand]model.BandAggregate)
	for rows.Next() {
		var band string
		var agg model.BandAggregate
		if err := rows.Scan(&band, &agg.Count, &agg.FeeMean); err != nil {
			return nil, storageErr("scan fee band", err)
		}
		bands[model.FeeBand(band)] = agg
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate fee bands", err)
	}

	return bands, nil
}

// MarkBuildActive records that a build is running and reports whether
// another marker was already present. Concurrent builds are
// unsupported; the caller only warns, there is no real lock.
func (s *Store) MarkBuildActive() (bool, error) {
	var existing string
	err := s.db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'active_build'`).Scan(&existing)
	alreadyActive := err == nil
	if err != nil && err != sql.ErrNoRows {
		return false, storageErr("read build marker", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO schema_meta (key, value) VALUES ('active_build', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, fmt.Sprintf("pid %d since %s", os.Getpid(), time.Now().UTC().Format(time.RFC3339)))
	if err != nil {
		return false, storageErr("write build marker", err)
	}

	return alreadyActive, nil
}

// ClearBuildActive removes the active-build marker.
func (s *Store) ClearBuildActive() error {
	if _, err := s.db.Exec(`DELETE FROM schema_meta WHERE key = 'active_build'`); err != nil {
		return storageErr("clear build marker", err)
	}
	return nil
}

// BeginAirport starts the transaction spanning every output table for
// one airport.
func (s *Store) BeginAirport(ctx context.Context, icao string) (*AirportTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin", err)
	}
	return &AirportTx{tx: tx, icao: icao, now: time.Now().UTC()}, nil
}
