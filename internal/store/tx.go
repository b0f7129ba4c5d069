package store

import (
	"database/sql"
	"time"

	"github.com/mhollis/airscore/internal/model"
)

// AirportTx is the transaction for one airport's outputs. All writes
// for the airport go through it, including the checkpoint advance, so a
// crash can never separate the data from the checkpoint that covers it.
type AirportTx struct {
	tx   *sql.Tx
	icao string
	now  time.Time
}

// Commit commits the airport's writes.
func (t *AirportTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return storageErr("commit "+t.icao, err)
	}
	return nil
}

// Rollback discards the airport's writes entirely; no partially written
// airport state is ever observable.
func (t *AirportTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return storageErr("rollback "+t.icao, err)
	}
	return nil
}

// SaveFeatureScores writes all eight scores. The invariant that an
// airport has either all eight scores or none is enforced here.
func (t *AirportTx) SaveFeatureScores(scores model.FeatureScores) error {
	if !scores.Complete() {
		return storageErr("feature scores "+t.icao, errIncompleteScores)
	}

	for _, f := range model.AllFeatures {
		_, err := t.tx.Exec(`
			INSERT INTO feature_scores (icao, feature, score, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(icao, feature) DO UPDATE SET
				score = excluded.score,
				updated_at = excluded.updated_at
		`, t.icao, string(f), scores[f], t.now)
		if err != nil {
			return storageErr("save feature score", err)
		}
	}
	return nil
}

// SavePersonaScores writes the persona scores for the airport.
func (t *AirportTx) SavePersonaScores(scores model.PersonaScores) error {
	for persona, score := range scores {
		_, err := t.tx.Exec(`
			INSERT INTO persona_scores (icao, persona, score, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(icao, persona) DO UPDATE SET
				score = excluded.score,
				updated_at = excluded.updated_at
		`, t.icao, persona, score, t.now)
		if err != nil {
			return storageErr("save persona score", err)
		}
	}
	return nil
}

// SaveSummary writes the review summary and the six fee bands. Bands
// with no fees are written with zero counts so the table always holds
// the full fixed set per airport.
func (t *AirportTx) SaveSummary(stats model.AirportStats) error {
	_, err := t.tx.Exec(`
		INSERT INTO review_summary (icao, review_count, rating_count, rating_mean, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(icao) DO UPDATE SET
			review_count = excluded.review_count,
			rating_count = excluded.rating_count,
			rating_mean = excluded.rating_mean,
			updated_at = excluded.updated_at
	`, t.icao, stats.ReviewCount, stats.RatingCount, stats.RatingMean, t.now)
	if err != nil {
		return storageErr("save review summary", err)
	}

	for _, band := range model.AllFeeBands {
		agg := stats.FeeBands[band]
		_, err := t.tx.Exec(`
			INSERT INTO fee_bands (icao, band, fee_count, fee_mean)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(icao, band) DO UPDATE SET
				fee_count = excluded.fee_count,
				fee_mean = excluded.fee_mean
		`, t.icao, string(band), agg.Count, agg.FeeMean)
		if err != nil {
			return storageErr("save fee band", err)
		}
	}
	return nil
}

// SaveTagAggregates replaces the airport's per-aspect aggregates.
func (t *AirportTx) SaveTagAggregates(aggregates []model.TagAggregate) error {
	if _, err := t.tx.Exec(`DELETE FROM tag_aggregates WHERE icao = ?`, t.icao); err != nil {
		return storageErr("clear tag aggregates", err)
	}

	for _, agg := range aggregates {
		_, err := t.tx.Exec(`
			INSERT INTO tag_aggregates (icao, aspect, extraction_count, weight_total, mean_value)
			VALUES (?, ?, ?, ?, ?)
		`, t.icao, agg.Aspect, agg.Count, agg.WeightTotal, agg.MeanValue)
		if err != nil {
			return storageErr("save tag aggregate", err)
		}
	}
	return nil
}

// SaveRules replaces the airport's notification rules and rule summary.
func (t *AirportTx) SaveRules(rules model.ParsedAIPRules, summary model.RuleSummary, hassleContribution float64) error {
	if _, err := t.tx.Exec(`DELETE FROM notification_rules WHERE icao = ?`, t.icao); err != nil {
		return storageErr("clear rules", err)
	}

	for _, rule := range rules.Rules {
		_, err := t.tx.Exec(`
			INSERT INTO notification_rules (icao, kind, rule_text, notice_hours, processed_at)
			VALUES (?, ?, ?, ?, ?)
		`, t.icao, string(rule.Kind), rule.Text, rule.NoticeHours, rules.ProcessedAt)
		if err != nil {
			return storageErr("save rule", err)
		}
	}

	_, err := t.tx.Exec(`
		INSERT INTO rule_summary (icao, ppr_required, customs_required, max_notice_hours, summary, hassle_contribution, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(icao) DO UPDATE SET
			ppr_required = excluded.ppr_required,
			customs_required = excluded.customs_required,
			max_notice_hours = excluded.max_notice_hours,
			summary = excluded.summary,
			hassle_contribution = excluded.hassle_contribution,
			processed_at = excluded.processed_at
	`, t.icao, summary.PPRRequired, summary.CustomsRequired, summary.MaxNoticeHours,
		summary.Summary, hassleContribution, summary.ProcessedAt)
	if err != nil {
		return storageErr("save rule summary", err)
	}

	return nil
}

// SaveReviewState records the change-detection state for the airport
// and clears any skip marker.
func (t *AirportTx) SaveReviewState(state ReviewState) error {
	_, err := t.tx.Exec(`
		INSERT INTO review_state (icao, content_hash, review_count, last_processed, skip_until_forced)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT(icao) DO UPDATE SET
			content_hash = excluded.content_hash,
			review_count = excluded.review_count,
			last_processed = excluded.last_processed,
			skip_until_forced = 0
	`, t.icao, state.ContentHash, state.ReviewCount, state.LastProcessed)
	if err != nil {
		return storageErr("save review state", err)
	}
	return nil
}

// MarkSkipped sets the skip-until-forced marker outside the data
// transaction path (used for FailureModeSkip after rollback).
func (s *Store) MarkSkipped(icao string) error {
	_, err := s.db.Exec(`
		INSERT INTO review_state (icao, content_hash, review_count, last_processed, skip_until_forced)
		VALUES (?, '', 0, ?, 1)
		ON CONFLICT(icao) DO UPDATE SET skip_until_forced = 1
	`, icao, time.Now().UTC())
	if err != nil {
		return storageErr("mark skipped", err)
	}
	return nil
}

// AdvanceCheckpoint moves the build checkpoint to this airport, inside
// the same transaction as its data.
func (t *AirportTx) AdvanceCheckpoint() error {
	_, err := t.tx.Exec(`
		INSERT INTO checkpoints (name, value, updated_at) VALUES ('build', ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, t.icao, t.now)
	if err != nil {
		return storageErr("advance checkpoint", err)
	}
	return nil
}
