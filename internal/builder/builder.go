// Package builder orchestrates the end-to-end per-airport pipeline:
// review loading, extraction, aggregation, persona scoring, and
// transactional persistence with checkpoint-based resume.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mhollis/airscore/internal/aip"
	"github.com/mhollis/airscore/internal/cache"
	"github.com/mhollis/airscore/internal/extract"
	"github.com/mhollis/airscore/internal/feature"
	"github.com/mhollis/airscore/internal/model"
	"github.com/mhollis/airscore/internal/ontology"
	"github.com/mhollis/airscore/internal/source"
	"github.com/mhollis/airscore/internal/store"
)

// ErrAborted signals a FAIL_FAST abort; the checkpoint stays at the
// last successful airport.
var ErrAborted = errors.New("build aborted")

// BuildError wraps one airport's failure with its pipeline step.
type BuildError struct {
	ICAO string
	Step model.BuildStep
	Err  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.ICAO, e.Step, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Config selects the working set and failure semantics for one build.
type Config struct {
	// ICAOs is an explicit allow-list; empty means all airports with
	// reviews.
	ICAOs []string

	// FullRebuild processes every airport and clears skip markers;
	// change detection is bypassed.
	FullRebuild bool

	// ResumeFromCheckpoint skips airports at or before the stored
	// checkpoint.
	ResumeFromCheckpoint bool

	// ResumeFrom skips airports lexicographically at or before this
	// ICAO; overrides the stored checkpoint.
	ResumeFrom string

	// FailureMode controls per-airport failure handling.
	FailureMode model.FailureMode

	// FailureThreshold is the failure count past which CONTINUE/SKIP
	// builds are treated as failed.
	FailureThreshold int

	// ProcessAIP enables the independent AIP incremental pass.
	ProcessAIP bool

	// PriorPseudoCount is the pseudo-count used when computing global
	// priors for Bayesian smoothing.
	PriorPseudoCount float64

	// Aggregation is the policy threaded through every aggregation
	// call. A zero AsOf is set to the build start time.
	Aggregation model.AggregationContext
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		FailureMode:      model.FailureContinue,
		FailureThreshold: 0,
		PriorPseudoCount: 5,
		Aggregation:      model.DefaultAggregationContext(time.Time{}),
	}
}

// Builder drives the build. One build run is single-threaded and
// sequential over airports; at most one airport is ever in flight and
// uncommitted, which is what makes checkpoint resume correct.
type Builder struct {
	source    source.Source
	extractor extract.Extractor
	mapper    *feature.Mapper
	onto      *ontology.Ontology
	personas  *ontology.Personas
	store     *store.Store
	aipParser aip.Parser
	aipSource aip.DocumentSource
	fees      source.FeeFetcher
	fetcher   *cache.Fetcher

	verbose bool
	errOut  io.Writer
}

// Option configures optional collaborators.
type Option func(*Builder)

// WithAIP wires the AIP rule collaborator and document source.
func WithAIP(parser aip.Parser, docs aip.DocumentSource) Option {
	return func(b *Builder) {
		b.aipParser = parser
		b.aipSource = docs
	}
}

// WithFees wires an optional landing-fee fetcher.
func WithFees(fees source.FeeFetcher) Option {
	return func(b *Builder) { b.fees = fees }
}

// WithCacheMetrics wires the cache fetcher whose hit/miss counts go
// into the build metrics.
func WithCacheMetrics(fetcher *cache.Fetcher) Option {
	return func(b *Builder) { b.fetcher = fetcher }
}

// WithVerbose enables progress output to w.
func WithVerbose(w io.Writer) Option {
	return func(b *Builder) {
		b.verbose = true
		b.errOut = w
	}
}

// New creates a builder over its collaborators.
func New(src source.Source, extractor extract.Extractor, onto *ontology.Ontology, personas *ontology.Personas, st *store.Store, opts ...Option) *Builder {
	b := &Builder{
		source:    src,
		extractor: extractor,
		mapper:    feature.NewMapper(onto),
		onto:      onto,
		personas:  personas,
		store:     st,
		errOut:    io.Discard,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) logf(format string, args ...interface{}) {
	if b.verbose {
		fmt.Fprintf(b.errOut, format+"\n", args...)
	}
}

// Run executes one build. Configuration-class errors (ontology,
// persona) fail immediately; per-airport errors follow the configured
// failure mode. The returned BuildResult is emitted regardless of
// outcome.
func (b *Builder) Run(ctx context.Context, cfg Config) (*model.BuildResult, error) {
	started := time.Now()
	if cfg.Aggregation.AsOf.IsZero() {
		cfg.Aggregation.AsOf = started.UTC()
	}
	if !cfg.FailureMode.Valid() {
		return nil, fmt.Errorf("unknown failure mode %q", cfg.FailureMode)
	}
	if b.extractor == nil {
		return nil, fmt.Errorf("no extractor configured")
	}

	// Configuration validation happens before any I/O-heavy work so
	// misconfiguration fails fast.
	if err := b.onto.Validate(); err != nil {
		return nil, err
	}
	if err := b.personas.Validate(b.onto); err != nil {
		return nil, err
	}

	if alreadyActive, err := b.store.MarkBuildActive(); err != nil {
		return nil, err
	} else if alreadyActive {
		fmt.Fprintln(b.errOut, "warning: another build appears active against this store; concurrent builds are unsupported")
	}
	defer func() { _ = b.store.ClearBuildActive() }()

	result := &model.BuildResult{StartedAt: started.UTC()}

	byICAO, fetchFailures, err := b.loadReviews(ctx, cfg)
	if err != nil {
		return nil, err
	}
	for _, f := range fetchFailures {
		fmt.Fprintf(b.errOut, "warning: source %s failed: %s\n", f.Source, f.Err)
	}

	icaos, err := b.workingSet(cfg, byICAO, result)
	if err != nil {
		return nil, err
	}
	b.logf("working set: %d airports", len(icaos))

	extracted := make(map[string][]model.ReviewExtraction, len(icaos))

	if cfg.Aggregation.EnableSmoothing && len(cfg.Aggregation.Priors) == 0 {
		priors, err := b.computePriors(ctx, cfg, icaos, byICAO, extracted, result)
		if err != nil {
			return nil, err
		}
		cfg.Aggregation.Priors = priors
	}

	abort := false
	for _, icao := range icaos {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome := b.processAirport(ctx, cfg, icao, byICAO[icao], extracted, result)
		result.Outcomes = append(result.Outcomes, outcome)

		switch {
		case outcome.Step == model.StepDone:
			result.Metrics.Processed++
			result.Checkpoint = icao
		default:
			result.Metrics.Failed++
			if cfg.FailureMode == model.FailureFailFast {
				abort = true
			}
			if cfg.FailureMode == model.FailureSkip {
				if err := b.store.MarkSkipped(icao); err != nil {
					fmt.Fprintf(b.errOut, "warning: mark %s skipped: %v\n", icao, err)
				}
			}
		}
		if abort {
			break
		}
	}

	if !abort && cfg.ProcessAIP && b.aipParser != nil && b.aipSource != nil {
		if err := b.processAIPRules(ctx, cfg, result); err != nil {
			return result, err
		}
	}

	b.finishResult(result, started)
	if abort {
		return result, fmt.Errorf("%w: %s failed under fail_fast", ErrAborted, result.Outcomes[len(result.Outcomes)-1].ICAO)
	}
	return result, nil
}

// loadReviews fetches and groups the raw reviews.
func (b *Builder) loadReviews(ctx context.Context, cfg Config) (map[string][]model.RawReview, []source.SourceFailure, error) {
	filter := model.ReviewFilter{ICAOs: cfg.ICAOs}

	var reviews []model.RawReview
	var failures []source.SourceFailure
	if composite, ok := b.source.(*source.Composite); ok {
		var report *source.FetchReport
		reviews, report = composite.FetchAll(ctx, filter)
		failures = report.Failures
	} else {
		var err error
		reviews, err = b.source.Fetch(ctx, filter)
		if err != nil {
			return nil, nil, fmt.Errorf("load reviews: %w", err)
		}
	}

	byICAO := make(map[string][]model.RawReview)
	for _, r := range reviews {
		byICAO[r.ICAO] = append(byICAO[r.ICAO], r)
	}
	return byICAO, failures, nil
}

// workingSet filters and orders the airports to process. ICAOs are
// sorted lexicographically for deterministic ordering across runs, a
// prerequisite for resume correctness.
func (b *Builder) workingSet(cfg Config, byICAO map[string][]model.RawReview, result *model.BuildResult) ([]string, error) {
	all := make([]string, 0, len(byICAO))
	for icao := range byICAO {
		all = append(all, icao)
	}
	sort.Strings(all)

	if cfg.FullRebuild {
		if err := b.store.ClearSkipMarkers(); err != nil {
			return nil, err
		}
	}

	resumeAfter := cfg.ResumeFrom
	if resumeAfter == "" && cfg.ResumeFromCheckpoint {
		cp, err := b.store.Checkpoint()
		if err != nil {
			return nil, err
		}
		resumeAfter = cp.LastSuccessfulICAO
	}

	var icaos []string
	for _, icao := range all {
		if resumeAfter != "" && icao <= resumeAfter {
			continue
		}

		if !cfg.FullRebuild {
			skipped, err := b.store.IsSkipped(icao)
			if err != nil {
				return nil, err
			}
			if skipped {
				result.Metrics.Skipped++
				result.Outcomes = append(result.Outcomes, model.AirportOutcome{
					ICAO: icao, Step: model.StepPending, Skipped: true,
				})
				continue
			}

			changed, err := b.store.HasChanges(icao, byICAO[icao])
			if err != nil {
				return nil, err
			}
			if !changed {
				result.Metrics.Skipped++
				result.Outcomes = append(result.Outcomes, model.AirportOutcome{
					ICAO: icao, Step: model.StepDone, Skipped: true,
				})
				continue
			}
		}

		icaos = append(icaos, icao)
	}

	return icaos, nil
}

// extractAirport runs (and memoizes) extraction for one airport.
func (b *Builder) extractAirport(ctx context.Context, icao string, reviews []model.RawReview, extracted map[string][]model.ReviewExtraction, result *model.BuildResult) ([]model.ReviewExtraction, error) {
	if ex, ok := extracted[icao]; ok {
		return ex, nil
	}

	extractions, report := b.extractor.ExtractBatch(ctx, reviews)
	for _, failure := range report.Failures {
		fmt.Fprintf(b.errOut, "warning: %v\n", failure)
	}
	// A fully failed batch with reviews present is an airport failure.
	if len(extractions) == 0 && len(report.Failures) > 0 {
		return nil, report.Failures[0]
	}

	extracted[icao] = extractions
	result.Metrics.Extractions += len(extractions)
	return extractions, nil
}

// computePriors runs the extraction pre-pass and computes global
// priors, persisting them for reproducibility. Extractions are
// memoized so the per-airport pipeline does not extract twice.
//
// Incremental runs see only the changed airports, whose local means are
// not representative of the whole corpus; stored priors from an earlier
// run take precedence there. A full rebuild always recomputes.
func (b *Builder) computePriors(ctx context.Context, cfg Config, icaos []string, byICAO map[string][]model.RawReview, extracted map[string][]model.ReviewExtraction, result *model.BuildResult) (model.GlobalPriors, error) {
	if !cfg.FullRebuild {
		stored, err := b.store.GlobalPriors()
		if err != nil {
			return nil, err
		}
		if len(stored) > 0 {
			b.logf("reusing stored global priors")
			return stored, nil
		}
	}

	b.logf("computing global priors over %d airports", len(icaos))

	var all []model.ReviewExtraction
	for _, icao := range icaos {
		extractions, err := b.extractAirport(ctx, icao, byICAO[icao], extracted, result)
		if err != nil {
			// Prior computation tolerates per-airport failures; the
			// airport will fail properly in its own pipeline step.
			continue
		}
		all = append(all, extractions...)
	}

	priors := b.mapper.ComputePriors(all, cfg.PriorPseudoCount)
	if err := b.store.SaveGlobalPriors(priors); err != nil {
		return nil, err
	}
	return priors, nil
}

// processAirport runs the full per-airport pipeline inside one storage
// transaction. Commit only on full success; on failure the airport's
// writes are rolled back entirely.
func (b *Builder) processAirport(ctx context.Context, cfg Config, icao string, reviews []model.RawReview, extracted map[string][]model.ReviewExtraction, result *model.BuildResult) model.AirportOutcome {
	stepStart := time.Now()
	outcome := model.AirportOutcome{ICAO: icao, Step: model.StepPending}
	fail := func(step model.BuildStep, err error) model.AirportOutcome {
		buildErr := &BuildError{ICAO: icao, Step: step, Err: err}
		fmt.Fprintf(b.errOut, "error: %v\n", buildErr)
		outcome.Step = model.StepFailed
		outcome.ErrorKind = errorKind(err)
		outcome.Duration = time.Since(stepStart)
		return outcome
	}

	b.logf("processing %s (%d reviews)", icao, len(reviews))
	result.Metrics.Reviews += len(reviews)

	// EXTRACTING
	extractions, err := b.extractAirport(ctx, icao, reviews, extracted, result)
	if err != nil {
		return fail(model.StepExtracting, err)
	}

	// AGGREGATING
	aggregates := feature.TagAggregates(extractions)
	var fees []model.FeeRecord
	if b.fees != nil {
		fees, err = b.fees.FetchFees(ctx, icao)
		if err != nil {
			return fail(model.StepAggregating, err)
		}
	}
	stats := feature.Stats(icao, reviews, fees)

	// MAPPING
	aipHassle, err := b.storedAIPHassle(icao)
	if err != nil {
		return fail(model.StepMapping, err)
	}
	scores, err := b.mapper.Scores(icao, extractions, aipHassle, cfg.Aggregation)
	if err != nil {
		return fail(model.StepMapping, err)
	}

	// SCORING
	personaScores, err := b.personas.ScoreAll(scores)
	if err != nil {
		return fail(model.StepScoring, err)
	}

	// PERSISTING
	tx, err := b.store.BeginAirport(ctx, icao)
	if err != nil {
		return fail(model.StepPersisting, err)
	}
	err = func() error {
		if err := tx.SaveFeatureScores(scores); err != nil {
			return err
		}
		if err := tx.SavePersonaScores(personaScores); err != nil {
			return err
		}
		if err := tx.SaveSummary(stats); err != nil {
			return err
		}
		if err := tx.SaveTagAggregates(aggregates); err != nil {
			return err
		}
		if err := tx.SaveReviewState(store.NewReviewState(icao, reviews)); err != nil {
			return err
		}
		return tx.AdvanceCheckpoint()
	}()
	if err != nil {
		_ = tx.Rollback()
		return fail(model.StepPersisting, err)
	}
	if err := tx.Commit(); err != nil {
		return fail(model.StepPersisting, err)
	}

	outcome.Step = model.StepDone
	outcome.Duration = time.Since(stepStart)
	return outcome
}

// storedAIPHassle returns the persisted AIP hassle contribution for an
// airport, nil when no AIP data exists.
func (b *Builder) storedAIPHassle(icao string) (*float64, error) {
	_, contribution, ok, err := b.store.RuleSummary(icao)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &contribution, nil
}

// processAIPRules runs the independent AIP incremental pass: documents
// newer than the AIP cursor are parsed, summarized, and merged into the
// hassle feature of the affected airports.
func (b *Builder) processAIPRules(ctx context.Context, cfg Config, result *model.BuildResult) error {
	cursor, err := b.store.AIPCursor()
	if err != nil {
		return err
	}

	docs, err := b.aipSource.Fetch(ctx, cursor)
	if err != nil {
		return fmt.Errorf("fetch aip documents: %w", err)
	}
	b.logf("aip pass: %d new documents since %s", len(docs), cursor.Format(time.RFC3339))

	newCursor := cursor
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := b.applyAIPDocument(ctx, cfg, doc); err != nil {
			buildErr := &BuildError{ICAO: doc.ICAO, Step: model.StepMapping, Err: err}
			fmt.Fprintf(b.errOut, "error: %v\n", buildErr)
			result.Metrics.Failed++
			if cfg.FailureMode == model.FailureFailFast {
				return fmt.Errorf("%w: aip pass failed for %s", ErrAborted, doc.ICAO)
			}
			continue
		}

		result.Metrics.AIPProcessed++
		if doc.UpdatedAt.After(newCursor) {
			newCursor = doc.UpdatedAt
		}
	}

	if newCursor.After(cursor) {
		return b.store.SetAIPCursor(newCursor)
	}
	return nil
}

// applyAIPDocument parses one document and rescores the airport's
// hassle feature (and the persona scores depending on it) in one
// transaction.
func (b *Builder) applyAIPDocument(ctx context.Context, cfg Config, doc aip.Document) error {
	rules, err := b.aipParser.Parse(doc.ICAO, doc.Text)
	if err != nil {
		return err
	}
	summary, contribution := b.aipParser.Summarize(rules)

	// All reads happen before the transaction opens: the store caps the
	// pool at one connection, which the transaction holds until commit.
	scores, err := b.store.FeatureScores(doc.ICAO)
	if err != nil {
		return err
	}
	var aggregates []model.TagAggregate
	if scores != nil {
		aggregates, err = b.store.TagAggregates(doc.ICAO)
		if err != nil {
			return err
		}
	}

	tx, err := b.store.BeginAirport(ctx, doc.ICAO)
	if err != nil {
		return err
	}
	err = func() error {
		if err := tx.SaveRules(rules, summary, contribution); err != nil {
			return err
		}

		// Airports never scored only get their rules stored; the next
		// full pipeline run picks the contribution up.
		if scores == nil {
			return nil
		}

		hassle, ok := b.mapper.HassleBlend(aggregates, &contribution, cfg.Aggregation)
		if !ok {
			return nil
		}
		scores[model.FeatureHassle] = hassle

		if err := tx.SaveFeatureScores(scores); err != nil {
			return err
		}
		personaScores, err := b.personas.ScoreAll(scores)
		if err != nil {
			return err
		}
		return tx.SavePersonaScores(personaScores)
	}()
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// finishResult fills in timing and cache metrics.
func (b *Builder) finishResult(result *model.BuildResult, started time.Time) {
	result.FinishedAt = time.Now().UTC()
	result.Metrics.Duration = result.FinishedAt.Sub(started.UTC())
	if b.fetcher != nil {
		result.Metrics.CacheHits = b.fetcher.Hits()
		result.Metrics.CacheMisses = b.fetcher.Misses()
	}
}

// errorKind maps an error to the taxonomy name reported per airport.
func errorKind(err error) string {
	var (
		extractErr *extract.ExtractionError
		storageErr *store.StorageError
		mappingErr *feature.MappingError
		parseErr   *aip.ParseError
		personaErr *ontology.PersonaError
		ontoErr    *ontology.ValidationError
	)
	switch {
	case errors.As(err, &extractErr):
		return "extraction"
	case errors.As(err, &storageErr):
		return "storage"
	case errors.As(err, &mappingErr):
		return "feature_mapping"
	case errors.As(err, &parseErr):
		return "aip_parsing"
	case errors.As(err, &personaErr):
		return "persona"
	case errors.As(err, &ontoErr):
		return "ontology"
	default:
		return "unknown"
	}
}
