package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhollis/airscore/internal/aip"
	"github.com/mhollis/airscore/internal/builder"
	"github.com/mhollis/airscore/internal/cache"
	"github.com/mhollis/airscore/internal/extract"
	"github.com/mhollis/airscore/internal/model"
	"github.com/mhollis/airscore/internal/ontology"
	"github.com/mhollis/airscore/internal/source"
	"github.com/mhollis/airscore/internal/store"
)

var (
	dbPath       string
	csvPaths     []string
	exportURL    string
	airportURL   string
	withFees     bool
	cacheDir     string
	cacheGzip    bool
	forceRefresh bool
	neverRefresh bool

	icaoList         []string
	fullRebuild      bool
	resumeFlag       bool
	resumeFrom       string
	failureMode      string
	failureThreshold int
	aipDir           string

	decayEnabled  bool
	halfLifeDays  float64
	smoothing     bool
	priorK        float64
	hassleWeight  float64
	fallbackScore float64
	fallbackSet   bool

	extractorName  string
	extractorModel string
	ontologyPath   string
	personasPath   string
	metricsPath    string
	buildTimeout   time.Duration
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the aggregation pipeline and persist airport scores",
	Long: `Build loads raw reviews, extracts aspect labels, aggregates them
into the eight feature scores per airport, computes persona scores, and
persists everything transactionally with a resumable checkpoint.

Examples:
  airscore build --db scores.db --csv reviews.csv
  airscore build --db scores.db --export-url https://reviews.example.com/export.json
  airscore build --db scores.db --csv reviews.csv --resume --failure-mode skip
  airscore build --db scores.db --csv reviews.csv --aip-dir ./aip --smoothing`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	// Storage and sources
	buildCmd.Flags().StringVar(&dbPath, "db", "airscore.db", "embedded database path")
	buildCmd.Flags().StringSliceVar(&csvPaths, "csv", nil, "delimited review file(s)")
	buildCmd.Flags().StringVar(&exportURL, "export-url", "", "bulk review export URL")
	buildCmd.Flags().StringVar(&airportURL, "airport-url", "", "per-airport provider base URL")
	buildCmd.Flags().BoolVar(&withFees, "with-fees", false, "fetch landing fees from the per-airport provider")

	// Cache
	buildCmd.Flags().StringVar(&cacheDir, "cache-dir", ".airscore-cache", "cache directory for fetched data")
	buildCmd.Flags().BoolVar(&cacheGzip, "cache-gzip", false, "store cache entries compressed")
	buildCmd.Flags().BoolVar(&forceRefresh, "force-refresh", false, "bypass cache and refetch everything")
	buildCmd.Flags().BoolVar(&neverRefresh, "never-refresh", false, "never fetch; fail on cache miss")

	// Working set and failure handling
	buildCmd.Flags().StringSliceVar(&icaoList, "icao", nil, "explicit ICAO allow-list")
	buildCmd.Flags().BoolVar(&fullRebuild, "full", false, "rebuild all airports, bypassing change detection")
	buildCmd.Flags().BoolVar(&resumeFlag, "resume", false, "resume from the stored checkpoint")
	buildCmd.Flags().StringVar(&resumeFrom, "resume-from", "", "resume after this ICAO (overrides checkpoint)")
	buildCmd.Flags().StringVar(&failureMode, "failure-mode", "continue", "per-airport failure handling: continue, fail_fast, skip")
	buildCmd.Flags().IntVar(&failureThreshold, "failure-threshold", 0, "failure count past which continue/skip builds fail")
	buildCmd.Flags().StringVar(&aipDir, "aip-dir", "", "directory of per-airport AIP text files (enables the AIP pass)")

	// Aggregation policy
	buildCmd.Flags().BoolVar(&decayEnabled, "decay", false, "enable recency decay of review weights")
	buildCmd.Flags().Float64Var(&halfLifeDays, "half-life", 365, "decay half-life in days")
	buildCmd.Flags().BoolVar(&smoothing, "smoothing", false, "enable Bayesian smoothing toward global priors")
	buildCmd.Flags().Float64Var(&priorK, "prior-k", 5, "pseudo-count for computed global priors")
	buildCmd.Flags().Float64Var(&hassleWeight, "hassle-weight", 0.5, "weight of review signal in the hassle blend")
	buildCmd.Flags().Float64Var(&fallbackScore, "fallback-score", 0.5, "score for features with no data (only with --fallback)")
	buildCmd.Flags().BoolVar(&fallbackSet, "fallback", false, "enable the fallback score for features with no data")

	// Extractor and configuration
	buildCmd.Flags().StringVar(&extractorName, "extractor", "openai", "extraction provider (openai)")
	buildCmd.Flags().StringVar(&extractorModel, "extractor-model", "", "extraction model name")
	buildCmd.Flags().StringVar(&ontologyPath, "ontology", "", "ontology YAML (default: built-in)")
	buildCmd.Flags().StringVar(&personasPath, "personas", "", "personas YAML (default: built-in)")
	buildCmd.Flags().StringVar(&metricsPath, "metrics", "", "write the build result as JSON to this path")
	buildCmd.Flags().DurationVar(&buildTimeout, "timeout", 30*time.Minute, "overall build timeout")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	// Vocabulary and personas load and validate before anything else.
	onto, personas, err := loadScoringConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	format := cache.FormatPlain
	if cacheGzip {
		format = cache.FormatGzip
	}
	fetcher := cache.NewFetcher(cache.NewLayeredCache(0, cacheDir, format))

	policy := cache.RefreshDefault
	switch {
	case forceRefresh && neverRefresh:
		return fmt.Errorf("--force-refresh and --never-refresh are mutually exclusive")
	case forceRefresh:
		policy = cache.RefreshForce
	case neverRefresh:
		policy = cache.RefreshNever
	}

	src, feeFetcher, err := assembleSources(fetcher, policy)
	if err != nil {
		return err
	}

	extCfg := extract.DefaultConfig()
	extCfg.Provider = extractorName
	extCfg.Model = extractorModel
	extCfg.APIKey = os.Getenv("OPENAI_API_KEY")
	extractor, err := extract.New(extCfg, onto)
	if err != nil {
		return err
	}

	opts := []builder.Option{builder.WithCacheMetrics(fetcher)}
	if verbose {
		opts = append(opts, builder.WithVerbose(os.Stderr))
	}
	if aipDir != "" {
		opts = append(opts, builder.WithAIP(aip.NewTextParser(), aip.NewDirectorySource(aipDir)))
	}
	if feeFetcher != nil {
		opts = append(opts, builder.WithFees(feeFetcher))
	}

	b := builder.New(src, extractor, onto, personas, st, opts...)

	cfg := builder.DefaultConfig()
	cfg.ICAOs = icaoList
	cfg.FullRebuild = fullRebuild
	cfg.ResumeFromCheckpoint = resumeFlag
	cfg.ResumeFrom = resumeFrom
	cfg.FailureMode = model.FailureMode(failureMode)
	cfg.FailureThreshold = failureThreshold
	cfg.ProcessAIP = aipDir != ""
	cfg.PriorPseudoCount = priorK
	cfg.Aggregation.EnableTimeDecay = decayEnabled
	cfg.Aggregation.HalfLifeDays = halfLifeDays
	cfg.Aggregation.EnableSmoothing = smoothing
	cfg.Aggregation.HassleReviewWeight = hassleWeight
	if fallbackSet {
		fallback := fallbackScore
		cfg.Aggregation.FallbackScore = &fallback
	}

	result, runErr := b.Run(ctx, cfg)
	if result != nil {
		renderResult(result)
		if metricsPath != "" {
			if err := writeMetrics(result, metricsPath); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: write metrics: %v\n", err)
			}
		}
	}
	if runErr != nil {
		return runErr
	}
	if result.Failed(cfg.FailureMode, cfg.FailureThreshold) {
		return fmt.Errorf("build failed: %d airports failed (threshold %d)", result.Metrics.Failed, cfg.FailureThreshold)
	}
	return nil
}

// loadScoringConfig loads the ontology and personas, from files when
// given, otherwise the built-in defaults.
func loadScoringConfig() (*ontology.Ontology, *ontology.Personas, error) {
	var onto *ontology.Ontology
	var err error
	if ontologyPath != "" {
		onto, err = ontology.LoadOntology(ontologyPath)
		if err != nil {
			return nil, nil, err
		}
	} else {
		onto = ontology.DefaultOntology()
	}

	var personas *ontology.Personas
	if personasPath != "" {
		personas, err = ontology.LoadPersonas(personasPath, onto)
		if err != nil {
			return nil, nil, err
		}
	} else {
		personas = ontology.DefaultPersonas()
		if err := personas.Validate(onto); err != nil {
			return nil, nil, err
		}
	}

	return onto, personas, nil
}

// assembleSources builds the composite review source from the flags.
func assembleSources(fetcher *cache.Fetcher, policy cache.RefreshPolicy) (source.Source, source.FeeFetcher, error) {
	var sources []source.Source
	var feeFetcher source.FeeFetcher

	for _, path := range csvPaths {
		sources = append(sources, source.NewCSVSource(path))
	}
	if exportURL != "" {
		cfg := source.DefaultExportConfig(exportURL)
		cfg.Policy = policy
		sources = append(sources, source.NewExportSource(cfg, fetcher))
	}
	if airportURL != "" {
		cfg := source.DefaultExportConfig(airportURL)
		cfg.Policy = policy
		airportSrc := source.NewAirportSource(cfg, fetcher, withFees)
		sources = append(sources, airportSrc)
		if withFees {
			feeFetcher = airportSrc
		}
	}

	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("no review source configured (use --csv, --export-url, or --airport-url)")
	}
	if len(sources) == 1 {
		return sources[0], feeFetcher, nil
	}
	return source.NewComposite(sources...), feeFetcher, nil
}

// renderResult prints the build summary to stdout.
func renderResult(result *model.BuildResult) {
	fmt.Println()
	fmt.Println("Build summary")
	fmt.Println("─────────────")
	fmt.Printf("  Processed:    %d\n", result.Metrics.Processed)
	fmt.Printf("  Failed:       %d\n", result.Metrics.Failed)
	fmt.Printf("  Skipped:      %d\n", result.Metrics.Skipped)
	fmt.Printf("  Reviews:      %d\n", result.Metrics.Reviews)
	fmt.Printf("  Extractions:  %d\n", result.Metrics.Extractions)
	fmt.Printf("  Cache:        %d hits / %d misses\n", result.Metrics.CacheHits, result.Metrics.CacheMisses)
	if result.Metrics.AIPProcessed > 0 {
		fmt.Printf("  AIP docs:     %d\n", result.Metrics.AIPProcessed)
	}
	fmt.Printf("  Duration:     %s\n", result.Metrics.Duration.Round(time.Millisecond))
	if result.Checkpoint != "" {
		fmt.Printf("  Checkpoint:   %s\n", result.Checkpoint)
	}

	for _, outcome := range result.Outcomes {
		if outcome.Step == model.StepFailed {
			fmt.Printf("  ✗ %s: %s\n", outcome.ICAO, outcome.ErrorKind)
		}
	}
}

// writeMetrics writes the full build result as JSON.
func writeMetrics(result *model.BuildResult, path string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
