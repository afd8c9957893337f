// Command research is the CLI front end for one research run: it parses
// flags onto internal/config.Config, runs the pipeline, and writes the
// JSON and PDF reports. Grounded on the teacher's cmd/goresearch/main.go
// flag-and-zerolog wiring.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/webresearch/internal/app"
	"github.com/hyperifyio/webresearch/internal/config"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Default()

	// -config is resolved before the rest of the flags are declared, so its
	// values become the defaults flag.Parse reports unless overridden
	// explicitly on the command line.
	if configPath := scanConfigFlag(os.Args[1:]); configPath != "" {
		fc, err := config.LoadFile(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("configuration-error: failed to read -config file")
		}
		config.ApplyFile(&cfg, fc)
	}

	var (
		query      string
		jsonOut    string
		pdfOut     string
		searchFile string
		configPath string
		verbose    bool
	)

	flag.StringVar(&query, "query", "", "Natural-language research query")
	flag.StringVar(&configPath, "config", "", "Optional YAML or JSON file overlaying defaults (flags and env still win)")
	flag.StringVar(&jsonOut, "json", "report.json", "Path to write the JSON ResearchResult")
	flag.StringVar(&pdfOut, "pdf", "report.pdf", "Path to write the paginated PDF report")
	flag.StringVar(&searchFile, "search.file", "", "Path to a canned JSON search-result file, bypassing SearxNG (offline testing)")
	flag.StringVar(&cfg.SearxURL, "searx.url", os.Getenv("SEARX_URL"), "SearxNG base URL")
	flag.StringVar(&cfg.SearxKey, "searx.key", os.Getenv("SEARX_KEY"), "SearxNG API key (optional)")
	flag.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "HTTP User-Agent sent with every fetch")
	flag.IntVar(&cfg.MaxInitialResults, "max.initial-results", cfg.MaxInitialResults, "Hard cap on Level-1 tasks admitted from search")
	flag.IntVar(&cfg.MaxLevel2PerPage, "max.level2-per-page", cfg.MaxLevel2PerPage, "Per-parent cap on Level-2 admissions")
	flag.IntVar(&cfg.MaxTotalPages, "max.total-pages", cfg.MaxTotalPages, "Optional global cap across both levels (0 = unlimited)")
	flag.DurationVar(&cfg.RequestTimeout, "timeout.request", cfg.RequestTimeout, "Per-request deadline")
	flag.DurationVar(&cfg.OverallDeadline, "timeout.overall", cfg.OverallDeadline, "Whole-run deadline")
	flag.IntVar(&cfg.MaxConcurrency, "max.concurrency", cfg.MaxConcurrency, "Simultaneous fetches")
	flag.DurationVar(&cfg.PerHostMinInterval, "per-host.min-interval", cfg.PerHostMinInterval, "Minimum spacing between fetches to the same host")
	flag.IntVar(&cfg.MaxRetries, "max.retries", cfg.MaxRetries, "Per-task transient-failure retries")
	flag.Int64Var(&cfg.MaxBytesPerPage, "max.bytes-per-page", cfg.MaxBytesPerPage, "Body truncation limit in bytes")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	config.ApplyEnv(&cfg)

	if query == "" {
		log.Fatal().Msg("configuration-error: -query is required")
	}

	a, err := app.New(app.Options{
		Config:         cfg,
		Query:          query,
		JSONOutputPath: jsonOut,
		PDFOutputPath:  pdfOut,
		SearchFilePath: searchFile,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("configuration-error")
	}

	if _, err := a.Run(context.Background()); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

// scanConfigFlag looks for -config/--config in args without engaging the
// flag package, since the config file's values must be installed as flag
// defaults before flag.Parse declares them.
func scanConfigFlag(args []string) string {
	for i, a := range args {
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "-config="):
			return strings.TrimPrefix(a, "-config=")
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		}
	}
	return ""
}
