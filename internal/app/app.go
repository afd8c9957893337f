// Package app wires the pipeline stages together: read options, run the
// Planner against a search provider and the Fetcher, assemble a
// ResearchResult with the Synthesizer, and write the JSON and PDF reports.
// Grounded on the teacher's internal/app.App/New/Run shape (one struct
// built by New, one Run method, zerolog throughout); the body is new since
// the teacher orchestrates an LLM synthesis pipeline, not a crawl.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/webresearch/internal/config"
	"github.com/hyperifyio/webresearch/internal/fetch"
	"github.com/hyperifyio/webresearch/internal/model"
	"github.com/hyperifyio/webresearch/internal/planner"
	"github.com/hyperifyio/webresearch/internal/query"
	"github.com/hyperifyio/webresearch/internal/report"
	"github.com/hyperifyio/webresearch/internal/search"
	"github.com/hyperifyio/webresearch/internal/synth"
)

// Options bundles the run's configuration with the CLI-facing concerns
// (input query, output paths, search-provider selection) the core config
// package itself does not know about.
type Options struct {
	Config config.Config

	Query          string
	JSONOutputPath string
	PDFOutputPath  string

	// SearchFilePath, when set, selects the offline FileProvider over
	// SearxNG, per spec §9's offline test double.
	SearchFilePath string
}

// App runs one research query end to end.
type App struct {
	opts      Options
	provider  search.Provider
	fetcher   *fetch.Client
	planner   *planner.Planner
	assembler *synth.Assembler
}

// New validates opts and builds the collaborators for one run. It returns a
// configuration-error (spec §7) before any network activity if opts are
// invalid.
func New(opts Options) (*App, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}

	var provider search.Provider
	if opts.SearchFilePath != "" {
		provider = &search.FileProvider{Path: opts.SearchFilePath}
	} else {
		provider = &search.SearxNG{
			BaseURL:    opts.Config.SearxURL,
			APIKey:     opts.Config.SearxKey,
			UserAgent:  opts.Config.UserAgent,
			HTTPClient: newHighThroughputHTTPClient(),
		}
	}

	fetcher := &fetch.Client{
		HTTPClient:         newHighThroughputHTTPClient(),
		UserAgent:          opts.Config.UserAgent,
		PerRequestTimeout:  opts.Config.RequestTimeout,
		MaxRetries:         opts.Config.MaxRetries,
		MaxConcurrency:     opts.Config.MaxConcurrency,
		PerHostMinInterval: opts.Config.PerHostMinInterval,
		MaxBytes:           opts.Config.MaxBytesPerPage,
	}

	p := &planner.Planner{
		Search: provider,
		Fetch:  fetcher,
		Options: planner.Options{
			MaxInitialResults: opts.Config.MaxInitialResults,
			MaxLevel2PerPage:  opts.Config.MaxLevel2PerPage,
			MaxTotalPages:     opts.Config.MaxTotalPages,
			Deadline:          opts.Config.OverallDeadline,
		},
	}

	return &App{opts: opts, provider: provider, fetcher: fetcher, planner: p, assembler: synth.NewAssembler()}, nil
}

// Run executes the full search -> crawl -> synthesize -> report pipeline
// and writes the JSON and PDF reports whose output paths are set. It never returns an
// error for content-level failures (spec §7): those are recorded in the
// written ResearchResult's failures list.
func (a *App) Run(ctx context.Context) (model.ResearchResult, error) {
	started := time.Now()

	q := query.New(a.opts.Query)
	log.Info().Str("query", q.Raw).Strs("terms", q.Terms).Msg("starting research run")

	// ctx itself carries no deadline: the Planner derives its own
	// fetch-stage deadline from Options.Deadline so the search call always
	// gets a chance to run (spec §8 invariant 7).
	planResult := a.planner.Run(ctx, q)

	finished := time.Now()
	result := a.assembler.Assemble(synth.Input{
		Query:                q,
		InitialHits:          planResult.InitialHits,
		Level1Pages:          planResult.Level1Pages,
		Level2Pages:          planResult.Level2Pages,
		Failures:             planResult.Failures,
		TotalLinksDiscovered: planResult.TotalLinksDiscovered,
		SearchFailed:         planResult.SearchFailed,
		StartedAt:            started,
		FinishedAt:           finished,
	})

	if err := a.writeReports(result); err != nil {
		return result, err
	}
	log.Info().Int("pages", result.TotalPagesCrawled).Float64("elapsed_s", result.ElapsedSeconds).Msg("research run complete")
	return result, nil
}

func (a *App) writeReports(result model.ResearchResult) error {
	if a.opts.JSONOutputPath != "" {
		data, err := report.MarshalJSON(result)
		if err != nil {
			return fmt.Errorf("marshal json report: %w", err)
		}
		if err := os.WriteFile(a.opts.JSONOutputPath, data, 0o644); err != nil {
			return fmt.Errorf("write json report: %w", err)
		}
	}
	if a.opts.PDFOutputPath != "" {
		if err := report.WritePDF(result, a.opts.PDFOutputPath); err != nil {
			return fmt.Errorf("write pdf report: %w", err)
		}
	}
	return nil
}
