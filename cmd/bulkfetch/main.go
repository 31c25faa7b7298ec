package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgar-tools/bulkfetch/pkg/edgar"
	"github.com/edgar-tools/bulkfetch/pkg/logging"
	"github.com/edgar-tools/bulkfetch/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	opts, err := resolve(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "bulkfetch: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.Level),
		Pretty: opts.Pretty,
		Output: os.Stderr,
	})

	cfg, err := buildConfig(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	if opts.MetricsAddr != "" {
		go serveMetrics(logger, opts.MetricsAddr)
	}

	// SIGINT stops new downloads; everything already fetched is still
	// written, archived, and summarized before exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	result, err := p.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Run did not complete cleanly")
		os.Exit(1)
	}

	if result.Stats.Failed > 0 {
		logger.Warn().
			Int("failed", result.Stats.Failed).
			Str("log", result.FailureLog).
			Msg("Run finished with failed downloads")
	}
}

// buildConfig turns CLI options into a pipeline configuration for the
// requested quarter range of master indexes.
func buildConfig(opts options) (pipeline.Config, error) {
	if opts.Agent == "" {
		return pipeline.Config{}, fmt.Errorf("a contact user agent is required (-agent or BULKFETCH_AGENT); the SEC rejects anonymous clients")
	}

	start, err := edgar.ParseQuarter(opts.Start)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid start quarter: %w", err)
	}
	end, err := edgar.ParseQuarter(opts.End)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid end quarter: %w", err)
	}
	if end.Before(start) {
		return pipeline.Config{}, fmt.Errorf("end quarter %s precedes start quarter %s", end, start)
	}

	urls := edgar.MasterIndexURLs(start, end)
	if len(urls) == 0 {
		return pipeline.Config{}, fmt.Errorf("no quarters to download: %s has not started yet", start)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = fmt.Sprintf("edgar_indexes_%s_%s", start, end)
	}

	return pipeline.Config{
		URLs:             urls,
		Dir:              opts.Dir,
		ArchivePrefix:    prefix,
		Headers:          edgar.Headers(opts.Agent),
		RateLimit:        opts.Rate,
		FetchConcurrency: opts.Concurrency,
	}, nil
}

func serveMetrics(logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("Metrics listener failed")
	}
}
