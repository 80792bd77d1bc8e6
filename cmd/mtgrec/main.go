// MTGrec - Commander Deck Recommendation Engine
// Copyright 2026 Trevan C. (TrevanC)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/TrevanC/MTGrec

// Package main is the MTGrec command line interface.
//
// MTGrec recommends cards for Commander (EDH) decks from a corpus of
// observed deck lists. It trains an item-item similarity model over a
// deck-card matrix, blends it with commander-conditioned priors, global
// popularity, and deck-shape targets, and serves four operations:
//
//	mtgrec recommend --deck my-deck.txt          ranked suggestions
//	mtgrec complete  --deck my-deck.txt          fill the deck to 100 cards
//	mtgrec swaps     --deck my-deck.txt          cut-and-replace suggestions
//	mtgrec validate  --deck my-deck.txt          parse and resolve a decklist
//	mtgrec eval                                  holdout quality metrics
//	mtgrec daemon                                periodic retraining service
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables (MTGREC_*), config file
// (config.yaml), built-in defaults. The dataset document path, cache
// directory, and every model hyperparameter are configurable; see
// internal/config.
//
// Decklists use the common text format, one card per line:
//
//	1 Sol Ring
//	1x Dockside Extortionist (2XM) 371
//	Korvold, Fae-Cursed King
//
// Daemon mode retrains from the dataset document on a fixed interval under
// a suture supervisor and optionally exposes Prometheus metrics
// (daemon.metrics_addr).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/TrevanC/MTGrec/internal/config"
	"github.com/TrevanC/MTGrec/internal/dataset"
	"github.com/TrevanC/MTGrec/internal/engine"
	"github.com/TrevanC/MTGrec/internal/logging"
	"github.com/TrevanC/MTGrec/internal/refresher"
)

// version is set at build time via -ldflags.
var version = "dev"

type cliFlags struct {
	configPath      string
	deckPath        string
	commanders      []string
	topN            int
	allowUnresolved bool
	refresh         bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "mtgrec",
		Short:         "Commander deck recommendation engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (default: config.yaml, /etc/mtgrec/config.yaml)")
	root.PersistentFlags().BoolVar(&flags.refresh, "refresh", false, "ignore the similarity cache and refit")

	for _, cmd := range []*cobra.Command{
		newRecommendCommand(flags),
		newCompleteCommand(flags),
		newSwapsCommand(flags),
		newValidateCommand(flags),
		newEvalCommand(flags),
		newDaemonCommand(flags),
	} {
		root.AddCommand(cmd)
	}
	return root
}

func addDeckFlags(cmd *cobra.Command, flags *cliFlags) {
	cmd.Flags().StringVar(&flags.deckPath, "deck", "", "decklist file, or - for stdin")
	cmd.Flags().StringSliceVar(&flags.commanders, "commander", nil, "commander name or oracle id (repeatable)")
	cmd.Flags().BoolVar(&flags.allowUnresolved, "allow-unresolved", false, "report unknown cards instead of failing")
	_ = cmd.MarkFlagRequired("deck")
}

func newRecommendCommand(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank card suggestions for a partial deck",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), flags, func(ctx context.Context, e *engine.Engine) error {
				req, err := buildRequest(flags)
				if err != nil {
					return err
				}
				resp, err := e.Recommend(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
	addDeckFlags(cmd, flags)
	cmd.Flags().IntVar(&flags.topN, "top", 0, "number of suggestions (default: configured ranked_list_size)")
	return cmd
}

func newCompleteCommand(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Fill a partial deck up to the target size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), flags, func(ctx context.Context, e *engine.Engine) error {
				req, err := buildRequest(flags)
				if err != nil {
					return err
				}
				resp, err := e.CompleteDeck(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
	addDeckFlags(cmd, flags)
	return cmd
}

func newSwapsCommand(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swaps",
		Short: "Suggest cut-and-replace pairs for a finished deck",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), flags, func(ctx context.Context, e *engine.Engine) error {
				req, err := buildRequest(flags)
				if err != nil {
					return err
				}
				resp, err := e.SuggestSwaps(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
	addDeckFlags(cmd, flags)
	return cmd
}

func newValidateCommand(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse a decklist and resolve every entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), flags, func(ctx context.Context, e *engine.Engine) error {
				text, err := readDecklist(flags.deckPath)
				if err != nil {
					return err
				}
				resp, err := e.ValidateDecklist(ctx, text)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
	addDeckFlags(cmd, flags)
	return cmd
}

func newEvalCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "eval",
		Short: "Measure recommendation quality on held-out decks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), flags, func(ctx context.Context, e *engine.Engine) error {
				resp, err := e.Evaluate(ctx)
				if err != nil {
					return err
				}
				return printJSON(resp)
			})
		},
	}
}

func newDaemonCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run with periodic retraining and optional metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := engine.New(cfg)
			if err != nil {
				return err
			}
			if err := e.LoadAndTrain(ctx, flags.refresh); err != nil {
				return fmt.Errorf("initial training: %w", err)
			}

			sup := refresher.NewSupervisor(logging.NewSlogLogger())
			sup.Add(refresher.NewService(e, cfg.Daemon.RefreshInterval))
			if cfg.Daemon.MetricsAddr != "" {
				sup.Add(newMetricsService(cfg.Daemon.MetricsAddr))
			}

			log := logging.With("main")
			log.Info().
				Str("version", version).
				Dur("refresh_interval", cfg.Daemon.RefreshInterval).
				Msg("daemon started")

			err = sup.Serve(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// withEngine loads configuration, trains once, and runs the operation.
func withEngine(ctx context.Context, flags *cliFlags, fn func(context.Context, *engine.Engine) error) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	e, err := engine.New(cfg)
	if err != nil {
		return err
	}
	if err := e.LoadAndTrain(ctx, flags.refresh); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	return fn(ctx, e)
}

func loadConfig(flags *cliFlags) (*config.Config, error) {
	if flags.configPath != "" {
		if _, err := os.Stat(flags.configPath); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		_ = os.Setenv(config.ConfigPathEnvVar, flags.configPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	return cfg, nil
}

// buildRequest turns the decklist file and flags into an engine request.
// Quantities expand into repeated seed entries so basic lands keep their
// counts.
func buildRequest(flags *cliFlags) (*engine.RecommendRequest, error) {
	text, err := readDecklist(flags.deckPath)
	if err != nil {
		return nil, err
	}

	entries, issues := dataset.ParseDecklist(text)
	log := logging.With("main")
	for _, issue := range issues {
		log.Warn().
			Str("kind", string(issue.Kind)).
			Str("detail", issue.Detail).
			Msg("decklist line skipped")
	}

	var seed []string
	for _, entry := range entries {
		for i := 0; i < entry.Quantity; i++ {
			seed = append(seed, entry.Name)
		}
	}

	return &engine.RecommendRequest{
		Seed:            seed,
		Commanders:      flags.commanders,
		AllowUnresolved: flags.allowUnresolved,
		TopN:            flags.topN,
	}, nil
}

func readDecklist(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a CLI flag
	if err != nil {
		return "", fmt.Errorf("read decklist: %w", err)
	}
	return string(data), nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}

// metricsService serves the Prometheus endpoint under the supervisor.
type metricsService struct {
	addr string
}

func newMetricsService(addr string) *metricsService {
	return &metricsService{addr: addr}
}

// Serve implements suture.Service.
func (m *metricsService) Serve(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              m.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (m *metricsService) String() string {
	return "metrics-server"
}
