package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"tradebot-go/internal/api"
	"tradebot-go/internal/bot"
	"tradebot-go/internal/config"
	"tradebot-go/internal/metrics"
	"tradebot-go/internal/util"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tradebot",
		Short:         "Signal-driven crypto trading bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config (missing file means defaults)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override app.log_level")
	root.AddCommand(runCmd(), signalCmd(), strategiesCmd(), venueCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.Parse(nil)
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.App.LogLevel = logLevel
	}
	return cfg, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the configured bots and the control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := util.NewLogger(cfg.App.LogLevel).With().Str("app", cfg.App.Name).Logger()

			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := build(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.close(); err != nil {
					log.Error().Err(err).Msg("close sink")
				}
			}()

			metricsSrv := metrics.Serve(cfg.App.MetricsAddr)
			log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

			if a.stream != nil {
				go func() {
					if err := a.stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
						log.Error().Err(err).Msg("ticker stream stopped")
					}
				}()
			}

			registry := bot.NewRegistry(ctx, a.factory(), log)
			for _, b := range cfg.Bots {
				_, _, err := registry.Start(bot.Config{
					UserID:     b.UserID,
					Instrument: b.Instrument,
					Strategy:   b.Strategy,
					Interval:   config.Millis(b.IntervalMs),
				})
				if err != nil {
					return fmt.Errorf("start bot %s/%s: %w", b.UserID, b.Instrument, err)
				}
			}

			srv := api.New(registry, a.gen, a.venue, log)
			go func() {
				if err := srv.Start(cfg.App.ControlAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("control api stopped")
					cancel()
				}
			}()
			log.Info().Str("addr", cfg.App.ControlAddr).Str("venue", a.venue.Name()).Int("bots", len(cfg.Bots)).Msg("tradebot started")

			<-ctx.Done()
			log.Info().Msg("shutting down")
			registry.StopAll()

			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
			_ = metricsSrv.Shutdown(shutdownCtx)
			return nil
		},
	}
}

func signalCmd() *cobra.Command {
	var strategyName string
	cmd := &cobra.Command{
		Use:   "signal <instrument>",
		Short: "Generate one signal and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := util.NewLoggerTo(os.Stderr, cfg.App.LogLevel)
			a, err := build(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			sig, err := a.gen.Generate(cmd.Context(), args[0], strategyName)
			if err != nil {
				return err
			}
			if sig == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "null")
				return nil
			}
			out, err := json.ConfigStd.MarshalIndent(sig, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategyName, "strategy", "s", "Moderate", "strategy profile name")
	return cmd
}

func strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the strategy catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "catalog version %d\n", catalog.Version())
			for _, p := range catalog.Profiles() {
				fmt.Fprintf(w, "%-18s %-12s min_conf=%.2f max_risk=%.3f targets=%v indicators=%v\n",
					p.Name, p.RiskTier, p.MinConfidence, p.MaxRiskPerTrade, p.TargetInstruments, p.Indicators)
			}
			return nil
		},
	}
}

func venueCmd() *cobra.Command {
	venueRoot := &cobra.Command{Use: "venue", Short: "Inspect the configured venue"}
	venueRoot.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Test connectivity and print the quote balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := util.NewLoggerTo(os.Stderr, cfg.App.LogLevel)
			a, err := build(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			if err := a.venue.TestConnection(cmd.Context()).Err(); err != nil {
				return fmt.Errorf("%s unreachable: %w", a.venue.Name(), err)
			}
			resp := a.venue.GetBalance(cmd.Context())
			if err := resp.Err(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok: %+v\n", a.venue.Name(), resp.Data)
			return nil
		},
	})
	return venueRoot
}
