package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"libshelf/internal/catalog"
	"libshelf/internal/config"
	"libshelf/internal/console"
	"libshelf/internal/logging"
	"libshelf/internal/telemetry"
	"libshelf/pkg/eventstore"
)

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "catalog",
		Short:         "Interactive in-memory library catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(v, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	return cmd
}

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(os.Stderr, cfg.Log)

	providers, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("set up telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	es := eventstore.NewEventStore()
	svc := catalog.NewService(es,
		catalog.WithLogger(logger),
		catalog.WithTracerProvider(providers.TracerProvider),
		catalog.WithMeterProvider(providers.MeterProvider),
	)
	handler := console.NewHandler(svc, os.Stdin, os.Stdout, cfg.Console, logger)

	runErr := handler.Run(ctx)

	if totals, err := providers.Summary(ctx); err != nil {
		logger.Warn("could not summarise session", "error", err)
	} else {
		logger.Info("session summary", "operations", totals)
	}
	return runErr
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
