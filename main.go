package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath       string
	measurementsPath string
	logLevel         string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "health-importer",
		Short:         "Import Apple Health exports into InfluxDB",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "settings YAML file")
	cmd.PersistentFlags().StringVar(&flags.measurementsPath, "measurements", "", "measurement category YAML file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override")

	cmd.AddCommand(
		newImportCmd(flags),
		newHistoryCmd(flags),
		newConfigCmd(flags),
	)
	return cmd
}

// settings resolves the config file, env and command line into one config.
func (f *rootFlags) settings() (config, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return cfg, err
	}
	if f.measurementsPath != "" {
		cfg.MeasurementsPath = f.measurementsPath
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}
