package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	catalog "health-importer/internal/catalog/domain"
	catalogfile "health-importer/internal/catalog/infrastructure/file"
)

func newConfigCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate or print the measurement categories",
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the measurement category file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.settings()
			if err != nil {
				return err
			}
			doc, err := catalogfile.Read(cfg.MeasurementsPath)
			if err != nil {
				return err
			}
			registry, err := catalog.NewRegistry(doc)
			if err != nil {
				return err
			}
			if err := registry.Validate(); err != nil {
				return fmt.Errorf("%s: %w", cfg.MeasurementsPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d categories ok\n", cfg.MeasurementsPath, len(registry.Categories()))
			return nil
		},
	}

	var out string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective categories, or write them with --out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.settings()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			registry, err := buildRegistry(cfg, logger)
			if err != nil {
				return err
			}
			if out != "" {
				return catalogfile.Save(out, registry.Document())
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(registry.Document()); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	dump.Flags().StringVar(&out, "out", "", "write the categories to this file")

	cmd.AddCommand(validate, dump)
	return cmd
}
