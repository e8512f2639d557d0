package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mn-address-parser/app/bootstrap"
	"github.com/mn-address-parser/internal/gazetteer"
	"github.com/mn-address-parser/internal/search"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func createDistrictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "districts",
		Short: "Print the district alias table in use as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := bootstrap.LoadTable(cfg, logger)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(table); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func createValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a district alias file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := gazetteer.LoadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range table.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			fmt.Fprintf(out, "ok: version %s, %d districts, %d aliases\n",
				table.Version(), len(table.Districts()), table.AliasCount())
			return nil
		},
	}
}

func createSeedCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Push the alias table to the Meilisearch index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := bootstrap.LoadTable(cfg, logger)
			if err != nil {
				return err
			}
			searcher, err := bootstrap.NewSearcher(cfg, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, wait)
				defer cancel()
			}

			settingsTask, err := searcher.BuildIndexes(search.Synonyms(table, nil))
			if err != nil {
				return err
			}
			if err := searcher.WaitForTask(ctx, settingsTask); err != nil {
				return fmt.Errorf("index settings: %w", err)
			}

			units := search.BuildDocuments(table, time.Now())
			tasks, err := searcher.SeedData(units)
			if err != nil {
				return err
			}
			for _, uid := range tasks {
				if err := searcher.WaitForTask(ctx, uid); err != nil {
					return fmt.Errorf("seed documents: %w", err)
				}
			}

			logger.Info("search index seeded",
				zap.String("gazetteer_version", table.Version()),
				zap.Int("units", len(units)),
				zap.Int("tasks", len(tasks)))
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "timeout", 2*time.Minute, "how long to wait for indexing tasks (0 waits forever)")
	return cmd
}
