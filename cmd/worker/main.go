package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mn-address-parser/app/bootstrap"
	"github.com/mn-address-parser/app/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	cfg        *config.AppConfig
	logger     *zap.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "worker",
		Short: "Offline tools for the Mongolian address parser",
		Long:  `Parse address files in bulk, inspect the district alias table and seed the search index`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.New(configPath)
			if err != nil {
				return err
			}
			logger, err = bootstrap.InitLogger(cfg.App.Env)
			return err
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to app.yaml")

	rootCmd.AddCommand(createParseCmd())
	rootCmd.AddCommand(createDistrictsCmd())
	rootCmd.AddCommand(createValidateCmd())
	rootCmd.AddCommand(createSeedCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
