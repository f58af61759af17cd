package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/pneumo-api/internal/lib/logger/setuplogger"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "pneumoctl",
		Short: "Offline tools for the PneumoScan API",
		Long: `pneumoctl screens chest X-ray images with the same heuristics the API
applies to uploads, and fetches the classifier model ahead of deployment.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: setuplogger.Level(logLevel)}))
			slog.SetDefault(log)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warning", "Log level (debug, info, warning, error)")

	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newFetchModelCmd())

	return cmd
}
