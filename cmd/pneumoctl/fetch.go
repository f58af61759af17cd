package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/pneumo-api/internal/config"
	"github.com/Brownie44l1/pneumo-api/internal/model"
)

func newFetchModelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-model",
		Short: "Download the classifier if it is not present",
		Long: `Downloads the model to MODEL_PATH from MODEL_URL, MODEL_GDRIVE_ID or
MODEL_HF_REPO/MODEL_HF_FILE, in that order of preference. Nothing is
downloaded when the file already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			return model.NewDownloader(slog.Default()).
				EnsureModel(cmd.Context(), cfg.Model.Path, cfg.Model.DownloadURL())
		},
	}
}
