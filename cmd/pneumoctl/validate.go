package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/pneumo-api/internal/validator"
)

type fileResult struct {
	File string `json:"file"`
	validator.Result
}

func newValidateCmd() *cobra.Command {
	thresholds := validator.DefaultThresholds()
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check whether images look like chest X-rays",
		Example: `  # Screen a single upload
  pneumoctl validate scan.png

  # Fail if any image in a folder is rejected
  pneumoctl validate --strict dataset/*.jpeg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]fileResult, 0, len(args))
			rejected := 0

			for _, path := range args {
				res, err := validateFile(thresholds, path)
				if err != nil {
					return err
				}
				if !res.IsLikelyXray {
					rejected++
				}
				results = append(results, fileResult{File: path, Result: res})
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return fmt.Errorf("failed to write results: %w", err)
			}

			if strict && rejected > 0 {
				return fmt.Errorf("%d of %d images rejected", rejected, len(args))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&thresholds.Grayscale, "grayscale-threshold", thresholds.Grayscale, "Minimum mean RGB channel correlation")
	cmd.Flags().IntVar(&thresholds.MinConfidence, "min-confidence", thresholds.MinConfidence, "Score at which an image is accepted")
	cmd.Flags().Int64Var(&thresholds.MaxPixels, "max-pixels", thresholds.MaxPixels, "Largest image in pixels to decode, 0 for no limit")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error if any image is rejected")

	return cmd
}

func validateFile(t validator.Thresholds, path string) (validator.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return validator.Result{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return t.ValidateReader(f), nil
}
