package main

import (
	"fmt"

	service "github.com/okian/profiler/internal/app"
	"github.com/okian/profiler/internal/config"
	"github.com/okian/profiler/internal/domain/predictor"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var (
		out      string
		strategy string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a predictor from the feedback sink and write an artifact",
		RunE: func(cmd *cobra.Command, _ []string) error {
			adjust := func(cfg *config.Config) {
				// Train from the sink even when the service runs pinned.
				cfg.Model.ArtifactPath = ""
				cfg.Model.WatchArtifact = false
				if strategy != "" {
					cfg.Model.Strategy = strategy
				}
			}
			return withService(cmd.Context(), adjust, func(svc *service.Service) error {
				learning, err := svc.Learning(cmd.Context())
				if err != nil {
					return err
				}
				if !learning.Ready {
					return fmt.Errorf("%w: %d of %d training rows", predictor.ErrNoTrainingData, learning.TrainingRows, learning.MinRows)
				}
				if err := svc.Provider().SaveArtifact(out); err != nil {
					return fmt.Errorf("save artifact: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s model v%d trained on %d rows to %s\n",
					learning.Strategy, learning.ModelVersion, learning.TrainingRows, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "data/model.json", "Artifact output path")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Override the configured strategy")
	return cmd
}
