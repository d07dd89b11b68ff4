package main

import (
	"context"
	"fmt"
	"os"

	service "github.com/okian/profiler/internal/app"
	"github.com/okian/profiler/internal/config"
	"github.com/okian/profiler/pkg/logger"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "profilerctl",
		Short:         "Operate a partner profiler",
		Long:          "profilerctl simulates quiz players, trains predictor artifacts and reports the hall of fame.",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if p, _ := cmd.Flags().GetString("config"); p != "" {
				if err := os.Setenv(config.EnvFile, p); err != nil {
					return err
				}
			}
			level, _ := cmd.Flags().GetString("log-level")
			return logger.SetLevelString(level)
		},
	}
	root.PersistentFlags().String("config", "", "YAML config file (overrides "+config.EnvFile+")")
	root.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(newSimulateCmd())
	root.AddCommand(newTrainCmd())
	root.AddCommand(newHallOfFameCmd())
	return root
}

// withService loads the layered config, applies adjust, and runs fn
// against a started service that is stopped afterwards.
func withService(ctx context.Context, adjust func(*config.Config), fn func(*service.Service) error) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(cfg)
	}
	svc := service.New(cfg, service.WithLogger(logger.Named("profilerctl")))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		if err := svc.Stop(context.WithoutCancel(ctx)); err != nil {
			logger.Get().Warn(ctx, "failed to stop service", logger.Error(err))
		}
	}()
	return fn(svc)
}
