package main

import (
	"fmt"

	service "github.com/okian/profiler/internal/app"
	"github.com/spf13/cobra"
)

func newHallOfFameCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "hall-of-fame",
		Aliases: []string{"fame"},
		Short:   "Print the most confirmed partners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), nil, func(svc *service.Service) error {
				entries, err := svc.HallOfFame(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "no confirmed partners yet")
					return nil
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%2d. %-16s %-18s %d\n", e.Rank, e.Outcome, e.Entry.DisplayType(), e.Confirmations)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Number of entries (0 uses the configured size)")
	return cmd
}
