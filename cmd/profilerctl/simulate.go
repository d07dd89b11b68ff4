package main

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/okian/profiler/internal/quizsim"
	"github.com/spf13/cobra"
)

func newSimulateCmd() *cobra.Command {
	def := quizsim.DefaultConfig()
	cfg := def
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play simulated quizzes against a running service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := quizsim.Run(cmd.Context(), cfg)
			if stats != nil {
				printSimStats(cmd, stats)
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", def.BaseURL, "Base URL of the service")
	f.IntVar(&cfg.Players, "players", def.Players, "Number of simulated players")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "Concurrent players in flight")
	f.DurationVar(&cfg.Timeout, "timeout", def.Timeout, "HTTP request timeout")
	f.Uint64Var(&cfg.Seed, "seed", 0, "Seed for answers and judgments (0 picks one)")
	f.Float64Var(&cfg.MatchRate, "match-rate", def.MatchRate, "Probability a player confirms the decision")
	f.Float64Var(&cfg.DestinyRate, "destiny-rate", def.DestinyRate, "Probability a player opts into destiny")
	f.Float64Var(&cfg.Repeat, "repeat", def.Repeat, "Probability a player resends its feedback")
	f.BoolVar(&cfg.Strict, "strict", false, "Reject unknown answer values server side")
	return cmd
}

func printSimStats(cmd *cobra.Command, s *quizsim.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "players %d  decided %d  not ready %d  failed %d\n", s.Players, s.Decided, s.NotReady, s.Failed)
	fmt.Fprintf(out, "feedback recorded %d  duplicate %d  failed %d\n", s.FeedbackRecorded, s.Duplicates, s.FeedbackFailed)
	fmt.Fprintf(out, "rarity overrides %d  rare variants %d  in %s\n", s.RarityOverrides, s.RareVariants, s.Duration)

	names := make([]string, 0, len(s.Outcomes))
	for n := range s.Outcomes {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.Outcomes[names[i]] != s.Outcomes[names[j]] {
			return s.Outcomes[names[i]] > s.Outcomes[names[j]]
		}
		return names[i] < names[j]
	})
	for _, n := range names {
		fmt.Fprintf(out, "  %-16s %d\n", n, s.Outcomes[n])
	}
}
