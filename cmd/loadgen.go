package main

import (
	"context"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/stylewars/internal/loadgen"
)

const defaultRunTimeout = 10 * time.Minute

func newLoadgenCmd() *cobra.Command {
	cfg := &loadgen.Config{}
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Send generated submissions to a running service and verify its leaderboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Seed == 0 {
				cfg.Seed = uint64(time.Now().UnixNano())
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultRunTimeout)
			defer cancel()
			_, err := loadgen.Run(ctx, cfg)
			return err
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(normalizeFlag)
	fs.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	fs.StringVar(&cfg.ChallengeID, "challenge", "", "challenge to submit to")
	fs.IntVarP(&cfg.Submissions, "submissions", "n", 1000, "number of distinct submissions")
	fs.IntVar(&cfg.Players, "players", 100, "number of distinct players")
	fs.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU()*2, "concurrent senders")
	fs.IntVar(&cfg.TopN, "top", 50, "leaderboard rows to check")
	fs.Float64Var(&cfg.DupRate, "dup-rate", 0.05, "share of submissions re-sent with the same id")
	fs.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	fs.DurationVar(&cfg.Settle, "settle", time.Minute, "longest wait for the queue to drain")
	fs.Uint64Var(&cfg.Seed, "seed", 0, "plan seed, random when 0")
	fs.StringVarP(&cfg.OutputFile, "output", "o", "", "write the plan and final leaderboard as JSON")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every failed submission and mismatch")
	_ = cmd.MarkFlagRequired("challenge")
	return cmd
}
