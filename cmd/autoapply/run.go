package main

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Korbielowski/AutoApply/internal/config"
	"github.com/Korbielowski/AutoApply/internal/runlock"
)

func runCommand() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print events as server-sent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.config()
			cfg.Sites = selectSites(cfg.Sites, only)
			lock, err := runlock.Acquire(cfg.App.DataDir)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			seq, release, err := a.launch(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()

			out := cmd.OutOrStdout()
			for ev := range seq {
				fmt.Fprintf(out, "event: job\ndata: %s\n\n", ev.Payload())
			}
			fmt.Fprint(out, "event: done\ndata: {}\n\n")
			return ctx.Err()
		},
	}
	cmd.Flags().StringSliceVar(&only, "site", nil, "run only the named sites")
	return cmd
}

// selectSites keeps the sites named in only; an empty only keeps all.
func selectSites(sites []config.Site, only []string) []config.Site {
	if len(only) == 0 {
		return sites
	}
	var out []config.Site
	for _, s := range sites {
		if slices.ContainsFunc(only, func(n string) bool { return strings.EqualFold(n, s.Name) }) {
			out = append(out, s)
		}
	}
	return out
}
