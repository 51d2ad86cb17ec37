package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kimjw0623/find-angel-sub000/internal/collector"
	"github.com/kimjw0623/find-angel-sub000/internal/config"
	"github.com/kimjw0623/find-angel-sub000/internal/store/postgres"
)

func collectCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect the full market into listing history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup("collect")
			if err != nil {
				return err
			}
			defer rt.Close()

			sched, err := rt.newScheduler(config.CredentialsPrice)
			if err != nil {
				return err
			}
			db, err := rt.openDB()
			if err != nil {
				return err
			}
			signals, err := rt.openSignals()
			if err != nil {
				return err
			}

			c := collector.New(sched, postgres.NewListingRepo(db), signals, collector.Config{
				Schedule:   rt.cfg.Collector.Schedule,
				RunOnStart: rt.cfg.Collector.RunOnStart,
			}, rt.health.Register("collector"), rt.logger)

			if once {
				ctx, cancel := signalContext()
				defer cancel()
				report, err := c.Collect(ctx)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			}
			return rt.run(db, rt.newAlerter(), func(ctx context.Context) error { return c.Run(ctx) })
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single collection cycle and exit")
	return cmd
}

func printReport(w io.Writer, r *collector.Report) {
	status := color.New(color.FgGreen).Sprint("complete")
	if r.FailedPresets > 0 {
		status = color.New(color.FgYellow).Sprintf("partial (%d/%d presets failed)", r.FailedPresets, r.Presets)
	}
	fmt.Fprintf(w, "collection %s\n", status)
	fmt.Fprintf(w, "  presets:  %d\n", r.Presets)
	fmt.Fprintf(w, "  pages:    %d\n", r.Pages)
	fmt.Fprintf(w, "  listings: %d (dropped %d)\n", r.Listings, r.Dropped)
	fmt.Fprintf(w, "  closed:   %v\n", r.Closed)
	fmt.Fprintf(w, "  sold:     %d\n", r.Unseen.Sold)
	fmt.Fprintf(w, "  expired:  %d\n", r.Unseen.Expired)
}
