package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kimjw0623/find-angel-sub000/internal/store"
	"github.com/kimjw0623/find-angel-sub000/internal/store/postgres"
)

func patternsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Show the active pattern generation and the most recent ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup("patterns")
			if err != nil {
				return err
			}
			defer rt.Close()

			db, err := rt.openDB()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return printGenerations(ctx, cmd.OutOrStdout(), postgres.NewPatternRepo(db), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent generations to list")
	return cmd
}

func printGenerations(ctx context.Context, w io.Writer, repo store.PatternRepository, limit int) error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)

	active, err := repo.ActiveGeneration(ctx)
	if err != nil {
		return fmt.Errorf("active generation: %w", err)
	}
	if active == nil {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("no active generation"))
	} else {
		set, err := repo.LoadGeneration(ctx, active.ID)
		if err != nil {
			return fmt.Errorf("load generation %s: %w", active.ID, err)
		}
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("active:"), green.Sprint(active.ID))
		fmt.Fprintf(w, "  as of:       %s\n", active.AsOf.UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "  accessories: %d\n", len(set.Accessories))
		fmt.Fprintf(w, "  bracelets:   %d\n", len(set.Bracelets))
	}

	gens, err := repo.ListGenerations(ctx, limit)
	if err != nil {
		return fmt.Errorf("list generations: %w", err)
	}
	fmt.Fprintln(w, bold.Sprint("recent:"))
	for _, g := range gens {
		marker := " "
		if g.IsActive {
			marker = green.Sprint("*")
		}
		fmt.Fprintf(w, "%s %s  as_of=%s  created=%s\n", marker, g.ID,
			g.AsOf.UTC().Format(time.RFC3339), g.CreatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}
