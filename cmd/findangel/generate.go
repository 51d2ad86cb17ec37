package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kimjw0623/find-angel-sub000/internal/pattern"
	sig "github.com/kimjw0623/find-angel-sub000/internal/signal"
	"github.com/kimjw0623/find-angel-sub000/internal/store/postgres"
)

func generateCmd() *cobra.Command {
	var (
		once bool
		asOf string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build pattern generations from listing history",
		Long: `Without --once the generator runs on its cron schedule, regenerating after
each completed collection and re-stamping the active generation otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asOf != "" && !once {
				return fmt.Errorf("--as-of requires --once")
			}
			at := time.Now()
			if asOf != "" {
				parsed, err := time.Parse(time.RFC3339, asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				at = parsed
			}

			rt, err := setup("generate")
			if err != nil {
				return err
			}
			defer rt.Close()

			db, err := rt.openDB()
			if err != nil {
				return err
			}
			signals, err := rt.openSignals()
			if err != nil {
				return err
			}
			gen := pattern.NewGenerator(
				postgres.NewListingRepo(db),
				postgres.NewPatternRepo(db),
				pattern.GeneratorConfig{
					SoldWindow:    rt.cfg.Generator.SoldWindow,
					OutcomeWindow: rt.cfg.Generator.OutcomeWindow,
				},
				rt.logger,
			)

			if once {
				ctx, cancel := signalContext()
				defer cancel()
				return generateOnce(ctx, gen, signals, at, cmd.OutOrStdout())
			}

			service := pattern.NewService(gen, signals, signals, pattern.ServiceConfig{
				Schedule:        rt.cfg.Generator.Schedule,
				GenerateOnStart: rt.cfg.Generator.GenerateOnStart,
			}, rt.health.Register("generator"), rt.logger)
			return rt.run(db, rt.newAlerter(), service.Run)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "generate a single generation and exit")
	cmd.Flags().StringVar(&asOf, "as-of", "", "RFC3339 timestamp to generate as of (with --once)")
	return cmd
}

type generator interface {
	Generate(ctx context.Context, asOf time.Time) (uuid.UUID, error)
}

func generateOnce(ctx context.Context, gen generator, pub sig.Publisher, asOf time.Time, out io.Writer) error {
	id, err := gen.Generate(ctx, asOf)
	if err != nil {
		return fmt.Errorf("generate patterns: %w", err)
	}
	msg := sig.Message{Type: sig.PatternUpdated, At: time.Now().UTC(), GenerationID: id, Source: "generate"}
	if err := pub.Publish(ctx, msg); err != nil {
		fmt.Fprintln(out, color.New(color.FgYellow).Sprintf("warning: publish %s: %v", sig.PatternUpdated, err))
	}
	fmt.Fprintf(out, "%s generation %s as of %s\n",
		color.New(color.FgGreen).Sprint("generated"), id, asOf.UTC().Format(time.RFC3339))
	return nil
}
