package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neetlogiq/cutoff-cli/internal/corrections"
	"github.com/neetlogiq/cutoff-cli/internal/match"
	"github.com/neetlogiq/cutoff-cli/internal/pipeline"
	"github.com/neetlogiq/cutoff-cli/internal/reference"
)

var (
	ingestAuthority string
	ingestYear      int
	ingestRound     string
	ingestQuota     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Import a cutoff export file into staging",
	Long:  "Reads a CSV/XLSX rank export, stages every raw row, then normalizes, entity-matches, and rank-parses each row into processed staging records. Flags override the configured defaults used when the filename carries no metadata.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if _, err := corrections.SeedRules(ctx, st); err != nil {
			return err
		}
		applier, err := corrections.Snapshot(ctx, st)
		if err != nil {
			return err
		}

		snap, err := reference.NewLoader(cfg.Reference, st).Load(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("reference snapshot loaded",
			zap.Int64("version", snap.Version),
			zap.Int("colleges", len(snap.Entities(reference.TypeCollege))),
			zap.Int("programs", len(snap.Entities(reference.TypeProgram))),
			zap.Int("rules", applier.RuleCount()))

		importCfg := cfg.Import
		if ingestAuthority != "" {
			importCfg.DefaultAuthority = ingestAuthority
		}
		if ingestYear != 0 {
			importCfg.DefaultYear = ingestYear
		}
		if ingestRound != "" {
			importCfg.DefaultRound = ingestRound
		}
		if ingestQuota != "" {
			importCfg.DefaultQuota = ingestQuota
		}

		matcher := match.New(snap, match.Options{MaxTier: match.Tier(cfg.Match.MaxTier)})
		pipe := pipeline.New(importCfg, st, applier, matcher)

		summary, err := pipe.Run(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		fmt.Println(renderTable(
			[]string{"Session", "Authority", "Year", "Round", "Raw", "Processed", "Full confidence", "Errors", "Success rate"},
			[][]string{{
				summary.SessionID,
				summary.Authority,
				fmt.Sprint(summary.Year),
				summary.Round,
				fmt.Sprint(summary.RawImported),
				fmt.Sprint(summary.Processed),
				fmt.Sprint(summary.Successful),
				fmt.Sprint(len(summary.Errors)),
				fmt.Sprintf("%.1f%%", summary.SuccessRate()*100),
			}},
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))

		if len(summary.Errors) > 0 {
			rows := make([][]string, 0, len(summary.Errors))
			for _, e := range summary.Errors {
				rows = append(rows, []string{fmt.Sprint(e.Row), e.Kind, e.Reason})
			}
			fmt.Println(renderTable(
				[]string{"Row", "Kind", "Reason"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestAuthority, "authority", "", "authority fallback when the filename carries none")
	ingestCmd.Flags().IntVar(&ingestYear, "year", 0, "year fallback when the filename carries none")
	ingestCmd.Flags().StringVar(&ingestRound, "round", "", "round fallback when the filename carries none")
	ingestCmd.Flags().StringVar(&ingestQuota, "quota", "", "quota used when a row has none")
	rootCmd.AddCommand(ingestCmd)
}
