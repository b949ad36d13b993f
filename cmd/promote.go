package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neetlogiq/cutoff-cli/internal/promote"
)

var (
	promoteSession string
	promoteDryRun  bool
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Migrate verified staging records into the canonical tables",
	Long:  "Promotes a session's eligible records (human-verified, or fully confident) into the canonical college/program/cutoff tables, creating missing entities and updating existing cutoff rows in place.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine := promote.New(st, promote.Options{DryRun: promoteDryRun})
		summary, err := engine.Promote(ctx, promoteSession)
		if err != nil {
			return err
		}

		label := "Migrated"
		if promoteDryRun {
			label = "Would migrate"
		}
		fmt.Println(renderTable(
			[]string{"Eligible", label, "Cutoffs created", "Cutoffs updated", "Colleges created", "Programs created", "Failed"},
			[][]string{{
				fmt.Sprint(summary.Eligible),
				fmt.Sprint(summary.Migrated),
				fmt.Sprint(summary.CutoffsCreated),
				fmt.Sprint(summary.CutoffsUpdated),
				fmt.Sprint(summary.CollegesCreated),
				fmt.Sprint(summary.ProgramsCreated),
				fmt.Sprint(len(summary.Failed)),
			}},
			[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
		))

		if len(summary.Failed) > 0 {
			rows := make([][]string, 0, len(summary.Failed))
			for _, f := range summary.Failed {
				rows = append(rows, []string{fmt.Sprint(f.ProcessedID), f.Reason})
			}
			fmt.Println(renderTable(
				[]string{"Record", "Reason"},
				rows,
				[]columnAlignment{alignRight, alignLeft},
			))
		}
		return nil
	},
}

func init() {
	promoteCmd.Flags().StringVar(&promoteSession, "session", "", "session to promote (required)")
	promoteCmd.Flags().BoolVar(&promoteDryRun, "dry-run", false, "report what would migrate without writing")
	_ = promoteCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(promoteCmd)
}
