package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/neetlogiq/cutoff-cli/internal/reference"
)

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Load the reference snapshot and report what it holds",
	Long:  "Builds a fresh reference snapshot from the configured seed files and canonical store, then prints entity and vocabulary counts. Useful for checking seed files before an ingest.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snap, err := reference.NewLoader(cfg.Reference, st).Load(ctx)
		if err != nil {
			return err
		}

		fmt.Println(renderTable(
			[]string{"Version", "Loaded", "Colleges", "Programs", "Quotas", "Categories", "States"},
			[][]string{{
				fmt.Sprint(snap.Version),
				snap.LoadedAt.Format(time.RFC3339),
				fmt.Sprint(len(snap.Entities(reference.TypeCollege))),
				fmt.Sprint(len(snap.Entities(reference.TypeProgram))),
				fmt.Sprint(len(snap.Vocab.Quotas)),
				fmt.Sprint(len(snap.Vocab.Categories)),
				fmt.Sprint(len(snap.Vocab.States)),
			}},
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(referenceCmd)
}
