package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all staging data (sessions, raw and processed records)",
	Long:  "Truncates the staging tables so ingestion can start from scratch. Canonical colleges, programs, and cutoffs are untouched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !resetYes {
			return eris.New("refusing to reset staging without --yes")
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.ResetStaging(cmd.Context()); err != nil {
			return err
		}
		zap.L().Info("staging reset")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
	rootCmd.AddCommand(resetCmd)
}
