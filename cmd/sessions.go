package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List import sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sessions, err := st.ListSessions(ctx, sessionsLimit)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(sessions))
		for _, s := range sessions {
			completed := "-"
			if s.CompletedAt != nil {
				completed = s.CompletedAt.Format(time.RFC3339)
			}
			rows = append(rows, []string{
				s.ID,
				s.Filename,
				s.Authority,
				string(s.Status),
				fmt.Sprint(s.RawImported),
				fmt.Sprint(s.Processed),
				fmt.Sprint(s.Verified),
				fmt.Sprint(s.Migrated),
				s.StartedAt.Format(time.RFC3339),
				completed,
			})
		}
		fmt.Println(renderTable(
			[]string{"ID", "File", "Authority", "Status", "Raw", "Processed", "Verified", "Migrated", "Started", "Completed"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignLeft},
		))
		return nil
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 50, "max sessions to list")
	rootCmd.AddCommand(sessionsCmd)
}
