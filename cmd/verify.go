package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/neetlogiq/cutoff-cli/internal/model"
	"github.com/neetlogiq/cutoff-cli/internal/review"
	"github.com/neetlogiq/cutoff-cli/internal/store"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Review and resolve pending staging records",
}

var (
	verifyListSession       string
	verifyListStatus        string
	verifyListMaxConfidence int
	verifyListLimit         int
)

var verifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List staging records awaiting review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		filter := store.ProcessedFilter{
			SessionID: verifyListSession,
			Status:    model.RecordStatus(verifyListStatus),
			Limit:     verifyListLimit,
		}
		if verifyListMaxConfidence >= 0 {
			filter.MaxConfidence = &verifyListMaxConfidence
		}

		records, err := st.ListProcessedCutoffs(ctx, filter)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(records))
		for _, p := range records {
			college := "-"
			if p.CollegeID != nil {
				college = fmt.Sprint(*p.CollegeID)
			}
			program := "-"
			if p.ProgramID != nil {
				program = fmt.Sprint(*p.ProgramID)
			}
			rows = append(rows, []string{
				fmt.Sprint(p.ID),
				p.CollegeText,
				college,
				p.ProgramText,
				program,
				p.Category,
				fmt.Sprint(p.ClosingRank),
				fmt.Sprint(p.Confidence),
				string(p.Status),
			})
		}
		fmt.Println(renderTable(
			[]string{"ID", "College", "CID", "Program", "PID", "Category", "Closing", "Confidence", "Status"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft},
		))
		return nil
	},
}

func recordIDArg(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid record id %q", args[0])
	}
	return id, nil
}

var (
	verifyApproveCollegeID int64
	verifyApproveProgramID int64
)

var verifyApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Mark one record verified, optionally fixing its entity links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := recordIDArg(args)
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return review.Approve(cmd.Context(), st, id, verifyApproveCollegeID, verifyApproveProgramID)
	},
}

var verifyRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Discard one staging record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := recordIDArg(args)
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return review.Reject(cmd.Context(), st, id)
	},
}

var verifyAutoSession string

var verifyAutoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Verify every pending record with full confidence",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		verified, err := review.AutoVerify(cmd.Context(), st, verifyAutoSession)
		if err != nil {
			return err
		}
		fmt.Printf("verified %d records\n", verified)
		return nil
	},
}

func init() {
	verifyListCmd.Flags().StringVar(&verifyListSession, "session", "", "filter by session id")
	verifyListCmd.Flags().StringVar(&verifyListStatus, "status", string(model.RecordPending), "filter by status (pending|verified|rejected|migrated, empty for all)")
	verifyListCmd.Flags().IntVar(&verifyListMaxConfidence, "max-confidence", -1, "only records at or below this confidence")
	verifyListCmd.Flags().IntVar(&verifyListLimit, "limit", 100, "max records to list")

	verifyApproveCmd.Flags().Int64Var(&verifyApproveCollegeID, "college-id", 0, "override the resolved college id")
	verifyApproveCmd.Flags().Int64Var(&verifyApproveProgramID, "program-id", 0, "override the resolved program id")

	verifyAutoCmd.Flags().StringVar(&verifyAutoSession, "session", "", "limit to one session")

	verifyCmd.AddCommand(verifyListCmd, verifyApproveCmd, verifyRejectCmd, verifyAutoCmd)
	rootCmd.AddCommand(verifyCmd)
}
