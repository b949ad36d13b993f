package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neetlogiq/cutoff-cli/internal/store"
)

var (
	exportAuthority string
	exportYear      int
	exportRound     string
	exportCategory  string
	exportFormat    string
	exportOut       string
)

// exportRow joins a cutoff with its resolved entity names so the output
// is usable without the database at hand.
type exportRow struct {
	CollegeName string `json:"college_name"`
	ProgramName string `json:"program_name"`
	Year        int    `json:"year"`
	Round       string `json:"round"`
	Authority   string `json:"authority"`
	Quota       string `json:"quota"`
	Category    string `json:"category"`
	OpeningRank int    `json:"opening_rank"`
	ClosingRank int    `json:"closing_rank"`
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export canonical cutoffs to CSV or JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if exportFormat != "csv" && exportFormat != "json" {
			return eris.Errorf("unsupported format %q (want csv or json)", exportFormat)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cutoffs, err := st.ListCutoffs(ctx, store.CutoffFilter{
			Authority: exportAuthority,
			Year:      exportYear,
			Round:     exportRound,
			Category:  exportCategory,
		})
		if err != nil {
			return err
		}

		colleges, err := st.ListColleges(ctx)
		if err != nil {
			return err
		}
		programs, err := st.ListPrograms(ctx)
		if err != nil {
			return err
		}
		collegeNames := make(map[int64]string, len(colleges))
		for _, c := range colleges {
			collegeNames[c.ID] = c.Name
		}
		programNames := make(map[int64]string, len(programs))
		for _, p := range programs {
			programNames[p.ID] = p.Name
		}

		rows := make([]exportRow, 0, len(cutoffs))
		for _, c := range cutoffs {
			rows = append(rows, exportRow{
				CollegeName: collegeNames[c.CollegeID],
				ProgramName: programNames[c.ProgramID],
				Year:        c.Year,
				Round:       c.Round,
				Authority:   c.Authority,
				Quota:       c.Quota,
				Category:    c.Category,
				OpeningRank: c.OpeningRank,
				ClosingRank: c.ClosingRank,
			})
		}

		var out io.Writer = os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if exportFormat == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rows); err != nil {
				return eris.Wrap(err, "encode cutoffs")
			}
		} else {
			if err := writeCSV(out, rows); err != nil {
				return err
			}
		}

		if exportOut != "" {
			zap.L().Info("export complete",
				zap.String("file", exportOut),
				zap.String("format", exportFormat),
				zap.Int("cutoffs", len(rows)))
		} else {
			fmt.Fprintf(os.Stderr, "exported %d cutoffs\n", len(rows))
		}
		return nil
	},
}

func writeCSV(out io.Writer, rows []exportRow) error {
	w := csv.NewWriter(out)
	header := []string{"college_name", "program_name", "year", "round", "authority", "quota", "category", "opening_rank", "closing_rank"}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		record := []string{
			r.CollegeName,
			r.ProgramName,
			strconv.Itoa(r.Year),
			r.Round,
			r.Authority,
			r.Quota,
			r.Category,
			strconv.Itoa(r.OpeningRank),
			strconv.Itoa(r.ClosingRank),
		}
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func init() {
	exportCmd.Flags().StringVar(&exportAuthority, "authority", "", "filter by authority")
	exportCmd.Flags().IntVar(&exportYear, "year", 0, "filter by year")
	exportCmd.Flags().StringVar(&exportRound, "round", "", "filter by round")
	exportCmd.Flags().StringVar(&exportCategory, "category", "", "filter by category")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format (csv|json)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
