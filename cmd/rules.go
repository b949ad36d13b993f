package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/neetlogiq/cutoff-cli/internal/corrections"
	"github.com/neetlogiq/cutoff-cli/internal/model"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage text correction rules",
}

var (
	rulesListCategory string
	rulesListAll      bool
)

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List correction rules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rules, err := st.ListRules(ctx, model.RuleCategory(rulesListCategory), !rulesListAll)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(rules))
		for _, r := range rules {
			active := "yes"
			if !r.Active {
				active = "no"
			}
			rows = append(rows, []string{
				fmt.Sprint(r.ID),
				string(r.Category),
				string(r.ErrorType),
				r.RegexPattern,
				r.Replacement,
				fmt.Sprint(r.Priority),
				active,
				fmt.Sprint(r.UsageCount),
			})
		}
		fmt.Println(renderTable(
			[]string{"ID", "Category", "Error type", "Pattern", "Replacement", "Priority", "Active", "Used"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
		))
		return nil
	},
}

var (
	ruleAddCategory    string
	ruleAddErrorType   string
	ruleAddPattern     string
	ruleAddFlags       string
	ruleAddReplacement string
	ruleAddPriority    int
)

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a correction rule",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rule := &model.CorrectionRule{
			Category:     model.RuleCategory(ruleAddCategory),
			ErrorType:    model.RuleErrorType(ruleAddErrorType),
			Pattern:      ruleAddPattern,
			RegexPattern: ruleAddPattern,
			RegexFlags:   ruleAddFlags,
			Replacement:  ruleAddReplacement,
			Priority:     ruleAddPriority,
			Active:       true,
		}
		if err := st.CreateRule(ctx, rule); err != nil {
			return err
		}
		zap.L().Info("rule created", zap.Int64("rule_id", rule.ID), zap.String("pattern", rule.RegexPattern))
		return nil
	},
}

func ruleIDArg(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid rule id %q", args[0])
	}
	return id, nil
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Deactivate a rule without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ruleIDArg(args)
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return st.SetRuleActive(cmd.Context(), id, false)
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <id>",
	Short: "Reactivate a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ruleIDArg(args)
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return st.SetRuleActive(cmd.Context(), id, true)
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a rule permanently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ruleIDArg(args)
		if err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return st.DeleteRule(cmd.Context(), id)
	},
}

var rulesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the built-in starter rules into an empty rule table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		seeded, err := corrections.SeedRules(cmd.Context(), st)
		if err != nil {
			return err
		}
		fmt.Printf("seeded %d rules\n", seeded)
		return nil
	},
}

func init() {
	rulesListCmd.Flags().StringVar(&rulesListCategory, "category", "", "filter by category (college_name|program_name|location|quota|category)")
	rulesListCmd.Flags().BoolVar(&rulesListAll, "all", false, "include inactive rules")

	rulesAddCmd.Flags().StringVar(&ruleAddCategory, "category", "", "rule category (required)")
	rulesAddCmd.Flags().StringVar(&ruleAddErrorType, "error-type", string(model.ErrorOCR), "error type (ocr_error|format_error|ocr_duplication)")
	rulesAddCmd.Flags().StringVar(&ruleAddPattern, "pattern", "", "regex pattern (required)")
	rulesAddCmd.Flags().StringVar(&ruleAddFlags, "flags", "i", "regex flags")
	rulesAddCmd.Flags().StringVar(&ruleAddReplacement, "replacement", "", "replacement text")
	rulesAddCmd.Flags().IntVar(&ruleAddPriority, "priority", 50, "rule priority (higher runs first)")
	_ = rulesAddCmd.MarkFlagRequired("category")
	_ = rulesAddCmd.MarkFlagRequired("pattern")

	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesDisableCmd, rulesEnableCmd, rulesDeleteCmd, rulesSeedCmd)
	rootCmd.AddCommand(rulesCmd)
}
