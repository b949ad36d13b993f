// Package corrections applies regex-based repair rules to OCR-damaged
// source text. Rules live in the store; an Applier is a frozen,
// compiled snapshot of the active rule set taken once per import session
// so results stay reproducible even if rules change mid-run.
package corrections

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/neetlogiq/cutoff-cli/internal/model"
)

// RuleSource is the slice of the store the normalizer needs.
type RuleSource interface {
	// ListRules returns rules for a category (all categories when empty),
	// ordered by priority descending then id ascending.
	ListRules(ctx context.Context, category model.RuleCategory, activeOnly bool) ([]model.CorrectionRule, error)
	// BumpRuleStats batch-increments usage/success counters.
	BumpRuleStats(ctx context.Context, stats map[int64]RuleStat) error
}

// RuleStat is an increment for one rule's counters.
type RuleStat struct {
	Usage   int64
	Success int64
}

// Applied records one successful rule application.
type Applied struct {
	RuleID      int64               `json:"rule_id"`
	Pattern     string              `json:"pattern"`
	Replacement string              `json:"replacement"`
	ErrorType   model.RuleErrorType `json:"error_type"`
}

// Result is the outcome of normalizing one string.
type Result struct {
	Original    string    `json:"original"`
	Corrected   string    `json:"corrected"`
	Corrections []Applied `json:"corrections,omitempty"`
}

type compiledRule struct {
	rule model.CorrectionRule
	re   *regexp.Regexp
}

// Applier holds a frozen, compiled rule set plus a stats accumulator.
// Safe for concurrent use: rules are read-only after Snapshot and the
// accumulator is mutex-guarded.
type Applier struct {
	byCategory map[model.RuleCategory][]compiledRule
	all        []compiledRule
	stats      *StatsAccumulator
}

// Snapshot fetches the active rules once and compiles them. A malformed
// regex disables that single rule with a warning; it never aborts the
// snapshot.
func Snapshot(ctx context.Context, src RuleSource) (*Applier, error) {
	rules, err := src.ListRules(ctx, "", true)
	if err != nil {
		return nil, eris.Wrap(err, "corrections: snapshot rules")
	}

	a := &Applier{
		byCategory: make(map[model.RuleCategory][]compiledRule),
		stats:      NewStatsAccumulator(),
	}

	for _, rule := range rules {
		re, err := compileRule(rule)
		if err != nil {
			zap.L().Warn("corrections: skipping malformed rule",
				zap.Int64("rule_id", rule.ID),
				zap.String("regex", rule.RegexPattern),
				zap.Error(err),
			)
			continue
		}
		cr := compiledRule{rule: rule, re: re}
		a.byCategory[rule.Category] = append(a.byCategory[rule.Category], cr)
		a.all = append(a.all, cr)
	}

	zap.L().Debug("corrections: rule snapshot ready",
		zap.Int("rules", len(a.all)),
		zap.Int("skipped", len(rules)-len(a.all)),
	)

	return a, nil
}

// compileRule translates the stored pattern plus flags into a Go regexp.
// Only the "i" flag changes compilation; replacement is always global.
func compileRule(rule model.CorrectionRule) (*regexp.Regexp, error) {
	pattern := rule.RegexPattern
	if pattern == "" {
		return nil, eris.New("empty regex pattern")
	}
	if strings.Contains(rule.RegexFlags, "i") {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

// Apply runs the rule cascade for a category (all rules when category is
// empty) over text. Each rule sees the output of the previous one, so
// corrections are cumulative within a single call.
func (a *Applier) Apply(text string, category model.RuleCategory) Result {
	result := Result{Original: text, Corrected: text}

	rules := a.all
	if category != "" {
		rules = a.byCategory[category]
	}

	current := text
	for _, cr := range rules {
		if !cr.re.MatchString(current) {
			continue
		}

		current = cr.re.ReplaceAllString(current, cr.rule.Replacement)
		result.Corrections = append(result.Corrections, Applied{
			RuleID:      cr.rule.ID,
			Pattern:     cr.rule.Pattern,
			Replacement: cr.rule.Replacement,
			ErrorType:   cr.rule.ErrorType,
		})
		a.stats.Record(cr.rule.ID)
	}

	result.Corrected = strings.TrimSpace(current)
	return result
}

// Stats exposes the accumulator for the session-end flush.
func (a *Applier) Stats() *StatsAccumulator {
	return a.stats
}

// RuleCount reports how many rules compiled into the snapshot.
func (a *Applier) RuleCount() int {
	return len(a.all)
}
