package corrections

import (
	"context"
	_ "embed"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/neetlogiq/cutoff-cli/internal/model"
)

//go:embed seed_rules.yaml
var seedRulesYAML []byte

type seedRule struct {
	Category     model.RuleCategory  `yaml:"category"`
	ErrorType    model.RuleErrorType `yaml:"error_type"`
	Pattern      string              `yaml:"pattern"`
	RegexPattern string              `yaml:"regex_pattern"`
	RegexFlags   string              `yaml:"regex_flags"`
	Replacement  string              `yaml:"replacement"`
	Priority     int                 `yaml:"priority"`
}

// RuleWriter is the slice of the store the seeder needs.
type RuleWriter interface {
	CountRules(ctx context.Context) (int64, error)
	CreateRule(ctx context.Context, rule *model.CorrectionRule) error
}

// SeedRules loads the embedded rule set into an empty rule table.
// A non-empty table is left untouched; returns the number inserted.
func SeedRules(ctx context.Context, dst RuleWriter) (int, error) {
	count, err := dst.CountRules(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "corrections: count rules")
	}
	if count > 0 {
		zap.L().Debug("corrections: rule table already seeded", zap.Int64("rules", count))
		return 0, nil
	}

	rules, err := ParseSeedRules()
	if err != nil {
		return 0, err
	}

	for i := range rules {
		if err := dst.CreateRule(ctx, &rules[i]); err != nil {
			return i, eris.Wrapf(err, "corrections: seed rule %q", rules[i].Pattern)
		}
	}

	zap.L().Info("corrections: seeded rules", zap.Int("count", len(rules)))
	return len(rules), nil
}

// ParseSeedRules decodes the embedded YAML rule set.
func ParseSeedRules() ([]model.CorrectionRule, error) {
	var seeds []seedRule
	if err := yaml.Unmarshal(seedRulesYAML, &seeds); err != nil {
		return nil, eris.Wrap(err, "corrections: parse seed rules")
	}

	rules := make([]model.CorrectionRule, 0, len(seeds))
	for _, s := range seeds {
		rules = append(rules, model.CorrectionRule{
			Category:     s.Category,
			ErrorType:    s.ErrorType,
			Pattern:      s.Pattern,
			RegexPattern: s.RegexPattern,
			RegexFlags:   s.RegexFlags,
			Replacement:  s.Replacement,
			Priority:     s.Priority,
			Active:       true,
		})
	}
	return rules, nil
}
