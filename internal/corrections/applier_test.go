package corrections

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neetlogiq/cutoff-cli/internal/model"
)

// fakeRuleSource serves a fixed rule list and records stat flushes.
type fakeRuleSource struct {
	rules    []model.CorrectionRule
	listErr  error
	bumpErr  error
	bumped   map[int64]RuleStat
	bumpCall int
}

func (f *fakeRuleSource) ListRules(_ context.Context, category model.RuleCategory, activeOnly bool) ([]model.CorrectionRule, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.CorrectionRule
	for _, r := range f.rules {
		if category != "" && r.Category != category {
			continue
		}
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRuleSource) BumpRuleStats(_ context.Context, stats map[int64]RuleStat) error {
	f.bumpCall++
	if f.bumpErr != nil {
		return f.bumpErr
	}
	f.bumped = stats
	return nil
}

func seededSource(t *testing.T) *fakeRuleSource {
	t.Helper()
	rules, err := ParseSeedRules()
	require.NoError(t, err)
	for i := range rules {
		rules[i].ID = int64(i + 1)
	}
	return &fakeRuleSource{rules: rules}
}

func snapshot(t *testing.T, src RuleSource) *Applier {
	t.Helper()
	a, err := Snapshot(context.Background(), src)
	require.NoError(t, err)
	return a
}

func TestApply_OCRCorrections(t *testing.T) {
	a := snapshot(t, seededSource(t))

	res := a.Apply("B.J. MDAL COLLEGE, AHMDAD", model.RuleCollegeName)
	assert.Equal(t, "B.J. MEDICAL COLLEGE, AHMEDABAD", res.Corrected)
	assert.Equal(t, "B.J. MDAL COLLEGE, AHMDAD", res.Original)
	assert.NotEmpty(t, res.Corrections)
}

func TestApply_ProgramWrapper(t *testing.T) {
	a := snapshot(t, seededSource(t))

	res := a.Apply("MD(GENERAL MEDICINE)", model.RuleProgramName)
	assert.Equal(t, "GENERAL MEDICINE", res.Corrected)
}

func TestApply_DuplicationCollapse(t *testing.T) {
	a := snapshot(t, seededSource(t))

	res := a.Apply("RADIORADIODIAGNOSISRADIODIAGNOSIS", model.RuleProgramName)
	assert.Equal(t, "RADIODIAGNOSIS", res.Corrected)
}

func TestApply_IsFixedPoint(t *testing.T) {
	a := snapshot(t, seededSource(t))

	inputs := []struct {
		text     string
		category model.RuleCategory
	}{
		{"B.J. MDAL COLLEGE, AHMDAD", model.RuleCollegeName},
		{"MD(GENERAL MEDICINE)", model.RuleProgramName},
		{"RADIORADIODIAGNOSISRADIODIAGNOSIS", model.RuleProgramName},
		{"GOVT  MEDICAL   COLLGE", model.RuleCollegeName},
		{"BANGLORE", model.RuleLocation},
	}
	for _, in := range inputs {
		first := a.Apply(in.text, in.category)
		second := a.Apply(first.Corrected, in.category)
		assert.Equal(t, first.Corrected, second.Corrected, "input %q", in.text)
	}
}

func TestApply_CumulativeAcrossRules(t *testing.T) {
	src := &fakeRuleSource{rules: []model.CorrectionRule{
		{ID: 1, Category: model.RuleCollegeName, RegexPattern: "AAA", Replacement: "BBB", Active: true, Priority: 20},
		{ID: 2, Category: model.RuleCollegeName, RegexPattern: "BBB", Replacement: "CCC", Active: true, Priority: 10},
	}}
	a := snapshot(t, src)

	// Rule 2 operates on rule 1's output, not the original input.
	res := a.Apply("AAA", model.RuleCollegeName)
	assert.Equal(t, "CCC", res.Corrected)
	require.Len(t, res.Corrections, 2)
	assert.Equal(t, int64(1), res.Corrections[0].RuleID)
	assert.Equal(t, int64(2), res.Corrections[1].RuleID)
}

func TestApply_CaseInsensitiveFlag(t *testing.T) {
	src := &fakeRuleSource{rules: []model.CorrectionRule{
		{ID: 1, Category: model.RuleCollegeName, RegexPattern: "mdal", RegexFlags: "i", Replacement: "MEDICAL", Active: true},
	}}
	a := snapshot(t, src)

	assert.Equal(t, "MEDICAL", a.Apply("MDAL", model.RuleCollegeName).Corrected)
}

func TestApply_EmptyCategoryUsesAllRules(t *testing.T) {
	src := &fakeRuleSource{rules: []model.CorrectionRule{
		{ID: 1, Category: model.RuleCollegeName, RegexPattern: "X", Replacement: "Y", Active: true},
		{ID: 2, Category: model.RuleProgramName, RegexPattern: "Y", Replacement: "Z", Active: true},
	}}
	a := snapshot(t, src)

	assert.Equal(t, "Z", a.Apply("X", "").Corrected)
}

func TestApply_NoMatchingRules(t *testing.T) {
	a := snapshot(t, seededSource(t))

	res := a.Apply("KASTURBA MEDICAL COLLEGE", model.RuleQuota)
	assert.Equal(t, "KASTURBA MEDICAL COLLEGE", res.Corrected)
	assert.Empty(t, res.Corrections)
}

func TestSnapshot_SkipsMalformedRegex(t *testing.T) {
	src := &fakeRuleSource{rules: []model.CorrectionRule{
		{ID: 1, Category: model.RuleCollegeName, RegexPattern: "([unclosed", Replacement: "X", Active: true, Priority: 20},
		{ID: 2, Category: model.RuleCollegeName, RegexPattern: "GOOD", Replacement: "FIXED", Active: true, Priority: 10},
	}}
	a := snapshot(t, src)

	assert.Equal(t, 1, a.RuleCount())
	assert.Equal(t, "FIXED", a.Apply("GOOD", model.RuleCollegeName).Corrected)
}

func TestSnapshot_ListError(t *testing.T) {
	src := &fakeRuleSource{listErr: eris.New("db down")}
	_, err := Snapshot(context.Background(), src)
	require.Error(t, err)
}

func TestStats_RecordedAndFlushed(t *testing.T) {
	src := seededSource(t)
	a := snapshot(t, src)

	a.Apply("B.J. MDAL COLLEGE, AHMDAD", model.RuleCollegeName)
	a.Apply("MDAL", model.RuleCollegeName)

	pending := a.Stats().Snapshot()
	assert.NotEmpty(t, pending)

	a.Stats().Flush(context.Background(), src)
	assert.NotEmpty(t, src.bumped)

	// Flushing clears the accumulator.
	a.Stats().Flush(context.Background(), src)
	assert.Equal(t, 1, src.bumpCall)
}

func TestStats_FlushFailureIsSwallowed(t *testing.T) {
	src := seededSource(t)
	src.bumpErr = eris.New("stats table locked")
	a := snapshot(t, src)

	a.Apply("MDAL COLLEGE", model.RuleCollegeName)
	// Must not panic or propagate.
	a.Stats().Flush(context.Background(), src)
}

func TestParseSeedRules(t *testing.T) {
	rules, err := ParseSeedRules()
	require.NoError(t, err)
	assert.NotEmpty(t, rules)
	for _, r := range rules {
		assert.True(t, r.Active)
		assert.NotEmpty(t, r.RegexPattern, "rule %q", r.Pattern)
		assert.NotEmpty(t, r.Category)
	}
}
