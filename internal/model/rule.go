package model

import "time"

// RuleCategory scopes a correction rule to the field it repairs.
type RuleCategory string

const (
	RuleCollegeName RuleCategory = "college_name"
	RuleProgramName RuleCategory = "program_name"
	RuleLocation    RuleCategory = "location"
	RuleQuota       RuleCategory = "quota"
	RuleCategoryCol RuleCategory = "category"
)

// RuleErrorType classifies the kind of source defect a rule repairs.
type RuleErrorType string

const (
	ErrorOCR         RuleErrorType = "ocr_error"
	ErrorFormat      RuleErrorType = "format_error"
	ErrorDuplication RuleErrorType = "ocr_duplication"
)

// CorrectionRule is a persisted pattern -> replacement repair rule.
// Pattern holds the literal form for search and documentation; the regex
// pattern plus flags is what actually runs.
type CorrectionRule struct {
	ID           int64         `json:"id"`
	Category     RuleCategory  `json:"category"`
	ErrorType    RuleErrorType `json:"error_type"`
	Pattern      string        `json:"pattern"`
	RegexPattern string        `json:"regex_pattern"`
	RegexFlags   string        `json:"regex_flags,omitempty"`
	Replacement  string        `json:"replacement"`
	Priority     int           `json:"priority"`
	Active       bool          `json:"active"`
	UsageCount   int64         `json:"usage_count"`
	SuccessCount int64         `json:"success_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
