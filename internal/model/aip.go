package model

import "time"

// AIPRuleKind classifies a parsed notification rule.
type AIPRuleKind string

const (
	RulePPR      AIPRuleKind = "ppr"      // Prior permission required
	RuleCustoms  AIPRuleKind = "customs"  // Customs/immigration notice
	RuleNotice   AIPRuleKind = "notice"   // Generic advance-notice requirement
	RuleOperator AIPRuleKind = "operator" // Contact-the-operator requirement
)

// AIPRule is one structured notification rule parsed from AIP text.
type AIPRule struct {
	Kind        AIPRuleKind `json:"kind"`
	Text        string      `json:"text"`                   // Source sentence the rule was derived from
	NoticeHours float64     `json:"notice_hours,omitempty"` // Required advance notice, 0 if unspecified
}

// ParsedAIPRules is the set of rules parsed from one airport's AIP text.
type ParsedAIPRules struct {
	ICAO        string    `json:"icao"`
	Rules       []AIPRule `json:"rules"`
	ProcessedAt time.Time `json:"processed_at"`
}

// RuleSummary is the operator-facing digest of an airport's rules plus
// the hassle contribution derived from them.
type RuleSummary struct {
	ICAO            string    `json:"icao"`
	PPRRequired     bool      `json:"ppr_required"`
	CustomsRequired bool      `json:"customs_required"`
	MaxNoticeHours  float64   `json:"max_notice_hours"`
	Summary         string    `json:"summary"`
	ProcessedAt     time.Time `json:"processed_at"`
}
