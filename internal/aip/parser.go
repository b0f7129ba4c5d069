// Package aip parses aeronautical-publication text into structured
// notification rules and derives a hassle contribution from them.
package aip

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mhollis/airscore/internal/model"
)

// ParseError reports unparseable AIP input for one airport.
type ParseError struct {
	ICAO   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("aip %s: %s", e.ICAO, e.Reason)
}

// Parser is the narrow interface to the AIP rule collaborator.
type Parser interface {
	Parse(icao string, rawText string) (model.ParsedAIPRules, error)
	Summarize(rules model.ParsedAIPRules) (model.RuleSummary, float64)
}

// TextParser extracts notification rules by keyword matching over
// sentences of the publication text.
type TextParser struct {
	now func() time.Time
}

// NewTextParser creates a parser using wall-clock time for processing
// timestamps.
func NewTextParser() *TextParser {
	return &TextParser{now: time.Now}
}

var noticeHoursPattern = regexp.MustCompile(`(\d+)\s*(?:hr|hrs|hours?)`)

// ruleKeywords maps matching keywords to rule kinds, checked in order.
var ruleKeywords = []struct {
	keyword string
	kind    model.AIPRuleKind
}{
	{"prior permission", model.RulePPR},
	{"ppr", model.RulePPR},
	{"customs", model.RuleCustoms},
	{"immigration", model.RuleCustoms},
	{"advance notice", model.RuleNotice},
	{"notify", model.RuleNotice},
	{"notification", model.RuleNotice},
	{"contact the operator", model.RuleOperator},
	{"contact airport operator", model.RuleOperator},
}

// Parse extracts structured rules from raw AIP text.
func (p *TextParser) Parse(icao string, rawText string) (model.ParsedAIPRules, error) {
	text := strings.TrimSpace(rawText)
	if text == "" {
		return model.ParsedAIPRules{}, &ParseError{ICAO: icao, Reason: "empty publication text"}
	}

	var rules []model.AIPRule
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, kw := range ruleKeywords {
			if !strings.Contains(lower, kw.keyword) {
				continue
			}

			rule := model.AIPRule{
				Kind: kw.kind,
				Text: sentence,
			}
			if match := noticeHoursPattern.FindStringSubmatch(lower); match != nil {
				hours, err := strconv.ParseFloat(match[1], 64)
				if err == nil {
					rule.NoticeHours = hours
				}
			}

			rules = append(rules, rule)
			break // One rule per sentence
		}
	}

	return model.ParsedAIPRules{
		ICAO:        icao,
		Rules:       rules,
		ProcessedAt: p.now().UTC(),
	}, nil
}

// Summarize derives the operator-facing digest and the hassle
// contribution in [0,1]. No rules at all means no hassle signal (0.0);
// PPR, customs, and long notice periods push the contribution up.
func (p *TextParser) Summarize(rules model.ParsedAIPRules) (model.RuleSummary, float64) {
	summary := model.RuleSummary{
		ICAO:        rules.ICAO,
		ProcessedAt: rules.ProcessedAt,
	}

	var parts []string
	for _, rule := range rules.Rules {
		switch rule.Kind {
		case model.RulePPR:
			summary.PPRRequired = true
		case model.RuleCustoms:
			summary.CustomsRequired = true
		}
		if rule.NoticeHours > summary.MaxNoticeHours {
			summary.MaxNoticeHours = rule.NoticeHours
		}
	}

	contribution := 0.0
	if summary.PPRRequired {
		contribution += 0.35
		parts = append(parts, "PPR required")
	}
	if summary.CustomsRequired {
		contribution += 0.25
		parts = append(parts, "customs notice required")
	}
	if summary.MaxNoticeHours > 0 {
		// 24h notice adds 0.2, scaling up to 0.4 at 72h or more
		scaled := 0.2 + 0.2*(summary.MaxNoticeHours-24)/48
		if scaled < 0.1 {
			scaled = 0.1
		}
		if scaled > 0.4 {
			scaled = 0.4
		}
		contribution += scaled
		parts = append(parts, fmt.Sprintf("%.0fh advance notice", summary.MaxNoticeHours))
	}
	if contribution > 1 {
		contribution = 1
	}

	if len(parts) == 0 {
		summary.Summary = "no notification requirements"
	} else {
		summary.Summary = strings.Join(parts, "; ")
	}

	return summary, contribution
}

// splitSentences splits text into sentences (simple heuristic).
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 10 && len(sentence) <= 600 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') {
				flush()
			}
		}
	}
	if current.Len() > 0 {
		flush()
	}

	return sentences
}
