package aip

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mhollis/airscore/internal/model"
)

func TestParse_Keywords(t *testing.T) {
	p := NewTextParser()

	text := "Prior permission required for all non-scheduled flights. " +
		"Customs available with 24 hrs advance notice. " +
		"The runway is 800m grass."

	rules, err := p.Parse("LFAB", text)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(rules.Rules) != 2 {
		t.Fatalf("Expected 2 rules, got %d: %+v", len(rules.Rules), rules.Rules)
	}

	if rules.Rules[0].Kind != model.RulePPR {
		t.Errorf("Expected first rule ppr, got %s", rules.Rules[0].Kind)
	}
	if rules.Rules[1].Kind != model.RuleCustoms {
		t.Errorf("Expected second rule customs, got %s", rules.Rules[1].Kind)
	}
	if rules.Rules[1].NoticeHours != 24 {
		t.Errorf("Expected 24h notice on the customs rule, got %v", rules.Rules[1].NoticeHours)
	}
	if rules.ProcessedAt.IsZero() {
		t.Error("Expected a processing timestamp")
	}
}

func TestParse_OneRulePerSentence(t *testing.T) {
	p := NewTextParser()

	// A sentence with both PPR and customs keywords yields one rule,
	// using the first matching keyword.
	rules, err := p.Parse("EGLL", "PPR and customs notification are both mandatory here.")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(rules.Rules) != 1 {
		t.Fatalf("Expected 1 rule, got %d", len(rules.Rules))
	}
	if rules.Rules[0].Kind != model.RulePPR {
		t.Errorf("Expected the first matching keyword to win, got %s", rules.Rules[0].Kind)
	}
}

func TestParse_Empty(t *testing.T) {
	p := NewTextParser()

	_, err := p.Parse("LFAB", "   \n  ")
	if err == nil {
		t.Fatal("Expected an error for empty text")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected *ParseError, got %T: %v", err, err)
	}
	if parseErr.ICAO != "LFAB" {
		t.Errorf("Expected error for LFAB, got %s", parseErr.ICAO)
	}
}

func TestSummarize_NoRules(t *testing.T) {
	p := NewTextParser()

	summary, contribution := p.Summarize(model.ParsedAIPRules{ICAO: "LFAB"})
	if contribution != 0.0 {
		t.Errorf("Expected zero contribution with no rules, got %v", contribution)
	}
	if summary.Summary != "no notification requirements" {
		t.Errorf("Unexpected summary: %q", summary.Summary)
	}
}

func TestSummarize_Contributions(t *testing.T) {
	p := NewTextParser()

	rules := model.ParsedAIPRules{
		ICAO: "LFAB",
		Rules: []model.AIPRule{
			{Kind: model.RulePPR, Text: "PPR required."},
			{Kind: model.RuleCustoms, Text: "Customs with 24 hours notice.", NoticeHours: 24},
		},
	}

	summary, contribution := p.Summarize(rules)
	if !summary.PPRRequired || !summary.CustomsRequired {
		t.Errorf("Expected PPR and customs flags set, got %+v", summary)
	}
	if summary.MaxNoticeHours != 24 {
		t.Errorf("Expected max notice 24h, got %v", summary.MaxNoticeHours)
	}

	// 0.35 (PPR) + 0.25 (customs) + 0.2 (24h notice)
	if math.Abs(contribution-0.8) > 1e-9 {
		t.Errorf("Expected contribution 0.8, got %v", contribution)
	}
}

func TestSummarize_NoticeScaling(t *testing.T) {
	p := NewTextParser()

	contributionAt := func(hours float64) float64 {
		_, c := p.Summarize(model.ParsedAIPRules{Rules: []model.AIPRule{
			{Kind: model.RuleNotice, NoticeHours: hours},
		}})
		return c
	}

	if got := contributionAt(24); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("Expected 0.2 at 24h, got %v", got)
	}
	if got := contributionAt(72); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("Expected 0.4 at 72h, got %v", got)
	}
	if got := contributionAt(168); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("Expected the cap 0.4 beyond 72h, got %v", got)
	}
	want := 0.2 + 0.2*(2.0-24.0)/48.0
	if got := contributionAt(2); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %v for 2h notice, got %v", want, got)
	}
}

func TestSummarize_Capped(t *testing.T) {
	p := NewTextParser()

	_, contribution := p.Summarize(model.ParsedAIPRules{Rules: []model.AIPRule{
		{Kind: model.RulePPR},
		{Kind: model.RuleCustoms},
		{Kind: model.RuleNotice, NoticeHours: 96},
	}})
	if contribution > 1.0 {
		t.Errorf("Expected contribution capped at 1.0, got %v", contribution)
	}
}

func TestStripHTML(t *testing.T) {
	text, err := StripHTML(`<html><head><style>body{}</style><script>var x;</script></head>` +
		`<body><h1>LFAB</h1><p>Prior permission required.</p></body></html>`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if text != "LFAB Prior permission required." {
		t.Errorf("Unexpected stripped text: %q", text)
	}
	for _, forbidden := range []string{"var x", "body{}"} {
		if strings.Contains(text, forbidden) {
			t.Errorf("Expected script/style content removed, found %q", forbidden)
		}
	}
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string, mtime time.Time) {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("Failed to set mtime on %s: %v", name, err)
		}
	}

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	write("lfab.txt", "Prior permission required.", recent)
	write("EGLL.html", "<p>Customs available.</p>", recent)
	write("EHAM.txt", "Old publication.", old)
	write("notes.md", "ignored", recent)
	write("TOOLONGNAME.txt", "ignored", recent)

	source := NewDirectorySource(dir)

	docs, err := source.Fetch(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// EHAM predates the cursor; the non-AIP files are skipped.
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d: %+v", len(docs), docs)
	}

	// Sorted by ICAO, names uppercased.
	if docs[0].ICAO != "EGLL" || docs[1].ICAO != "LFAB" {
		t.Errorf("Expected [EGLL LFAB], got [%s %s]", docs[0].ICAO, docs[1].ICAO)
	}
	if docs[0].Text != "Customs available." {
		t.Errorf("Expected HTML stripped to text, got %q", docs[0].Text)
	}
	if !docs[0].UpdatedAt.Equal(recent) {
		t.Errorf("Expected the file mtime as UpdatedAt, got %v", docs[0].UpdatedAt)
	}
}

func TestDirectorySource_MissingDir(t *testing.T) {
	source := NewDirectorySource(filepath.Join(t.TempDir(), "absent"))
	if _, err := source.Fetch(context.Background(), time.Time{}); err == nil {
		t.Fatal("Expected an error for a missing directory")
	}
}
