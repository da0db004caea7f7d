package report

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/user/idguard/pkg/finding"
)

func roundTrip(t *testing.T, findings []finding.Finding) []finding.Finding {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteTechnical(&buf, findings); err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseTechnical(&buf)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestRoundTripAllFields(t *testing.T) {
	f := finding.Finding{
		Severity:         finding.SeverityCritical,
		Category:         "Kerberoasting",
		Title:            "Kerberoastable Privileged Account",
		Description:      "2 privileged account(s) have service principal names set.",
		Impact:           "Any domain user can request and crack their service tickets.",
		Remediation:      "Remove the SPNs or migrate to managed service accounts.",
		AffectedEntities: []string{"SVC_SQL@CORP.LOCAL", "SVC_WEB@CORP.LOCAL"},
	}
	parsed := roundTrip(t, []finding.Finding{f})
	if len(parsed) != 1 {
		t.Fatalf("parsed %d findings", len(parsed))
	}
	if !reflect.DeepEqual(parsed[0], f) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", parsed[0], f)
	}
}

func TestRoundTripMinimalFinding(t *testing.T) {
	f := finding.Finding{Severity: finding.SeverityInfo, Title: "Baseline Noted", Category: "General"}
	parsed := roundTrip(t, []finding.Finding{f})
	if len(parsed) != 1 || !reflect.DeepEqual(parsed[0], f) {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestRoundTripLongDescriptionWraps(t *testing.T) {
	f := finding.Finding{
		Severity: finding.SeverityMedium,
		Category: "Password Policy",
		Title:    "Wordy Condition",
		Description: strings.TrimSpace(strings.Repeat("the quick brown fox jumps over the lazy dog ", 8)),
	}
	var buf bytes.Buffer
	if err := WriteTechnical(&buf, []finding.Finding{f}); err != nil {
		t.Fatal(err)
	}
	// The description must actually span continuation lines.
	indented := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.HasPrefix(line, fieldIndent) && !strings.Contains(line, ":") {
			indented++
		}
	}
	if indented < 2 {
		t.Fatalf("description did not wrap: %q", buf.String())
	}

	parsed, err := ParseTechnical(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if parsed[0].Description != f.Description {
		t.Errorf("description mismatch:\n got  %q\n want %q", parsed[0].Description, f.Description)
	}
}

func TestSerializeOrdersBySeverity(t *testing.T) {
	findings := []finding.Finding{
		{Severity: finding.SeverityLow, Title: "C", Category: "x"},
		{Severity: finding.SeverityCritical, Title: "A", Category: "x"},
		{Severity: finding.SeverityHigh, Title: "B", Category: "x"},
		{Severity: finding.SeverityCritical, Title: "A2", Category: "x"},
	}
	parsed := roundTrip(t, findings)
	var titles []string
	for _, f := range parsed {
		titles = append(titles, f.Title)
	}
	want := []string{"A", "A2", "B", "C"}
	if !reflect.DeepEqual(titles, want) {
		t.Errorf("order = %v, want %v", titles, want)
	}
}

func TestUnknownSeverityDropsSingleFinding(t *testing.T) {
	text := "🔴 [CRITICAL] Keep Me\n" +
		"   Category: x\n" +
		"\n" +
		"🟠 [SEVERE] Drop Me\n" +
		"   Category: y\n" +
		"\n" +
		"🔵 [LOW] Keep Me Too\n" +
		"   Category: z\n" +
		"\n"
	parsed, err := ParseTechnical(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 2 {
		t.Fatalf("parsed = %+v", parsed)
	}
	if parsed[0].Title != "Keep Me" || parsed[1].Title != "Keep Me Too" {
		t.Errorf("parsed titles = %q, %q", parsed[0].Title, parsed[1].Title)
	}
}

func TestIndentedBracketedTextIsNotAHeader(t *testing.T) {
	text := "🟠 [HIGH] Real Finding\n" +
		"   Category: ACLs\n" +
		"   rights [GenericAll] granted on the object\n" +
		"\n"
	parsed, err := ParseTechnical(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if len(parsed) != 1 {
		t.Fatalf("parsed = %+v", parsed)
	}
	if parsed[0].Description != "rights [GenericAll] granted on the object" {
		t.Errorf("description = %q", parsed[0].Description)
	}
}

func TestReferencesParsedAndDiscarded(t *testing.T) {
	text := "🟡 [MEDIUM] With References\n" +
		"   Category: Hygiene\n" +
		"   Some descriptive text.\n" +
		"   Impact: limited\n" +
		"   References: https://example.invalid/rule\n" +
		"\n"
	parsed, err := ParseTechnical(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	f := parsed[0]
	if f.Description != "Some descriptive text." || f.Impact != "limited" {
		t.Errorf("finding = %+v", f)
	}
	if strings.Contains(f.Description, "example.invalid") || strings.Contains(f.Remediation, "example.invalid") {
		t.Errorf("references leaked into finding: %+v", f)
	}
}

func TestIssuePrefixFeedsDescription(t *testing.T) {
	text := "🔵 [LOW] Legacy Layout\n" +
		"   Category: Hygiene\n" +
		"   Issue: the condition detected by an older report layout\n" +
		"\n"
	parsed, err := ParseTechnical(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if parsed[0].Description != "the condition detected by an older report layout" {
		t.Errorf("description = %q", parsed[0].Description)
	}
}

func TestDescriptionStopsAfterNonCategoryField(t *testing.T) {
	text := "🟠 [HIGH] Zoned\n" +
		"   Category: Hygiene\n" +
		"   first part of the description\n" +
		"   Impact: bad\n" +
		"   trailing line that is not description\n" +
		"\n"
	parsed, err := ParseTechnical(strings.NewReader(text))
	if err != nil {
		t.Fatal(err)
	}
	if parsed[0].Description != "first part of the description" {
		t.Errorf("description = %q", parsed[0].Description)
	}
}
