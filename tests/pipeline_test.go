package tests

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/user/idguard/pkg/aggregate"
	"github.com/user/idguard/pkg/detect"
	"github.com/user/idguard/pkg/finding"
	"github.com/user/idguard/pkg/report"
)

// TestPipeline runs the full chain the assess command drives: detect each
// source, serialize the findings to technical report files, parse the files
// back, aggregate, and render the executive document. The findings must
// survive the text round trip unchanged.
func TestPipeline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	outDir := t.TempDir()

	// 1. Directory configuration with a weak password policy.
	adDoc, err := detect.ParseDirectoryConfig([]byte(`{
		"passwordPolicy": {"minimumPasswordLength": 8, "passwordComplexity": true, "lockoutThreshold": 5, "maximumPasswordAge": 90},
		"ldapSettings": {"signingRequired": true, "channelBindingEnabled": true, "tlsEnabled": true}
	}`))
	if err != nil {
		t.Fatal(err)
	}
	adFindings := detect.DetectDirectoryConfig(adDoc, now)

	// 2. Risk scan with one critical and one low rule.
	rules, err := detect.ParseRiskScan([]byte(`<HealthcheckData><RiskRules>
		<HealthcheckRiskRule><Points>52</Points><Category>Anomalies</Category><RiskId>A-Krbtgt</RiskId><Rationale>Stale krbtgt secret.</Rationale><Solution>Reset it twice.</Solution></HealthcheckRiskRule>
		<HealthcheckRiskRule><Points>12</Points><Category>Stale Objects</Category><RiskId>S-Inactive</RiskId><Rationale>Inactive accounts enabled.</Rationale><Solution>Disable them.</Solution></HealthcheckRiskRule>
	</RiskRules></HealthcheckData>`))
	if err != nil {
		t.Fatal(err)
	}
	scanFindings := detect.DetectRiskScan(rules, nil)

	emitted := map[string][]finding.Finding{
		detect.SourceDirectoryConfig: adFindings,
		detect.SourceRiskScan:        scanFindings,
	}

	// 3. Serialize each source to its technical report file.
	for source, findings := range emitted {
		path := filepath.Join(outDir, source+".txt")
		f, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := report.WriteTechnical(f, findings); err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
	}

	// 4. Parse the files back; findings must round-trip exactly.
	var sources []aggregate.SourceFindings
	for _, source := range []string{detect.SourceDirectoryConfig, detect.SourceRiskScan} {
		f, err := os.Open(filepath.Join(outDir, source+".txt"))
		if err != nil {
			t.Fatal(err)
		}
		parsed, err := report.ParseTechnical(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if len(parsed) != len(emitted[source]) {
			t.Fatalf("%s: parsed %d findings, emitted %d", source, len(parsed), len(emitted[source]))
		}
		for _, want := range emitted[source] {
			found := false
			for _, got := range parsed {
				if reflect.DeepEqual(got, want) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("%s: finding lost in round trip: %+v", source, want)
			}
		}
		sources = append(sources, aggregate.SourceFindings{Source: source, Findings: parsed})
	}

	// 5. Aggregate. One HIGH (weak length), one CRITICAL (52 pts), one LOW
	// (12 pts): weights 5+10+1 over 30 -> score 47.
	metrics := aggregate.Aggregate(sources, now)
	if metrics.Total != 3 {
		t.Fatalf("total = %d, want 3", metrics.Total)
	}
	if metrics.RiskScore != 47 {
		t.Errorf("risk score = %d, want 47", metrics.RiskScore)
	}
	if !metrics.HasCritical() {
		t.Error("expected a critical finding in the aggregate")
	}
	if metrics.BySeverity[finding.SeverityHigh] != 1 || metrics.BySeverity[finding.SeverityCritical] != 1 {
		t.Errorf("severity histogram = %+v", metrics.BySeverity)
	}

	// 6. Render the executive document.
	var buf bytes.Buffer
	if err := aggregate.RenderExecutive(&buf, metrics, "Contoso Ltd"); err != nil {
		t.Fatal(err)
	}
	doc := buf.String()
	for _, want := range []string{"Contoso Ltd", "Weak Minimum Password Length", detect.SourceRiskScan} {
		if !strings.Contains(doc, want) {
			t.Errorf("executive document missing %q", want)
		}
	}
}
