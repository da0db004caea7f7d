package detect

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/user/idguard/pkg/finding"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func findingsByTitle(findings []finding.Finding) map[string]finding.Finding {
	m := make(map[string]finding.Finding, len(findings))
	for _, f := range findings {
		m[f.Title] = f
	}
	return m
}

func TestWeakMinimumPasswordLengthOnly(t *testing.T) {
	doc := &DirectoryConfig{
		PasswordPolicy: &PasswordPolicy{
			MinimumPasswordLength: 8,
			PasswordComplexity:    true,
			LockoutThreshold:      5,
			MaximumPasswordAge:    90,
		},
		LDAPSettings: &LDAPSettings{SigningRequired: true, ChannelBindingEnabled: true, TLSEnabled: true},
	}

	findings := DetectDirectoryConfig(doc, testNow)
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 finding, got %d: %+v", len(findings), findings)
	}
	f := findings[0]
	if f.Title != "Weak Minimum Password Length" {
		t.Errorf("title = %q", f.Title)
	}
	if f.Severity != finding.SeverityHigh {
		t.Errorf("severity = %s, want HIGH", f.Severity)
	}
}

func TestMissingPasswordPolicyIsAFinding(t *testing.T) {
	doc := &DirectoryConfig{
		LDAPSettings: &LDAPSettings{SigningRequired: true, ChannelBindingEnabled: true, TLSEnabled: true},
	}
	byTitle := findingsByTitle(DetectDirectoryConfig(doc, testNow))
	f, ok := byTitle["No Password Policy Configured"]
	if !ok {
		t.Fatal("missing policy did not produce a finding")
	}
	if f.Severity != finding.SeverityHigh {
		t.Errorf("severity = %s, want HIGH", f.Severity)
	}
}

func TestLDAPAbsenceEmitsAllHardeningFindings(t *testing.T) {
	doc := &DirectoryConfig{
		PasswordPolicy: &PasswordPolicy{MinimumPasswordLength: 14, PasswordComplexity: true, LockoutThreshold: 5, MaximumPasswordAge: 60},
	}
	byTitle := findingsByTitle(DetectDirectoryConfig(doc, testNow))

	if f := byTitle["LDAP Signing Not Enforced"]; f.Severity != finding.SeverityCritical {
		t.Errorf("signing severity = %s, want CRITICAL", f.Severity)
	}
	if f := byTitle["LDAP Channel Binding Disabled"]; f.Severity != finding.SeverityHigh {
		t.Errorf("channel binding severity = %s, want HIGH", f.Severity)
	}
	if f := byTitle["LDAP Connections Without TLS"]; f.Severity != finding.SeverityHigh {
		t.Errorf("tls severity = %s, want HIGH", f.Severity)
	}
}

func TestDomainControllerHygiene(t *testing.T) {
	doc := &DirectoryConfig{
		PasswordPolicy: &PasswordPolicy{MinimumPasswordLength: 14, PasswordComplexity: true, LockoutThreshold: 5},
		LDAPSettings:   &LDAPSettings{SigningRequired: true, ChannelBindingEnabled: true, TLSEnabled: true},
		DomainControllers: []DomainController{
			{Name: "DC01", OperatingSystem: "Windows Server 2012 R2 Standard", LastPatchDate: testNow.AddDate(0, 0, -10).Format(time.RFC3339)},
			{Name: "DC02", OperatingSystem: "Windows Server 2022 Standard", LastPatchDate: testNow.AddDate(0, 0, -120).Format(time.RFC3339)},
		},
	}
	byTitle := findingsByTitle(DetectDirectoryConfig(doc, testNow))

	eol, ok := byTitle["End-of-Life Domain Controller Operating System"]
	if !ok || eol.Severity != finding.SeverityCritical {
		t.Fatalf("eol finding = %+v", eol)
	}
	if len(eol.AffectedEntities) != 1 || eol.AffectedEntities[0] != "DC01" {
		t.Errorf("eol entities = %v, want [DC01]", eol.AffectedEntities)
	}

	patch, ok := byTitle["Domain Controller Patching Overdue"]
	if !ok || patch.Severity != finding.SeverityHigh {
		t.Fatalf("patch finding = %+v", patch)
	}
	if len(patch.AffectedEntities) != 1 || patch.AffectedEntities[0] != "DC02" {
		t.Errorf("patch entities = %v, want [DC02]", patch.AffectedEntities)
	}
}

func TestServiceAccountRules(t *testing.T) {
	doc := &DirectoryConfig{
		PasswordPolicy: &PasswordPolicy{MinimumPasswordLength: 14, PasswordComplexity: true, LockoutThreshold: 5},
		LDAPSettings:   &LDAPSettings{SigningRequired: true, ChannelBindingEnabled: true, TLSEnabled: true},
		ServiceAccounts: []ServiceAccount{
			{SAMAccountName: "svc_sql", KerberosPreauthEnabled: false, PasswordLastSet: testNow.AddDate(0, 0, -30).Format(time.RFC3339)},
			{SAMAccountName: "svc_backup", KerberosPreauthEnabled: true, PasswordLastSet: testNow.AddDate(-2, 0, 0).Format(time.RFC3339)},
		},
	}
	byTitle := findingsByTitle(DetectDirectoryConfig(doc, testNow))

	preauth := byTitle["Service Account Without Kerberos Pre-Authentication"]
	if preauth.Severity != finding.SeverityCritical {
		t.Errorf("preauth severity = %s, want CRITICAL", preauth.Severity)
	}
	if len(preauth.AffectedEntities) != 1 || preauth.AffectedEntities[0] != "svc_sql" {
		t.Errorf("preauth entities = %v", preauth.AffectedEntities)
	}

	stale := byTitle["Service Account Password Unchanged Over a Year"]
	if stale.Severity != finding.SeverityHigh {
		t.Errorf("stale severity = %s, want HIGH", stale.Severity)
	}
	if len(stale.AffectedEntities) != 1 || stale.AffectedEntities[0] != "svc_backup" {
		t.Errorf("stale entities = %v", stale.AffectedEntities)
	}
}

func TestParseDirectoryConfigRejectsWrongShape(t *testing.T) {
	if _, err := ParseDirectoryConfig([]byte(`{"hosts": []}`)); err == nil {
		t.Error("expected error for document without recognized sections")
	}
	if _, err := ParseDirectoryConfig([]byte(`not json`)); err == nil {
		t.Error("expected error for non-JSON input")
	}
	if _, err := ParseDirectoryConfig(mustJSON(t, map[string]interface{}{"passwordPolicy": nil})); err != nil {
		t.Errorf("null section should parse (absence is a signal): %v", err)
	}
}
