package detect

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/idguard/pkg/finding"
)

// DirectoryConfig is the on-prem directory configuration export produced by
// the collection scripts. Optional sections are pointers so "not collected"
// is distinguishable from "collected with zero values".
type DirectoryConfig struct {
	PasswordPolicy    *PasswordPolicy    `json:"passwordPolicy"`
	LDAPSettings      *LDAPSettings      `json:"ldapSettings"`
	DomainControllers []DomainController `json:"domainControllers"`
	ServiceAccounts   []ServiceAccount   `json:"serviceAccounts"`
}

type PasswordPolicy struct {
	MinimumPasswordLength int  `json:"minimumPasswordLength"`
	PasswordComplexity    bool `json:"passwordComplexity"`
	LockoutThreshold      int  `json:"lockoutThreshold"`
	MaximumPasswordAge    int  `json:"maximumPasswordAge"` // days, 0 = never expires
}

type LDAPSettings struct {
	SigningRequired       bool `json:"signingRequired"`
	ChannelBindingEnabled bool `json:"channelBindingEnabled"`
	TLSEnabled            bool `json:"tlsEnabled"`
}

type DomainController struct {
	Name            string `json:"name"`
	OperatingSystem string `json:"operatingSystem"`
	LastPatchDate   string `json:"lastPatchDate"`
}

type ServiceAccount struct {
	SAMAccountName         string `json:"samAccountName"`
	KerberosPreauthEnabled bool   `json:"kerberosPreauthEnabled"`
	PasswordLastSet        string `json:"passwordLastSet"`
}

// eolServerReleases are OS release substrings past end of support.
var eolServerReleases = []string{
	"Windows Server 2000",
	"Windows Server 2003",
	"Windows Server 2008",
	"Windows Server 2012",
	"Windows 2000",
	"Windows NT",
}

// ParseDirectoryConfig validates the raw document shape. A document with
// none of the expected top-level keys is rejected outright; individual
// missing sections are detection signals, not errors.
func ParseDirectoryConfig(data []byte) (*DirectoryConfig, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("directory config: %w", err)
	}
	known := 0
	for _, k := range []string{"passwordPolicy", "ldapSettings", "domainControllers", "serviceAccounts"} {
		if _, ok := keys[k]; ok {
			known++
		}
	}
	if known == 0 {
		return nil, fmt.Errorf("directory config: document has no recognized sections")
	}
	var doc DirectoryConfig
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("directory config: %w", err)
	}
	return &doc, nil
}

// DetectDirectoryConfig runs every directory-configuration rule.
func DetectDirectoryConfig(doc *DirectoryConfig, now time.Time) []finding.Finding {
	var findings []finding.Finding
	findings = append(findings, checkPasswordPolicy(doc.PasswordPolicy)...)
	findings = append(findings, checkLDAPSettings(doc.LDAPSettings)...)
	findings = append(findings, checkDomainControllers(doc.DomainControllers, now)...)
	findings = append(findings, checkServiceAccounts(doc.ServiceAccounts, now)...)
	return findings
}

func checkPasswordPolicy(p *PasswordPolicy) []finding.Finding {
	const category = "Password Policy"
	if p == nil {
		return []finding.Finding{{
			Severity:    finding.SeverityHigh,
			Category:    category,
			Title:       "No Password Policy Configured",
			Description: "No domain password policy was found in the export. Accounts may be using unconstrained passwords.",
			Impact:      "Without a password policy, weak and non-expiring passwords go unchecked across the domain.",
			Remediation: "Define a default domain password policy or fine-grained password policies for all account tiers.",
		}}
	}

	var findings []finding.Finding
	if p.MinimumPasswordLength < 12 {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityHigh,
			Category:    category,
			Title:       "Weak Minimum Password Length",
			Description: fmt.Sprintf("The domain minimum password length is %d characters, below the recommended 12.", p.MinimumPasswordLength),
			Impact:      "Short passwords fall quickly to offline cracking once a hash is obtained.",
			Remediation: "Raise the minimum password length to at least 12 characters.",
		})
	}
	if !p.PasswordComplexity {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityMedium,
			Category:    category,
			Title:       "Password Complexity Disabled",
			Description: "Password complexity requirements are disabled in the domain policy.",
			Remediation: "Enable complexity requirements, or enforce passphrase length in their place.",
		})
	}
	if p.LockoutThreshold == 0 {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityMedium,
			Category:    category,
			Title:       "No Account Lockout Threshold",
			Description: "No lockout threshold is set, so failed sign-in attempts are unlimited.",
			Impact:      "Password spraying and online brute force attempts are never throttled.",
			Remediation: "Set an account lockout threshold (10 or fewer attempts) with a lockout duration.",
		})
	}
	if p.MaximumPasswordAge > 90 {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityLow,
			Category:    category,
			Title:       "Excessive Maximum Password Age",
			Description: fmt.Sprintf("The maximum password age is %d days, beyond the 90-day ceiling.", p.MaximumPasswordAge),
			Remediation: "Reduce the maximum password age to 90 days or adopt compensating controls such as banned-password checks.",
		})
	}
	return findings
}

func checkLDAPSettings(l *LDAPSettings) []finding.Finding {
	const category = "LDAP Security"
	// An absent section means none of the hardening settings are configured.
	if l == nil {
		l = &LDAPSettings{}
	}

	var findings []finding.Finding
	if !l.SigningRequired {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityCritical,
			Category:    category,
			Title:       "LDAP Signing Not Enforced",
			Description: "Domain controllers accept unsigned LDAP binds.",
			Impact:      "Unsigned LDAP traffic can be relayed or tampered with in transit, enabling NTLM relay to LDAP.",
			Remediation: "Set 'Domain controller: LDAP server signing requirements' to Require signing.",
		})
	}
	if !l.ChannelBindingEnabled {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityHigh,
			Category:    category,
			Title:       "LDAP Channel Binding Disabled",
			Description: "LDAPS connections are accepted without channel binding tokens.",
			Impact:      "Without channel binding, credentials relayed from other protocols are accepted over LDAPS.",
			Remediation: "Enable 'LdapEnforceChannelBinding' (value 2) on all domain controllers.",
		})
	}
	if !l.TLSEnabled {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityHigh,
			Category:    category,
			Title:       "LDAP Connections Without TLS",
			Description: "Directory connections are served in cleartext; LDAPS is not available or not required.",
			Remediation: "Deploy server certificates and require LDAPS (636/3269) for directory access.",
		})
	}
	return findings
}

func checkDomainControllers(dcs []DomainController, now time.Time) []finding.Finding {
	const category = "Domain Controller Hygiene"
	var eol, unpatched []string
	for _, dc := range dcs {
		for _, release := range eolServerReleases {
			if strings.Contains(dc.OperatingSystem, release) {
				eol = append(eol, dc.Name)
				break
			}
		}
		patched, ok := parseTime(dc.LastPatchDate)
		if !ok || daysSince(now, patched) > 90 {
			unpatched = append(unpatched, dc.Name)
		}
	}

	var findings []finding.Finding
	if len(eol) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityCritical,
			Category:         category,
			Title:            "End-of-Life Domain Controller Operating System",
			Description:      fmt.Sprintf("%d domain controller(s) run an operating system release that no longer receives security updates.", len(eol)),
			Impact:           "Unpatchable domain controllers expose the entire forest to known remote vulnerabilities.",
			Remediation:      "Migrate the FSMO roles and decommission or upgrade the listed domain controllers.",
			AffectedEntities: eol,
		})
	}
	if len(unpatched) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityHigh,
			Category:         category,
			Title:            "Domain Controller Patching Overdue",
			Description:      fmt.Sprintf("%d domain controller(s) have not installed updates in over 90 days.", len(unpatched)),
			Remediation:      "Bring the listed domain controllers into the monthly patch cycle.",
			AffectedEntities: unpatched,
		})
	}
	return findings
}

func checkServiceAccounts(accounts []ServiceAccount, now time.Time) []finding.Finding {
	const category = "Service Accounts"
	var noPreauth, stalePassword []string
	for _, a := range accounts {
		if !a.KerberosPreauthEnabled {
			noPreauth = append(noPreauth, a.SAMAccountName)
		}
		set, ok := parseTime(a.PasswordLastSet)
		if !ok || daysSince(now, set) > 365 {
			stalePassword = append(stalePassword, a.SAMAccountName)
		}
	}

	var findings []finding.Finding
	if len(noPreauth) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityCritical,
			Category:         category,
			Title:            "Service Account Without Kerberos Pre-Authentication",
			Description:      fmt.Sprintf("%d service account(s) do not require Kerberos pre-authentication.", len(noPreauth)),
			Impact:           "AS-REP responses for these accounts can be requested anonymously and cracked offline.",
			Remediation:      "Enable Kerberos pre-authentication on the listed accounts.",
			AffectedEntities: noPreauth,
		})
	}
	if len(stalePassword) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityHigh,
			Category:         category,
			Title:            "Service Account Password Unchanged Over a Year",
			Description:      fmt.Sprintf("%d service account(s) have passwords older than 365 days.", len(stalePassword)),
			Remediation:      "Rotate the listed passwords or migrate the services to group managed service accounts.",
			AffectedEntities: stalePassword,
		})
	}
	return findings
}

// DirectoryConfigDetector adapts the directory-configuration rules to the
// Detector interface.
type DirectoryConfigDetector struct{}

func (DirectoryConfigDetector) Source() string { return SourceDirectoryConfig }

func (DirectoryConfigDetector) Detect(data []byte, now time.Time) ([]finding.Finding, error) {
	doc, err := ParseDirectoryConfig(data)
	if err != nil {
		return nil, err
	}
	return DetectDirectoryConfig(doc, now), nil
}
