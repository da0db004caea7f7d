package detect

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/idguard/pkg/finding"
)

// CloudDirectoryExport is the cloud directory tenant export: users with MFA
// registration state, conditional access policies, PIM role assignments, and
// tenant-wide authentication settings.
type CloudDirectoryExport struct {
	Users                     []CloudUser     `json:"users"`
	ConditionalAccessPolicies []CAPolicy      `json:"conditionalAccessPolicies"`
	PIMConfiguration          []PIMAssignment `json:"pimConfiguration"`
	LegacyAuthEnabled         bool            `json:"legacyAuthEnabled"`
	SecurityDefaults          bool            `json:"securityDefaults"`
	PasswordProtection        bool            `json:"passwordProtection"`
}

type CloudUser struct {
	UserPrincipalName string   `json:"userPrincipalName"`
	UserType          string   `json:"userType"` // "Member" or "Guest"
	AccountEnabled    bool     `json:"accountEnabled"`
	MFAStatus         string   `json:"mfaStatus"` // "enabled", "enforced", "disabled"
	AssignedRoles     []string `json:"assignedRoles"`
	LastSignIn        string   `json:"lastSignIn"`
}

type CAPolicy struct {
	DisplayName      string   `json:"displayName"`
	State            string   `json:"state"` // "enabled", "disabled", "enabledForReportingButNotEnforced"
	SignInRiskLevels []string `json:"signInRiskLevels"`
	UserRiskLevels   []string `json:"userRiskLevels"`
}

type PIMAssignment struct {
	RoleName       string `json:"roleName"`
	Principal      string `json:"principal"`
	AssignmentType string `json:"assignmentType"` // "eligible" or "permanent"
}

func (u CloudUser) hasMFA() bool {
	switch strings.ToLower(u.MFAStatus) {
	case "enabled", "enforced":
		return true
	}
	return false
}

func (p CAPolicy) reportOnly() bool {
	s := strings.ToLower(p.State)
	return s == "enabledforreportingbutnotenforced" || s == "report-only" || s == "reportonly"
}

// ParseCloudDirectory validates the raw document shape.
func ParseCloudDirectory(data []byte) (*CloudDirectoryExport, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("cloud directory export: %w", err)
	}
	if _, ok := keys["users"]; !ok {
		return nil, fmt.Errorf("cloud directory export: missing users section")
	}
	var doc CloudDirectoryExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cloud directory export: %w", err)
	}
	return &doc, nil
}

// DetectCloudDirectory runs every cloud-directory posture rule. The reference
// time is unused today; it is part of the contract so sign-in age rules can
// be added without changing callers.
func DetectCloudDirectory(doc *CloudDirectoryExport, _ time.Time) []finding.Finding {
	var findings []finding.Finding
	findings = append(findings, checkMFACoverage(doc.Users)...)
	findings = append(findings, checkConditionalAccess(doc)...)
	findings = append(findings, checkTenantSettings(doc)...)
	findings = append(findings, checkGuestRoles(doc.Users)...)
	findings = append(findings, checkPIM(doc.PIMConfiguration)...)
	return findings
}

func checkMFACoverage(users []CloudUser) []finding.Finding {
	const category = "MFA Coverage"

	enabled, covered := 0, 0
	var privilegedNoMFA []string
	for _, u := range users {
		if !u.AccountEnabled {
			continue
		}
		if len(u.AssignedRoles) > 0 && !u.hasMFA() {
			privilegedNoMFA = append(privilegedNoMFA, u.UserPrincipalName)
		}
		if !strings.EqualFold(u.UserType, "Member") {
			continue
		}
		enabled++
		if u.hasMFA() {
			covered++
		}
	}

	var findings []finding.Finding
	if enabled > 0 && covered < enabled {
		ratio := float64(covered) / float64(enabled) * 100
		severity := finding.SeverityMedium
		switch {
		case ratio < 50:
			severity = finding.SeverityCritical
		case ratio < 80:
			severity = finding.SeverityHigh
		}
		findings = append(findings, finding.Finding{
			Severity:    severity,
			Category:    category,
			Title:       "Incomplete MFA Coverage",
			Description: fmt.Sprintf("Only %d of %d enabled member accounts (%.0f%%) have multi-factor authentication registered.", covered, enabled, ratio),
			Impact:      "Accounts without MFA fall to a single phished or sprayed password.",
			Remediation: "Require MFA registration for all member accounts via conditional access.",
		})
	}
	if len(privilegedNoMFA) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityCritical,
			Category:         category,
			Title:            "Privileged Account Without MFA",
			Description:      fmt.Sprintf("%d account(s) holding directory roles have no multi-factor authentication.", len(privilegedNoMFA)),
			Impact:           "A single compromised password yields tenant-wide administrative access.",
			Remediation:      "Enforce MFA for every role-holding account before anything else.",
			AffectedEntities: privilegedNoMFA,
		})
	}
	return findings
}

func checkConditionalAccess(doc *CloudDirectoryExport) []finding.Finding {
	const category = "Conditional Access"
	policies := doc.ConditionalAccessPolicies

	if len(policies) == 0 {
		desc := "The tenant has no conditional access policies."
		if !doc.SecurityDefaults {
			desc += " Security defaults are also disabled, leaving no baseline sign-in protection at all."
		}
		return []finding.Finding{{
			Severity:    finding.SeverityCritical,
			Category:    category,
			Title:       "No Conditional Access Policies",
			Description: desc,
			Impact:      "Sign-ins are accepted from any location, device, and risk level without additional controls.",
			Remediation: "Deploy a baseline conditional access policy set: require MFA, block legacy authentication, restrict risky sign-ins.",
		}}
	}

	var findings []finding.Finding
	var reportOnly []string
	riskBased := false
	for _, p := range policies {
		if p.reportOnly() {
			reportOnly = append(reportOnly, p.DisplayName)
		}
		if len(p.SignInRiskLevels) > 0 || len(p.UserRiskLevels) > 0 {
			riskBased = true
		}
	}
	if len(reportOnly) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityMedium,
			Category:         category,
			Title:            "Conditional Access Policies in Report-Only Mode",
			Description:      fmt.Sprintf("%d polic(ies) are configured but not enforced.", len(reportOnly)),
			Remediation:      "Review the report-only results and move the listed policies to enforced.",
			AffectedEntities: reportOnly,
		})
	}
	if !riskBased {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityMedium,
			Category:    category,
			Title:       "No Risk-Based Conditional Access Policy",
			Description: "No conditional access policy reacts to sign-in risk or user risk signals.",
			Remediation: "Add policies that require MFA or block access at elevated sign-in and user risk levels.",
		})
	}
	return findings
}

func checkTenantSettings(doc *CloudDirectoryExport) []finding.Finding {
	const category = "Tenant Settings"
	var findings []finding.Finding
	if doc.LegacyAuthEnabled {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityHigh,
			Category:    category,
			Title:       "Legacy Authentication Enabled",
			Description: "Legacy authentication protocols are accepted by the tenant.",
			Impact:      "Legacy protocols bypass MFA and conditional access entirely.",
			Remediation: "Block legacy authentication tenant-wide via conditional access.",
		})
	}
	if !doc.PasswordProtection {
		findings = append(findings, finding.Finding{
			Severity:    finding.SeverityLow,
			Category:    category,
			Title:       "Password Protection Not Configured",
			Description: "Banned-password protection is not enabled for the tenant.",
			Remediation: "Enable password protection with a custom banned-password list.",
		})
	}
	return findings
}

func checkGuestRoles(users []CloudUser) []finding.Finding {
	var guests []string
	for _, u := range users {
		if u.AccountEnabled && strings.EqualFold(u.UserType, "Guest") && len(u.AssignedRoles) > 0 {
			guests = append(guests, u.UserPrincipalName)
		}
	}
	if len(guests) == 0 {
		return nil
	}
	return []finding.Finding{{
		Severity:         finding.SeverityHigh,
		Category:         "Guest Access",
		Title:            "Guest Account Holding Directory Roles",
		Description:      fmt.Sprintf("%d guest account(s) hold directory roles in the tenant.", len(guests)),
		Impact:           "Guests are governed by their home tenant's security posture, not this one's.",
		Remediation:      "Remove the role assignments or convert the listed guests to managed member accounts.",
		AffectedEntities: guests,
	}}
}

func checkPIM(assignments []PIMAssignment) []finding.Finding {
	var permanent []string
	for _, a := range assignments {
		if strings.EqualFold(a.AssignmentType, "permanent") {
			permanent = append(permanent, fmt.Sprintf("%s (%s)", a.Principal, a.RoleName))
		}
	}
	if len(permanent) == 0 {
		return nil
	}
	return []finding.Finding{{
		Severity:         finding.SeverityMedium,
		Category:         "Privileged Access",
		Title:            "Permanent Privileged Role Assignments",
		Description:      fmt.Sprintf("%d role assignment(s) are permanent rather than PIM-eligible.", len(permanent)),
		Remediation:      "Convert the listed assignments to eligible with just-in-time activation.",
		AffectedEntities: permanent,
	}}
}

// CloudDirectoryDetector adapts the cloud posture rules to the Detector interface.
type CloudDirectoryDetector struct{}

func (CloudDirectoryDetector) Source() string { return SourceCloudDirectory }

func (CloudDirectoryDetector) Detect(data []byte, now time.Time) ([]finding.Finding, error) {
	doc, err := ParseCloudDirectory(data)
	if err != nil {
		return nil, err
	}
	return DetectCloudDirectory(doc, now), nil
}
