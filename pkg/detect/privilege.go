package detect

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/user/idguard/pkg/finding"
)

// PrivilegeExport is the identity/privilege export: accounts with their
// group memberships and logon metadata, privileged groups, and the ACL
// entries collected from high-value directory objects.
type PrivilegeExport struct {
	Accounts []PrivAccount `json:"accounts"`
	Groups   []PrivGroup   `json:"groups"`
	ACLs     []ACLEntry    `json:"acls"`
}

type PrivAccount struct {
	SAMAccountName        string   `json:"samAccountName"`
	Enabled               bool     `json:"enabled"`
	MemberOf              []string `json:"memberOf"`
	LastLogon             string   `json:"lastLogon"`
	PwdLastSet            string   `json:"pwdLastSet"`
	AdminCount            int      `json:"adminCount"`
	ServicePrincipalNames []string `json:"servicePrincipalNames"`
}

type PrivGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type ACLEntry struct {
	ObjectDN    string   `json:"objectDN"`
	Trustee     string   `json:"trustee"`
	Rights      []string `json:"rights"`
	IsInherited bool     `json:"isInherited"`
}

// privilegedGroups are the built-in groups treated as privileged tiers.
var privilegedGroups = []string{
	"Domain Admins",
	"Enterprise Admins",
	"Schema Admins",
	"Administrators",
	"Account Operators",
	"Backup Operators",
	"Server Operators",
	"Print Operators",
	"DnsAdmins",
}

// dangerousRights are ACL rights that allow object takeover.
var dangerousRights = map[string]bool{
	"GenericAll":        true,
	"GenericWrite":      true,
	"WriteDacl":         true,
	"WriteOwner":        true,
	"AllExtendedRights": true,
}

// broadTrustees are principals that effectively mean "everyone".
var broadTrustees = []string{"Everyone", "Authenticated Users", "Domain Users"}

const maxPrivilegedGroupSize = 10

func isPrivilegedGroup(name string) bool {
	for _, g := range privilegedGroups {
		if strings.EqualFold(name, g) {
			return true
		}
	}
	return false
}

func isPrivilegedAccount(a PrivAccount) bool {
	if a.AdminCount > 0 {
		return true
	}
	for _, g := range a.MemberOf {
		if isPrivilegedGroup(g) {
			return true
		}
	}
	return false
}

// ParsePrivilegeExport validates the raw document shape.
func ParsePrivilegeExport(data []byte) (*PrivilegeExport, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("privilege export: %w", err)
	}
	if _, ok := keys["accounts"]; !ok {
		return nil, fmt.Errorf("privilege export: missing accounts section")
	}
	var doc PrivilegeExport
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("privilege export: %w", err)
	}
	return &doc, nil
}

// DetectPrivilege runs every privilege and ACL rule.
func DetectPrivilege(doc *PrivilegeExport, now time.Time) []finding.Finding {
	var findings []finding.Finding
	findings = append(findings, checkDormantPrivileged(doc.Accounts, now)...)
	findings = append(findings, checkPrivilegedPasswordAge(doc.Accounts, now)...)
	findings = append(findings, checkACLs(doc.ACLs)...)
	findings = append(findings, checkGroupSizes(doc.Groups)...)
	return findings
}

func checkDormantPrivileged(accounts []PrivAccount, now time.Time) []finding.Finding {
	var dormant []string
	for _, a := range accounts {
		if !a.Enabled || !isPrivilegedAccount(a) {
			continue
		}
		logon, ok := parseTime(a.LastLogon)
		if !ok || daysSince(now, logon) > 90 {
			dormant = append(dormant, a.SAMAccountName)
		}
	}
	if len(dormant) == 0 {
		return nil
	}
	return []finding.Finding{{
		Severity:         finding.SeverityHigh,
		Category:         "Privileged Access",
		Title:            "Dormant Privileged Account",
		Description:      fmt.Sprintf("%d privileged account(s) have not signed in for over 90 days.", len(dormant)),
		Impact:           "Unused privileged accounts are prime targets: compromise goes unnoticed because no owner watches them.",
		Remediation:      "Disable the listed accounts or remove their privileged group memberships.",
		AffectedEntities: dormant,
	}}
}

func checkPrivilegedPasswordAge(accounts []PrivAccount, now time.Time) []finding.Finding {
	var stale []string
	for _, a := range accounts {
		if !a.Enabled || !isPrivilegedAccount(a) {
			continue
		}
		set, ok := parseTime(a.PwdLastSet)
		if !ok || daysSince(now, set) > 365 {
			stale = append(stale, a.SAMAccountName)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	return []finding.Finding{{
		Severity:         finding.SeverityHigh,
		Category:         "Privileged Access",
		Title:            "Privileged Account Password Unchanged Over a Year",
		Description:      fmt.Sprintf("%d privileged account(s) have passwords older than 365 days.", len(stale)),
		Remediation:      "Rotate the listed passwords and enforce an expiry policy for privileged tiers.",
		AffectedEntities: stale,
	}}
}

// trusteeName strips an optional DOMAIN\ or NT AUTHORITY\ prefix.
func trusteeName(trustee string) string {
	if i := strings.LastIndex(trustee, "\\"); i >= 0 {
		return trustee[i+1:]
	}
	return trustee
}

func isExpectedAdminTrustee(trustee string) bool {
	name := trusteeName(trustee)
	if strings.EqualFold(name, "SYSTEM") || strings.EqualFold(name, "Domain Controllers") {
		return true
	}
	return isPrivilegedGroup(name)
}

func checkACLs(acls []ACLEntry) []finding.Finding {
	var broad, risky []string
	for _, ace := range acls {
		dangerous := false
		for _, r := range ace.Rights {
			if dangerousRights[r] {
				dangerous = true
				break
			}
		}
		if !dangerous || isExpectedAdminTrustee(ace.Trustee) {
			continue
		}

		isBroad := false
		for _, t := range broadTrustees {
			if strings.EqualFold(trusteeName(ace.Trustee), t) {
				isBroad = true
				break
			}
		}
		entity := fmt.Sprintf("%s -> %s", ace.Trustee, ace.ObjectDN)
		if isBroad {
			broad = append(broad, entity)
		} else if !ace.IsInherited {
			risky = append(risky, entity)
		}
	}

	var findings []finding.Finding
	if len(broad) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityCritical,
			Category:         "Object Permissions",
			Title:            "Takeover Rights Granted to Broad Principal",
			Description:      fmt.Sprintf("%d ACL entr(ies) grant object-takeover rights to Everyone, Authenticated Users, or Domain Users.", len(broad)),
			Impact:           "Any authenticated user can seize control of the affected objects and escalate from there.",
			Remediation:      "Remove the listed access entries and re-grant rights to dedicated administrative groups only.",
			AffectedEntities: broad,
		})
	}
	if len(risky) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityHigh,
			Category:         "Object Permissions",
			Title:            "Non-Inherited Takeover Rights on Directory Object",
			Description:      fmt.Sprintf("%d explicitly set ACL entr(ies) grant object-takeover rights to non-administrative principals.", len(risky)),
			Remediation:      "Review the listed access entries; explicit grants outside the admin tiers usually indicate delegation drift.",
			AffectedEntities: risky,
		})
	}
	return findings
}

func checkGroupSizes(groups []PrivGroup) []finding.Finding {
	var oversized []string
	for _, g := range groups {
		if isPrivilegedGroup(g.Name) && len(g.Members) > maxPrivilegedGroupSize {
			oversized = append(oversized, fmt.Sprintf("%s (%d members)", g.Name, len(g.Members)))
		}
	}
	if len(oversized) == 0 {
		return nil
	}
	return []finding.Finding{{
		Severity:         finding.SeverityMedium,
		Category:         "Privileged Access",
		Title:            "Oversized Privileged Group",
		Description:      fmt.Sprintf("%d privileged group(s) exceed %d members.", len(oversized), maxPrivilegedGroupSize),
		Remediation:      "Trim membership to named day-to-day administrators and move break-glass accounts to a separate tier.",
		AffectedEntities: oversized,
	}}
}

// PrivilegeDetector adapts the privilege/ACL rules to the Detector interface.
type PrivilegeDetector struct{}

func (PrivilegeDetector) Source() string { return SourcePrivilege }

func (PrivilegeDetector) Detect(data []byte, now time.Time) ([]finding.Finding, error) {
	doc, err := ParsePrivilegeExport(data)
	if err != nil {
		return nil, err
	}
	return DetectPrivilege(doc, now), nil
}
