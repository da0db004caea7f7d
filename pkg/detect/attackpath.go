package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/idguard/pkg/finding"
)

// AttackPathExport is the merged view of a graph-export directory: one
// BloodHound-style JSON file per object class, each wrapping a data array
// and a meta block naming the class.
type AttackPathExport struct {
	Users     []GraphObject
	Computers []GraphObject
	Groups    []GraphObject
}

// GraphObject is one exported node. Aces and Members are carried for
// completeness; the property checks below do not traverse them.
type GraphObject struct {
	Properties GraphProperties   `json:"Properties"`
	Aces       []json.RawMessage `json:"Aces"`
	Members    []json.RawMessage `json:"Members"`
}

// GraphProperties uses the lowercase keys the graph exporter emits.
type GraphProperties struct {
	Name                    string   `json:"name"`
	Enabled                 bool     `json:"enabled"`
	HasSPN                  bool     `json:"hasspn"`
	ServicePrincipalNames   []string `json:"serviceprincipalnames"`
	DontReqPreauth          bool     `json:"dontreqpreauth"`
	AdminCount              bool     `json:"admincount"`
	HighValue               bool     `json:"highvalue"`
	UnconstrainedDelegation bool     `json:"unconstraineddelegation"`
	HasLAPS                 bool     `json:"haslaps"`
	DistinguishedName       string   `json:"distinguishedname"`
	PrimaryGroupSID         string   `json:"primarygroupsid"`
}

type graphFile struct {
	Data []GraphObject `json:"data"`
	Meta struct {
		Type  string `json:"type"`
		Count int    `json:"count"`
	} `json:"meta"`
}

// ParseAttackPathFile parses one export file and returns its object class
// ("users", "computers", "groups") with the contained objects.
func ParseAttackPathFile(data []byte) (string, []GraphObject, error) {
	var f graphFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("graph export: %w", err)
	}
	if f.Meta.Type == "" {
		return "", nil, fmt.Errorf("graph export: missing meta.type")
	}
	return strings.ToLower(f.Meta.Type), f.Data, nil
}

// LoadAttackPathDir reads every JSON file in dir and merges the recognized
// object classes. Files of unknown class are skipped; a directory yielding
// no usable objects fails.
func LoadAttackPathDir(dir string) (*AttackPathExport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("graph export: %w", err)
	}

	export := &AttackPathExport{}
	usable := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("graph export: %w", err)
		}
		class, objects, err := ParseAttackPathFile(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		switch class {
		case "users":
			export.Users = append(export.Users, objects...)
			usable++
		case "computers":
			export.Computers = append(export.Computers, objects...)
			usable++
		case "groups":
			export.Groups = append(export.Groups, objects...)
			usable++
		}
	}
	if usable == 0 {
		return nil, fmt.Errorf("graph export: no usable files in %s", dir)
	}
	return export, nil
}

func (p GraphProperties) hasServicePrincipal() bool {
	return p.HasSPN || len(p.ServicePrincipalNames) > 0
}

func (p GraphProperties) privileged() bool {
	return p.HighValue || p.AdminCount
}

// isDomainController recognizes domain controllers by their primary group
// RID (516) or their OU placement.
func (p GraphProperties) isDomainController() bool {
	if strings.HasSuffix(p.PrimaryGroupSID, "-516") {
		return true
	}
	return strings.Contains(strings.ToUpper(p.DistinguishedName), "OU=DOMAIN CONTROLLERS")
}

// DetectAttackPath runs the property checks over a merged graph export.
// Path traversal is the exporter's job; only flat object properties are
// assessed here.
func DetectAttackPath(export *AttackPathExport, _ time.Time) []finding.Finding {
	var findings []finding.Finding
	findings = append(findings, checkKerberoastable(export.Users)...)
	findings = append(findings, checkPreauth(export.Users)...)
	findings = append(findings, checkDelegation(export.Computers)...)
	findings = append(findings, checkLAPSCoverage(export.Computers)...)
	return findings
}

func checkKerberoastable(users []GraphObject) []finding.Finding {
	const category = "Kerberoasting"
	var privileged, regular []string
	for _, u := range users {
		if !u.Properties.Enabled || !u.Properties.hasServicePrincipal() {
			continue
		}
		if u.Properties.privileged() {
			privileged = append(privileged, u.Properties.Name)
		} else {
			regular = append(regular, u.Properties.Name)
		}
	}

	var findings []finding.Finding
	if len(privileged) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityCritical,
			Category:         category,
			Title:            "Kerberoastable Privileged Account",
			Description:      fmt.Sprintf("%d privileged account(s) have service principal names set.", len(privileged)),
			Impact:           "Any domain user can request a service ticket for these accounts and crack it offline to gain privileged access.",
			Remediation:      "Remove the SPNs, or move the services to group managed service accounts and strip the privileged memberships.",
			AffectedEntities: privileged,
		})
	}
	if len(regular) > 0 {
		findings = append(findings, finding.Finding{
			Severity:         finding.SeverityMedium,
			Category:         category,
			Title:            "Kerberoastable Account",
			Description:      fmt.Sprintf("%d non-privileged account(s) have service principal names set.", len(regular)),
			Remediation:      "Ensure the listed accounts carry long random passwords, or migrate them to group managed service accounts.",
			AffectedEntities: regular,
		})
	}
	return findings
}

func checkPreauth(users []GraphObject) []finding.Finding {
	var roastable []string
	for _, u := range users {
		if u.Properties.Enabled && u.Properties.DontReqPreauth {
			roastable = append(roastable, u.Properties.Name)
		}
	}
	if len(roastable) == 0 {
		return nil
	}
	return []finding.Finding{{
		Severity:         finding.SeverityCritical,
		Category:         "AS-REP Roasting",
		Title:            "Account Not Requiring Kerberos Pre-Authentication",
		Description:      fmt.Sprintf("%d enabled account(s) do not require Kerberos pre-authentication.", len(roastable)),
		Impact:           "AS-REP responses for these accounts can be obtained without credentials and cracked offline.",
		Remediation:      "Clear the DONT_REQ_PREAUTH flag on the listed accounts.",
		AffectedEntities: roastable,
	}}
}

func checkDelegation(computers []GraphObject) []finding.Finding {
	var hosts []string
	for _, c := range computers {
		p := c.Properties
		if p.Enabled && p.UnconstrainedDelegation && !p.isDomainController() {
			hosts = append(hosts, p.Name)
		}
	}
	if len(hosts) == 0 {
		return nil
	}
	return []finding.Finding{{
		Severity:         finding.SeverityHigh,
		Category:         "Delegation",
		Title:            "Unconstrained Delegation on Member Host",
		Description:      fmt.Sprintf("%d non-domain-controller host(s) are trusted for unconstrained delegation.", len(hosts)),
		Impact:           "Any privileged principal authenticating to these hosts leaves a reusable ticket-granting ticket behind.",
		Remediation:      "Replace unconstrained delegation with resource-based constrained delegation on the listed hosts.",
		AffectedEntities: hosts,
	}}
}

func checkLAPSCoverage(computers []GraphObject) []finding.Finding {
	enabled, covered := 0, 0
	for _, c := range computers {
		if !c.Properties.Enabled {
			continue
		}
		enabled++
		if c.Properties.HasLAPS {
			covered++
		}
	}
	if enabled == 0 || covered == enabled {
		return nil
	}

	gap := float64(enabled-covered) / float64(enabled) * 100
	severity := finding.SeverityMedium
	if gap > 50 {
		severity = finding.SeverityHigh
	}
	return []finding.Finding{{
		Severity:    severity,
		Category:    "Local Admin Passwords",
		Title:       "LAPS Coverage Gap",
		Description: fmt.Sprintf("%d of %d enabled hosts (%.0f%%) have no managed local administrator password.", enabled-covered, enabled, gap),
		Impact:      "Shared or static local administrator passwords allow lateral movement between hosts.",
		Remediation: "Extend LAPS deployment to every enabled host.",
	}}
}
