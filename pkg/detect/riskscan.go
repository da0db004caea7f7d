package detect

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/user/idguard/pkg/finding"
)

// RiskRule is one scored rule record from a third-party risk-scan report.
type RiskRule struct {
	ID        string `xml:"RiskId"`
	Points    int    `xml:"Points"`
	Category  string `xml:"Category"`
	Rationale string `xml:"Rationale"`
	Solution  string `xml:"Solution"`
}

// riskScanXML matches the scanner's XML export. The root element name is
// not checked so vendor renames stay parseable.
type riskScanXML struct {
	Rules []RiskRule `xml:"RiskRules>HealthcheckRiskRule"`
}

// ScoreSeverity maps an externally supplied point value to a severity.
// The bands are contiguous and exhaustive over points >= 0.
func ScoreSeverity(points int) finding.Severity {
	switch {
	case points >= 50:
		return finding.SeverityCritical
	case points >= 30:
		return finding.SeverityHigh
	case points >= 15:
		return finding.SeverityMedium
	case points >= 5:
		return finding.SeverityLow
	}
	return finding.SeverityInfo
}

// ParseRiskScan extracts risk rules from a scan report. XML is tried first;
// documents that are not XML fall back to the HTML table layout, mirroring
// how scanners ship both formats of the same report.
func ParseRiskScan(data []byte) ([]RiskRule, error) {
	var doc riskScanXML
	if err := xml.Unmarshal(data, &doc); err == nil && len(doc.Rules) > 0 {
		return doc.Rules, nil
	}

	rules, err := parseRiskScanHTML(data)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("risk scan: no rule records found")
	}
	return rules, nil
}

// parseRiskScanHTML walks the HTML report and collects table rows shaped as
// [rule id, points, category, rationale, solution]. Rows whose second cell
// is not an integer (headers, section banners) are skipped.
func parseRiskScanHTML(data []byte) ([]RiskRule, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("risk scan: %w", err)
	}

	var rules []RiskRule
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			cells := rowCells(n)
			if len(cells) >= 4 {
				if points, err := strconv.Atoi(cells[1]); err == nil {
					r := RiskRule{ID: cells[0], Points: points, Category: cells[2], Rationale: cells[3]}
					if len(cells) >= 5 {
						r.Solution = cells[4]
					}
					rules = append(rules, r)
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return rules, nil
}

func rowCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "td" {
			cells = append(cells, strings.TrimSpace(nodeText(c)))
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

// DetectRiskScan converts scored rules to findings. When a catalog is
// provided, curated titles and remediation text overlay the raw records.
func DetectRiskScan(rules []RiskRule, catalog *RuleCatalog) []finding.Finding {
	findings := make([]finding.Finding, 0, len(rules))
	for _, r := range rules {
		category := r.Category
		if category == "" {
			category = "Risk Scan"
		}
		f := finding.Finding{
			Severity:    ScoreSeverity(r.Points),
			Category:    category,
			Title:       r.ID,
			Description: r.Rationale,
			Impact:      fmt.Sprintf("Scored %d points by the external scanner.", r.Points),
			Remediation: r.Solution,
		}
		if catalog != nil {
			if entry, ok := catalog.Lookup(r.ID); ok {
				if entry.Title != "" {
					f.Title = entry.Title
				}
				if entry.Impact != "" {
					f.Impact = entry.Impact
				}
				if entry.Remediation != "" {
					f.Remediation = entry.Remediation
				}
			}
		}
		findings = append(findings, f)
	}
	return findings
}

// RiskScanDetector adapts the risk-scan rules to the Detector interface.
// Catalog may be nil.
type RiskScanDetector struct {
	Catalog *RuleCatalog
}

func (RiskScanDetector) Source() string { return SourceRiskScan }

func (d RiskScanDetector) Detect(data []byte, _ time.Time) ([]finding.Finding, error) {
	rules, err := ParseRiskScan(data)
	if err != nil {
		return nil, err
	}
	return DetectRiskScan(rules, d.Catalog), nil
}
