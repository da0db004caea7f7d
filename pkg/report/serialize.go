// Package report implements the finding text protocol: the line-oriented
// format technical reports are written in, and the parser that reads those
// reports back for aggregation. The two halves round-trip every finding
// field except References.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/user/idguard/pkg/finding"
)

// fieldIndent prefixes every field and continuation line under a header.
const fieldIndent = "   "

// wrapWidth is the target column for wrapped description lines.
const wrapWidth = 100

// WriteTechnical renders findings in the finding text protocol, sorted by
// severity (stable within one level). The input slice is not modified.
func WriteTechnical(w io.Writer, findings []finding.Finding) error {
	sorted := make([]finding.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() < sorted[j].Severity.Rank()
	})

	if _, err := fmt.Fprintf(w, "Technical Findings Report (%d findings)\n", len(sorted)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 50)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	for _, f := range sorted {
		if err := writeFinding(w, f); err != nil {
			return err
		}
	}
	return nil
}

func writeFinding(w io.Writer, f finding.Finding) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] %s\n", f.Severity.Icon(), f.Severity, f.Title)
	fmt.Fprintf(&sb, "%sCategory: %s\n", fieldIndent, f.Category)
	if len(f.AffectedEntities) > 0 {
		fmt.Fprintf(&sb, "%sAccount: %s\n", fieldIndent, strings.Join(f.AffectedEntities, ", "))
	}
	for _, line := range wrapText(f.Description, wrapWidth) {
		fmt.Fprintf(&sb, "%s%s\n", fieldIndent, line)
	}
	if f.Impact != "" {
		fmt.Fprintf(&sb, "%sImpact: %s\n", fieldIndent, f.Impact)
	}
	if f.Remediation != "" {
		fmt.Fprintf(&sb, "%sRemediation: %s\n", fieldIndent, f.Remediation)
	}
	sb.WriteString("\n")
	_, err := io.WriteString(w, sb.String())
	return err
}

// wrapText greedily wraps s at word boundaries. Empty input yields no lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, word := range words[1:] {
		if len(line)+1+len(word) > width {
			lines = append(lines, line)
			line = word
			continue
		}
		line += " " + word
	}
	return append(lines, line)
}
