package report

import (
	"bufio"
	"io"
	"strings"

	"github.com/user/idguard/pkg/finding"
)

// severityIcons gates header recognition: a line is only a finding header if
// it carries one of the report glyphs, so indented body text containing
// bracketed words is never mistaken for a header.
var severityIcons = func() []string {
	icons := make([]string, 0, len(finding.Levels))
	for _, s := range finding.Levels {
		icons = append(icons, s.Icon())
	}
	return icons
}()

// ParseTechnical reads a technical report back into findings. A finding
// whose severity token is unrecognized is dropped; parsing of the remaining
// report continues. References lines are parsed and discarded.
func ParseTechnical(r io.Reader) ([]finding.Finding, error) {
	var findings []finding.Finding
	var cur *finding.Finding
	var desc []string
	descZone := false

	finalize := func() {
		if cur == nil {
			return
		}
		cur.Description = strings.Join(desc, " ")
		findings = append(findings, *cur)
		cur = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if token, title, ok := parseHeader(line); ok {
			finalize()
			desc = nil
			descZone = false
			severity, known := finding.ParseSeverity(token)
			if !known {
				// Drop this one finding; keep parsing the rest.
				continue
			}
			cur = &finding.Finding{Severity: severity, Title: title}
			descZone = true
			continue
		}

		if cur == nil || !strings.HasPrefix(line, fieldIndent) {
			continue
		}
		body := line[len(fieldIndent):]

		switch {
		case strings.HasPrefix(body, "Category:"):
			cur.Category = fieldValue(body, "Category:")
			descZone = true
		case strings.HasPrefix(body, "Account:"):
			if v := fieldValue(body, "Account:"); v != "" {
				cur.AffectedEntities = strings.Split(v, ", ")
			}
		case strings.HasPrefix(body, "Issue:"):
			if v := fieldValue(body, "Issue:"); v != "" {
				desc = append(desc, v)
			}
		case strings.HasPrefix(body, "Impact:"):
			cur.Impact = fieldValue(body, "Impact:")
			descZone = false
		case strings.HasPrefix(body, "Remediation:"):
			cur.Remediation = fieldValue(body, "Remediation:")
			descZone = false
		case strings.HasPrefix(body, "References:"):
			descZone = false
		default:
			if descZone {
				if t := strings.TrimSpace(body); t != "" {
					desc = append(desc, t)
				}
			}
		}
	}
	finalize()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return findings, nil
}

// parseHeader recognizes a finding header: the line must not begin with the
// field indent, must contain a bracketed token, and must carry a severity
// icon. ok is true when the line is a header even if the token is unknown.
func parseHeader(line string) (token, title string, ok bool) {
	if strings.HasPrefix(line, fieldIndent) {
		return "", "", false
	}
	open := strings.Index(line, "[")
	if open < 0 {
		return "", "", false
	}
	end := strings.Index(line[open:], "]")
	if end < 0 {
		return "", "", false
	}
	hasIcon := false
	for _, icon := range severityIcons {
		if strings.Contains(line[:open], icon) {
			hasIcon = true
			break
		}
	}
	if !hasIcon {
		return "", "", false
	}
	token = line[open+1 : open+end]
	title = strings.TrimSpace(line[open+end+1:])
	return token, title, true
}

func fieldValue(body, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(body, prefix))
}
