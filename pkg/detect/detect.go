// Package detect implements the rule-based detectors of the assessment
// pipeline. Each detector is a stateless transform from one typed source
// document to a list of normalized findings. Detectors do no I/O; parsing
// and detection are separate steps so a malformed document fails fast
// before any rule runs.
package detect

import (
	"time"

	"github.com/user/idguard/pkg/finding"
)

// Source labels for the five detectors. These appear in technical report
// filenames and in the executive coverage section.
const (
	SourceDirectoryConfig = "directory-config"
	SourcePrivilege       = "privilege"
	SourceCloudDirectory  = "cloud-directory"
	SourceAttackPath      = "attack-path"
	SourceRiskScan        = "risk-scan"
)

// Detector maps one raw source document to findings. The reference time is
// passed in so age-based rules stay deterministic for a given input.
type Detector interface {
	Source() string
	Detect(data []byte, now time.Time) ([]finding.Finding, error)
}

// timeLayouts are the timestamp formats the collection scripts emit.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime parses a collector timestamp. ok is false for empty or
// unrecognized values; callers treat those as "never" or "unknown".
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// daysSince returns whole days elapsed between t and now.
func daysSince(now, t time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}
