package finding

// Severity classifies a finding. The five levels are totally ordered:
// CRITICAL > HIGH > MEDIUM > LOW > INFO.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Levels lists all severities from most to least severe.
var Levels = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// Rank returns the sort rank of a severity: 0 for CRITICAL up to 4 for INFO.
// Unknown severities rank after INFO.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	}
	return 5
}

// Weight returns the score weight used by the risk scorer.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityHigh:
		return 5
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Icon returns the report glyph for a severity.
func (s Severity) Icon() string {
	switch s {
	case SeverityCritical:
		return "🔴"
	case SeverityHigh:
		return "🟠"
	case SeverityMedium:
		return "🟡"
	case SeverityLow:
		return "🔵"
	}
	return "⚪"
}

// ParseSeverity maps a token to a Severity. ok is false for unknown tokens.
func ParseSeverity(token string) (Severity, bool) {
	switch Severity(token) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return Severity(token), true
	}
	return "", false
}

// Finding represents a normalized security finding from any detector.
// Severity and Title are always set; other fields may be empty. A detector
// constructs a Finding and never mutates it afterward.
type Finding struct {
	Severity         Severity `json:"severity"`
	Category         string   `json:"category"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Impact           string   `json:"impact,omitempty"`
	Remediation      string   `json:"remediation,omitempty"`
	AffectedEntities []string `json:"affected_entities,omitempty"`
}
