// Package aggregate merges parsed findings from every source into one
// assessment run: severity and category distributions, a 0-100 risk score,
// and the executive document rendered from them.
package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/user/idguard/pkg/finding"
)

// TopPriorityLimit caps the executive top-priority list. Technical reports
// are never truncated.
const TopPriorityLimit = 5

// SourceFindings pairs one source type with the findings parsed from its
// technical report.
type SourceFindings struct {
	Source   string
	Findings []finding.Finding
}

// SourceCount is the per-source share of the aggregated set.
type SourceCount struct {
	Source string
	Count  int
}

// CategoryCount is one category histogram bucket.
type CategoryCount struct {
	Category string
	Count    int
}

// Metrics is the read-only result of one aggregation run.
type Metrics struct {
	Total       int
	BySeverity  map[finding.Severity]int
	ByCategory  map[string]int
	RiskScore   int
	TopPriority []finding.Finding // all CRITICAL and HIGH, aggregation order
	Sources     []SourceCount
	GeneratedAt time.Time // informational only

	categoryOrder []string // first-seen order, kept for stable rendering
}

// Aggregate concatenates all findings in source order and computes the run
// metrics. No deduplication happens here: aggregating the same findings
// twice counts them twice. GeneratedAt is informational and excluded from
// every computed value.
func Aggregate(sources []SourceFindings, now time.Time) *Metrics {
	m := &Metrics{
		BySeverity:  make(map[finding.Severity]int),
		ByCategory:  make(map[string]int),
		GeneratedAt: now,
	}

	weightSum := 0
	for _, src := range sources {
		m.Sources = append(m.Sources, SourceCount{Source: src.Source, Count: len(src.Findings)})
		for _, f := range src.Findings {
			m.Total++
			m.BySeverity[f.Severity]++
			if _, seen := m.ByCategory[f.Category]; !seen {
				m.categoryOrder = append(m.categoryOrder, f.Category)
			}
			m.ByCategory[f.Category]++
			weightSum += f.Severity.Weight()

			if f.Severity == finding.SeverityCritical || f.Severity == finding.SeverityHigh {
				m.TopPriority = append(m.TopPriority, f)
			}
		}
	}

	m.RiskScore = riskScore(weightSum, m.Total)
	return m
}

// riskScore inverts the severity-weighted average onto 0-100. An empty
// finding set is a perfect score.
func riskScore(weightSum, total int) int {
	if total == 0 {
		return 100
	}
	ratio := float64(weightSum) / float64(10*total)
	return int(math.Round((1 - ratio) * 100))
}

// HasCritical reports whether the aggregated set contains any CRITICAL
// finding. The pipeline exit status is derived from this.
func (m *Metrics) HasCritical() bool {
	return m.BySeverity[finding.SeverityCritical] > 0
}

// CategoriesByCount returns the category histogram sorted by count
// descending; ties keep first-seen order.
func (m *Metrics) CategoriesByCount() []CategoryCount {
	out := make([]CategoryCount, 0, len(m.categoryOrder))
	for _, c := range m.categoryOrder {
		out = append(out, CategoryCount{Category: c, Count: m.ByCategory[c]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
