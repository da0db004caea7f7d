package aggregate

import (
	"html/template"
	"io"

	"github.com/user/idguard/pkg/finding"
)

// executiveView is the data handed to the executive template.
type executiveView struct {
	Organization string
	GeneratedAt  string
	RiskScore    int
	ScoreClass   string
	Total        int
	Severities   []severityRow
	Categories   []CategoryCount
	TopPriority  []finding.Finding
	TopOmitted   int
	Sources      []SourceCount
}

type severityRow struct {
	Level finding.Severity
	Icon  string
	Count int
}

// RenderExecutive writes the executive document for one assessment run as a
// single self-contained HTML page: inline styles, no scripts, no external
// assets. The top-priority list is capped at TopPriorityLimit; the omitted
// count is shown so readers know the technical reports hold the rest.
func RenderExecutive(w io.Writer, m *Metrics, organization string) error {
	view := executiveView{
		Organization: organization,
		GeneratedAt:  m.GeneratedAt.Format("2006-01-02 15:04 MST"),
		RiskScore:    m.RiskScore,
		ScoreClass:   scoreClass(m.RiskScore),
		Total:        m.Total,
		Categories:   m.CategoriesByCount(),
		TopPriority:  m.TopPriority,
		Sources:      m.Sources,
	}
	for _, level := range finding.Levels {
		view.Severities = append(view.Severities, severityRow{
			Level: level,
			Icon:  level.Icon(),
			Count: m.BySeverity[level],
		})
	}
	if len(view.TopPriority) > TopPriorityLimit {
		view.TopOmitted = len(view.TopPriority) - TopPriorityLimit
		view.TopPriority = view.TopPriority[:TopPriorityLimit]
	}
	return executiveTmpl.Execute(w, view)
}

func scoreClass(score int) string {
	switch {
	case score >= 80:
		return "good"
	case score >= 50:
		return "warn"
	}
	return "bad"
}

var executiveTmpl = template.Must(template.New("executive").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Identity Security Assessment — {{.Organization}}</title>
<style>
  body { font-family: "Segoe UI", Helvetica, Arial, sans-serif; margin: 2rem auto; max-width: 60rem; color: #1c2733; }
  h1 { border-bottom: 2px solid #1c2733; padding-bottom: .3rem; }
  h2 { margin-top: 2rem; }
  .meta { color: #5b6b7b; }
  .score { font-size: 3.5rem; font-weight: bold; }
  .score.good { color: #1e7d32; }
  .score.warn { color: #c77700; }
  .score.bad { color: #b3261e; }
  table { border-collapse: collapse; width: 100%; }
  th, td { text-align: left; padding: .4rem .8rem; border-bottom: 1px solid #d7dde3; }
  th { background: #eef1f4; }
  .count { text-align: right; }
  .priority { border-left: 4px solid #b3261e; background: #faf3f2; padding: .6rem .9rem; margin: .6rem 0; }
  .priority .sev { font-weight: bold; }
</style>
</head>
<body>
<h1>Identity Security Assessment</h1>
<p class="meta">{{.Organization}} &middot; generated {{.GeneratedAt}} &middot; {{.Total}} findings</p>

<h2>Risk Score</h2>
<p><span class="score {{.ScoreClass}}">{{.RiskScore}}</span> / 100 &mdash; higher is better.</p>

<h2>Findings by Severity</h2>
<table>
<tr><th>Severity</th><th class="count">Findings</th></tr>
{{range .Severities}}<tr><td>{{.Icon}} {{.Level}}</td><td class="count">{{.Count}}</td></tr>
{{end}}</table>

<h2>Findings by Category</h2>
<table>
<tr><th>Category</th><th class="count">Findings</th></tr>
{{range .Categories}}<tr><td>{{.Category}}</td><td class="count">{{.Count}}</td></tr>
{{end}}</table>

<h2>Top Priorities</h2>
{{if .TopPriority}}{{range .TopPriority}}<div class="priority">
<p><span class="sev">{{.Severity.Icon}} [{{.Severity}}]</span> {{.Title}}</p>
<p>{{.Description}}</p>
{{if .Remediation}}<p><em>Remediation:</em> {{.Remediation}}</p>{{end}}
</div>
{{end}}{{if .TopOmitted}}<p class="meta">{{.TopOmitted}} further critical or high findings are listed in the technical reports.</p>{{end}}
{{else}}<p>No critical or high findings.</p>{{end}}

<h2>Source Coverage</h2>
<table>
<tr><th>Source</th><th class="count">Findings</th></tr>
{{range .Sources}}<tr><td>{{.Source}}</td><td class="count">{{.Count}}</td></tr>
{{end}}</table>
</body>
</html>
`))
