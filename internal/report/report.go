// Package report aggregates audit records into a run summary and renders
// it as text, JSON or HTML.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/ferret/internal/audit"
	"github.com/FranksOps/ferret/internal/enrich"
)

// Summary contains aggregated metrics about an enrichment run.
type Summary struct {
	TotalRows   int
	Filled      int
	ImagesFound int
	PDFsFound   int
	ByStatus    map[string]int
	ByBrand     map[string]int
	ByHost      map[string]int
	ByPass      map[string]int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// GenerateSummary folds a slice of audit records into a Summary.
func GenerateSummary(records []*audit.Record) Summary {
	s := Summary{
		ByStatus: make(map[string]int),
		ByBrand:  make(map[string]int),
		ByHost:   make(map[string]int),
		ByPass:   make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].CreatedAt
	s.EndTime = records[0].CreatedAt

	for _, r := range records {
		s.TotalRows++
		s.ByStatus[r.Status]++
		if r.Status == enrich.StatusFilled {
			s.Filled++
		}
		if r.FoundImage != "" {
			s.ImagesFound++
		}
		if r.FoundPDF != "" {
			s.PDFsFound++
		}
		if r.BrandDetected != "" {
			s.ByBrand[r.BrandDetected]++
		}
		if r.ChosenHost != "" {
			s.ByHost[r.ChosenHost]++
		}
		if r.SearchPass != "" {
			s.ByPass[r.SearchPass]++
		}

		if r.CreatedAt.Before(s.StartTime) {
			s.StartTime = r.CreatedAt
		}
		if r.CreatedAt.After(s.EndTime) {
			s.EndTime = r.CreatedAt
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Ferret Enrichment Summary
-------------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Total Rows:    {{.TotalRows}}
Filled:        {{.Filled}}
Images Found:  {{.ImagesFound}}
PDFs Found:    {{.PDFsFound}}

Statuses:
{{- range $status, $count := .ByStatus}}
  {{$status}}: {{$count}}
{{- else}}
  None
{{- end}}

Brands:
{{- range $brand, $count := .ByBrand}}
  {{$brand}}: {{$count}}
{{- else}}
  None
{{- end}}

Source Hosts:
{{- range $host, $count := .ByHost}}
  {{$host}}: {{$count}}
{{- else}}
  None
{{- end}}

Search Passes:
{{- range $pass, $count := .ByPass}}
  {{$pass}}: {{$count}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Ferret Enrichment Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Ferret Enrichment Report</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Total Rows</div>
    <div class="stat-val">{{.TotalRows}}</div>
  </div>
  <div class="stat-card">
    <div>Filled</div>
    <div class="stat-val">{{.Filled}}</div>
  </div>
  <div class="stat-card">
    <div>Images</div>
    <div class="stat-val">{{.ImagesFound}}</div>
  </div>
  <div class="stat-card">
    <div>PDFs</div>
    <div class="stat-val">{{.PDFsFound}}</div>
  </div>

  <h3>Statuses</h3>
  <table>
    <tr><th>Status</th><th>Count</th></tr>
    {{- range $status, $count := .ByStatus}}
    <tr><td>{{$status}}</td><td>{{$count}}</td></tr>
    {{- end}}
  </table>

  <h3>Source Hosts</h3>
  <table>
    <tr><th>Host</th><th>Count</th></tr>
    {{- range $host, $count := .ByHost}}
    <tr><td>{{$host}}</td><td>{{$count}}</td></tr>
    {{- end}}
  </table>
</body>
</html>
`

	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
