// Package reports implements the report builder: a deterministic
// markdown body assembled from metric blocks and the latest insight,
// with an optional PDF rendering for delivery channels/exports that
// need a binary artifact.
package reports

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/rcourtman/insightctl/internal/facts"
	"github.com/rcourtman/insightctl/internal/state"
)

// Service wires report generation to the canonical store.
type Service struct {
	store *state.Store
}

func New(store *state.Store) *Service {
	return &Service{store: store}
}

// defaultMetricIDs is the KPI snapshot shown when the caller doesn't
// name specific metrics.
var defaultMetricIDs = []string{"revenue", "profit", "spend"}

// GenerateInput is the caller-supplied shape for building a report.
type GenerateInput struct {
	Title     string
	MetricIDs []string
	Grain     facts.Grain
	Format    string // pdf | html | markdown
}

// Generate computes a metric block per metricId via the facts package,
// assembles the deterministic markdown body with a KPI snapshot and a
// latest-insight block, and stores the result.
func (s *Service) Generate(tenant state.Tenant, in GenerateInput) (state.Report, error) {
	metricIDs := in.MetricIDs
	if len(metricIDs) == 0 {
		metricIDs = defaultMetricIDs
	}
	grain := in.Grain
	if grain == "" {
		grain = facts.GrainWeek
	}
	format := in.Format
	if format == "" {
		format = "markdown"
	}
	title := in.Title
	if title == "" {
		title = "Performance report"
	}

	tenantFacts := s.store.FactsForTenant(tenant.ID, "")

	var lines []string
	lines = append(lines, "# "+title, "", "## KPI snapshot")
	for _, metricID := range metricIDs {
		series, err := facts.QueryMetric(tenantFacts, metricID, grain, "", "")
		if err != nil {
			return state.Report{}, err
		}
		lines = append(lines, fmt.Sprintf("- %s: total=%.3f, avg=%.3f", metricID, series.Summary.Total, series.Summary.Average))
	}

	var summary string
	if insight, ok := s.store.LatestInsight(tenant.ID); ok {
		lines = append(lines, "", "## Latest insight",
			fmt.Sprintf("- confidence=%.2f", insight.Confidence),
			fmt.Sprintf("- recommended actions=%d", len(insight.RecommendedActions)))
		summary = fmt.Sprintf("confidence=%.2f, %d recommended action(s)", insight.Confidence, len(insight.RecommendedActions))
	} else {
		lines = append(lines, "", "## Latest insight", "- no model run yet")
		summary = "no model run yet"
	}

	body := strings.Join(lines, "\n") + "\n"

	sorted := append([]string{}, metricIDs...)
	sort.Strings(sorted)

	return s.store.AppendReport(state.Report{
		TenantID:  tenant.ID,
		Title:     title,
		Format:    format,
		Summary:   summary,
		MetricIDs: sorted,
		Body:      body,
	}), nil
}

// RenderPDF lays the report's markdown body out as a simple single-column
// PDF document, used by the pdf delivery/export path. It does not alter
// the stored Report, whose Body remains the markdown source of truth.
func RenderPDF(report state.Report) []byte {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, report.Title, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range strings.Split(report.Body, "\n") {
		pdf.MultiCell(0, 6, line, "", "L", false)
	}

	var buf strings.Builder
	_ = pdf.Output(&buf)
	return []byte(buf.String())
}
