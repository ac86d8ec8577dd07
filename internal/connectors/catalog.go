// Package connectors implements the static source/blueprint catalogs and
// the deterministic period generator: no real network I/O, just
// reproducible synthetic facts.
package connectors

import "github.com/rcourtman/insightctl/internal/state"

// SourceType describes one entry in the static source catalog.
type SourceType struct {
	SourceType string
	Family     string
	Domains    []string
	Modes      []string
}

// Catalog is the static table of supported source types. It never
// changes at runtime.
var Catalog = map[string]SourceType{
	"google_ads": {SourceType: "google_ads", Family: "ads", Domains: []string{"marketing"}, Modes: []string{"ingest", "hybrid"}},
	"meta_ads":   {SourceType: "meta_ads", Family: "ads", Domains: []string{"marketing"}, Modes: []string{"ingest", "hybrid"}},
	"bigquery":   {SourceType: "bigquery", Family: "warehouse", Domains: []string{"marketing", "finance", "crm"}, Modes: []string{"ingest", "hybrid", "live"}},
	"stripe":     {SourceType: "stripe", Family: "finance", Domains: []string{"finance"}, Modes: []string{"ingest", "hybrid"}},
	"hubspot":    {SourceType: "hubspot", Family: "crm", Domains: []string{"crm"}, Modes: []string{"ingest", "hybrid"}},
}

// SupportsMode reports whether a source type supports the given mode.
func (c SourceType) SupportsMode(mode string) bool {
	for _, m := range c.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// domainMetrics lists the raw metric ids a connector sync can produce
// per domain, used to expand one sync call into one fact per
// (day, metricId-in-domain).
var domainMetrics = map[string][]string{
	"marketing": {"revenue", "spend"},
	"finance":   {"cash_in", "cash_out"},
	"crm":       {"pipeline_value", "deals_closed"},
}

// MetricsForDomain returns the raw metric ids generated for a domain.
func MetricsForDomain(domain string) []string {
	return domainMetrics[domain]
}

// DefaultBlueprints seeds the static blueprint catalog that a tenant's
// {tenantId -> blueprintId} selector resolves into: a tenant's metric
// set equals its blueprint's metrics.
func DefaultBlueprints() map[string]state.Blueprint {
	growth := state.Blueprint{
		ID:      "bp_growth",
		Name:    "Growth & Revenue",
		Domains: []string{"marketing", "finance"},
		Metrics: []state.Metric{
			{ID: "revenue", Formula: "sum(revenue)", Grain: "day", Domain: "marketing"},
			{ID: "spend", Formula: "sum(spend)", Grain: "day", Domain: "marketing"},
			{ID: "roas", Formula: "revenue/spend", Grain: "day", Domain: "marketing"},
			{ID: "cash_in", Formula: "sum(cash_in)", Grain: "day", Domain: "finance"},
			{ID: "cash_out", Formula: "sum(cash_out)", Grain: "day", Domain: "finance"},
			{ID: "profit", Formula: "cash_in-cash_out", Grain: "day", Domain: "finance"},
			{ID: "runway_days", Formula: "runway", Grain: "day", Domain: "finance"},
		},
	}
	revops := state.Blueprint{
		ID:      "bp_revops",
		Name:    "Revenue Operations",
		Domains: []string{"marketing", "finance", "crm"},
		Metrics: append(append([]state.Metric{}, growth.Metrics...),
			state.Metric{ID: "pipeline_value", Formula: "sum(pipeline_value)", Grain: "day", Domain: "crm"},
			state.Metric{ID: "deals_closed", Formula: "sum(deals_closed)", Grain: "day", Domain: "crm"},
		),
	}
	return map[string]state.Blueprint{
		growth.ID: growth,
		revops.ID: revops,
	}
}
