package connectors

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/rcourtman/insightctl/internal/state"
)

// GeneratedFact is one synthetic measurement produced by the simulator
// for a single (day, metricId) pair, before idempotency de-duplication.
type GeneratedFact struct {
	Domain   string
	MetricID string
	Date     string
	Value    float64
}

// Generate produces one fact per (day, metricId-in-domain) across
// periodDays ending today. Values are derived from a
// per-(tenantId,domain,metricId,date) hash rather than a global random
// source, so repeated syncs over the same period are reproducible
// without requiring a shared seed across the process.
func Generate(tenantID, domain string, periodDays int, now time.Time) []GeneratedFact {
	metricIDs := MetricsForDomain(domain)
	if len(metricIDs) == 0 || periodDays <= 0 {
		return nil
	}

	facts := make([]GeneratedFact, 0, periodDays*len(metricIDs))
	for day := periodDays - 1; day >= 0; day-- {
		date := now.AddDate(0, 0, -day).Format("2006-01-02")
		for _, metricID := range metricIDs {
			facts = append(facts, GeneratedFact{
				Domain:   domain,
				MetricID: metricID,
				Date:     date,
				Value:    syntheticValue(tenantID, domain, metricID, date),
			})
		}
	}
	return facts
}

// syntheticValue derives a deterministic, plausible-looking value in
// [base, base*1.6) from the fact's own identity, so the same
// (tenant, domain, metric, date) always yields the same number.
func syntheticValue(tenantID, domain, metricID, date string) float64 {
	h := fnv.New64a()
	h.Write([]byte(tenantID + "|" + domain + "|" + metricID + "|" + date))
	sum := h.Sum64()

	base := baseValue(metricID)
	frac := float64(sum%10000) / 10000.0 // deterministic in [0,1)
	return math.Round((base*(0.7+0.6*frac))*100) / 100
}

func baseValue(metricID string) float64 {
	switch metricID {
	case "revenue":
		return 4200
	case "spend":
		return 1500
	case "cash_in":
		return 9000
	case "cash_out":
		return 6200
	case "pipeline_value":
		return 35000
	case "deals_closed":
		return 4
	default:
		return 100
	}
}

// ToCanonicalFacts converts generated facts into canonical state.Fact
// records carrying the lineage of this simulated connector run.
func ToCanonicalFacts(tenantID, source, connectorRunID string, generated []GeneratedFact, extractedAt time.Time) []state.Fact {
	out := make([]state.Fact, 0, len(generated))
	for _, g := range generated {
		out = append(out, state.Fact{
			TenantID: tenantID,
			Domain:   g.Domain,
			MetricID: g.MetricID,
			Date:     g.Date,
			Value:    g.Value,
			Source:   source,
			Lineage: state.Lineage{
				Provider:       source,
				ConnectorRunID: connectorRunID,
				ExtractedAt:    extractedAt,
			},
		})
	}
	return out
}
