// Package query implements the live query broker: a policy-gated,
// cached projection over the in-memory canonical fact store. No SQL is
// ever executed — payload.sql is only validated to start with SELECT and
// to contain none of a fixed list of forbidden tokens, and table shapes
// are hard-coded projections.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/state"
)

var forbiddenTokens = []string{"insert", "update", "delete", "drop", "alter", "truncate", "create", "grant"}

// Payload is the normalized caller request shape.
type Payload struct {
	SQL        string
	Table      string
	Columns    []string
	Limit      int
	Filters    map[string]string
	TimeoutMs  int
	CostUnits  int
}

// Service wires the broker to the canonical store.
type Service struct {
	store *state.Store
}

func New(store *state.Store) *Service {
	return &Service{store: store}
}

// Result is the outcome of a live query.
type Result struct {
	ResultID string           `json:"resultId"`
	Rows     []map[string]any `json:"rows"`
	Cached   bool             `json:"cached"`
	Metadata map[string]any   `json:"queryMetadata"`
}

// Run executes (simulates) a live query against canonical facts,
// enforcing both the tenant's data policy and the connection's
// query policy before projecting and caching the result.
func (s *Service) Run(tenant state.Tenant, conn state.SourceConnection, tenantFacts []state.Fact, payload Payload) (Result, error) {
	if conn.Mode != "live" && conn.Mode != "hybrid" {
		return Result{}, apierror.BadRequest("connection %q does not support live queries in mode %q", conn.ID, conn.Mode)
	}
	if payload.SQL != "" {
		if err := validateSQL(payload.SQL); err != nil {
			return Result{}, err
		}
	}

	norm, err := normalize(payload)
	if err != nil {
		return Result{}, err
	}

	dp := tenant.DataPolicy
	if dp.MaxLiveQueryTimeoutMs > 0 && norm.TimeoutMs > dp.MaxLiveQueryTimeoutMs {
		return Result{}, apierror.BadRequest("timeoutMs %d exceeds tenant limit %d", norm.TimeoutMs, dp.MaxLiveQueryTimeoutMs)
	}
	if dp.MaxLiveQueryCostUnits > 0 && norm.CostUnits > dp.MaxLiveQueryCostUnits {
		return Result{}, apierror.BadRequest("costUnits %d exceeds tenant limit %d", norm.CostUnits, dp.MaxLiveQueryCostUnits)
	}
	if dp.MaxLiveQueryRows > 0 && norm.Limit > dp.MaxLiveQueryRows {
		return Result{}, apierror.BadRequest("limit %d exceeds tenant limit %d", norm.Limit, dp.MaxLiveQueryRows)
	}

	if err := enforceQueryPolicy(conn.QueryPolicy, norm); err != nil {
		return Result{}, err
	}

	key := cacheKey(tenant.ID, conn.ID, norm)
	if cached, ok := s.store.GetCachedLiveQuery(key); ok {
		return Result{ResultID: cached.ResultID, Rows: cached.Rows, Cached: true, Metadata: cached.QueryMetadata}, nil
	}

	rows := project(norm, tenantFacts)

	resultID := "qr_" + key[:16]
	metadata := map[string]any{"table": norm.Table, "rowCount": len(rows)}
	s.store.CacheLiveQuery(key, state.LiveQueryCacheEntry{
		ResultID:      resultID,
		Rows:          rows,
		QueryMetadata: metadata,
		ExpiresAt:     time.Now().Add(60 * time.Second),
		TenantID:      tenant.ID,
		ConnectionID:  conn.ID,
	})

	return Result{ResultID: resultID, Rows: rows, Cached: false, Metadata: metadata}, nil
}

func validateSQL(sql string) error {
	trimmed := strings.TrimSpace(strings.ToLower(sql))
	if !strings.HasPrefix(trimmed, "select") {
		return apierror.BadRequest("query sql must start with SELECT")
	}
	for _, tok := range forbiddenTokens {
		if strings.Contains(trimmed, tok) {
			return apierror.BadRequest("query sql contains forbidden token %q", tok)
		}
	}
	return nil
}

func normalize(p Payload) (Payload, error) {
	if p.Table == "" {
		p.Table = "default"
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	if p.Limit > 1000 {
		p.Limit = 1000
	}
	if p.Filters == nil {
		p.Filters = map[string]string{}
	}
	return p, nil
}

func enforceQueryPolicy(qp state.QueryPolicy, p Payload) error {
	if !contains(qp.AllowedTables, p.Table) {
		return apierror.Forbidden("table %q is not in the connection's allowed tables", p.Table)
	}
	allowedCols, ok := qp.AllowedColumnsByTable[p.Table]
	if !ok {
		allowedCols = qp.AllowedColumnsByTable["default"]
	}
	if len(allowedCols) > 0 {
		for _, col := range p.Columns {
			if !contains(allowedCols, col) {
				return apierror.Forbidden("column %q is not allowed for table %q", col, p.Table)
			}
		}
	}
	return nil
}

// project shapes canonical facts into one of the table-specific row
// shapes, applying filters, then column projection, then limit
// truncation.
func project(p Payload, facts []state.Fact) []map[string]any {
	var rows []map[string]any
	for _, f := range facts {
		row := shapeRow(p.Table, f)
		if !matchesFilters(row, p.Filters) {
			continue
		}
		rows = append(rows, projectColumns(row, p.Columns))
		if len(rows) >= p.Limit {
			break
		}
	}
	return rows
}

func shapeRow(table string, f state.Fact) map[string]any {
	switch table {
	case "metrics_daily":
		return map[string]any{"date": f.Date, "metricId": f.MetricID, "value": f.Value, "domain": f.Domain}
	case "campaign_performance":
		return map[string]any{"date": f.Date, "metric": f.MetricID, "spend_or_revenue": f.Value, "source": f.Source}
	case "finance_ledger":
		return map[string]any{"date": f.Date, "account": f.MetricID, "amount": f.Value}
	case "crm_pipeline":
		return map[string]any{"date": f.Date, "stage": f.MetricID, "value": f.Value}
	default:
		return map[string]any{"tenantId": f.TenantID, "domain": f.Domain, "metricId": f.MetricID, "date": f.Date, "value": f.Value, "source": f.Source}
	}
}

func matchesFilters(row map[string]any, filters map[string]string) bool {
	for k, v := range filters {
		rv, ok := row[k]
		if !ok || fmt.Sprintf("%v", rv) != v {
			return false
		}
	}
	return true
}

func projectColumns(row map[string]any, columns []string) map[string]any {
	if len(columns) == 0 {
		return row
	}
	out := make(map[string]any, len(columns))
	for _, c := range columns {
		if v, ok := row[c]; ok {
			out[c] = v
		}
	}
	return out
}

func cacheKey(tenantID, connectionID string, p Payload) string {
	cols := append([]string{}, p.Columns...)
	sort.Strings(cols)

	filterKeys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		filterKeys = append(filterKeys, k)
	}
	sort.Strings(filterKeys)
	var filterParts []string
	for _, k := range filterKeys {
		filterParts = append(filterParts, k+"="+p.Filters[k])
	}

	raw, _ := json.Marshal(struct {
		Tenant, Conn, Table string
		Cols, Filters       []string
		Limit               int
	}{tenantID, connectionID, p.Table, cols, filterParts, p.Limit})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Materialize ingests a query result's rows as canonical facts, using
// the caller-supplied column mapping, with source tag
// "materialized:{datasetName}". Non-finite numeric values are skipped.
func (s *Service) Materialize(tenant state.Tenant, resultID, datasetName string, rows []map[string]any, mapping Mapping) state.MaterializationRun {
	inserted := 0
	now := time.Now()
	for _, row := range rows {
		value, ok := numericValue(row[mapping.ValueColumn])
		if !ok || math.IsInf(value, 0) || math.IsNaN(value) {
			continue
		}
		metricID := mapping.FixedMetricID
		if metricID == "" {
			if mc, ok := row[mapping.MetricColumn].(string); ok {
				metricID = mc
			}
		}
		date, _ := row[mapping.DateColumn].(string)

		fact := state.Fact{
			TenantID: tenant.ID,
			Domain:   mapping.Domain,
			MetricID: metricID,
			Date:     date,
			Value:    value,
			Source:   "materialized:" + datasetName,
			Lineage:  state.Lineage{Provider: "materialized", ConnectorRunID: resultID, ExtractedAt: now},
		}
		if _, ok := s.store.InsertFact(fact); ok {
			inserted++
		}
	}

	return s.store.AppendMaterialization(state.MaterializationRun{
		SourceResultID:  resultID,
		DatasetName:     datasetName,
		InsertedRecords: inserted,
		TotalRows:       len(rows),
	})
}

// Mapping describes how to turn a projected row into a canonical fact.
type Mapping struct {
	Domain        string
	MetricColumn  string
	FixedMetricID string
	ValueColumn   string
	DateColumn    string
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
