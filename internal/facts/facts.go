// Package facts implements the metric query and aggregation surface:
// bucketing canonical facts by grain, deriving formula metrics, and
// producing summary statistics.
package facts

import (
	"math"
	"sort"
	"time"

	"github.com/rcourtman/insightctl/internal/apierror"
	"github.com/rcourtman/insightctl/internal/state"
)

// Grain is the bucketing resolution for a metric query.
type Grain string

const (
	GrainDay   Grain = "day"
	GrainWeek  Grain = "week"
	GrainMonth Grain = "month"
)

// Point is one bucketed, aggregated value in a metric series.
type Point struct {
	Bucket string  `json:"bucket"`
	Value  float64 `json:"value"`
}

// Summary rounds every statistic to 3 decimals.
type Summary struct {
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
}

// Series is the ordered result of a metric query.
type Series struct {
	MetricID string  `json:"metricId"`
	Grain    Grain   `json:"grain"`
	Points   []Point `json:"points"`
	Summary  Summary `json:"summary"`
}

// derivedInputs maps a formula-derived metric id to the raw metric ids
// it's computed from, per the blueprint formula catalog.
var derivedInputs = map[string][2]string{
	"roas":   {"revenue", "spend"},
	"profit": {"cash_in", "cash_out"},
}

// QueryMetric buckets tenant facts by grain and aggregates them, deriving
// formula metrics (roas, profit, runway_days) from their raw inputs when
// metricId names one instead of a literal fact series.
func QueryMetric(tenantFacts []state.Fact, metricID string, grain Grain, startDate, endDate string) (Series, error) {
	if metricID == "" {
		return Series{}, apierror.BadRequest("metricId is required")
	}
	if grain == "" {
		grain = GrainDay
	}

	if inputs, ok := derivedInputs[metricID]; ok {
		return queryDerived(tenantFacts, metricID, inputs[0], inputs[1], grain, startDate, endDate, combineRatioOrDiff(metricID))
	}
	if metricID == "runway_days" {
		return queryDerived(tenantFacts, metricID, "cash_in", "cash_out", grain, startDate, endDate, runwayDays)
	}

	buckets := bucketSums(filterFacts(tenantFacts, metricID, startDate, endDate), grain)
	return toSeries(metricID, grain, buckets), nil
}

func combineRatioOrDiff(metricID string) func(a, b float64) float64 {
	if metricID == "roas" {
		return func(revenue, spend float64) float64 {
			if spend == 0 {
				return 0
			}
			return revenue / spend
		}
	}
	return func(cashIn, cashOut float64) float64 { return cashIn - cashOut }
}

func runwayDays(cashIn, cashOut float64) float64 {
	if cashOut == 0 {
		return 999
	}
	net := cashIn - cashOut
	if net < 0 {
		net = 0
	}
	return net / cashOut * 30
}

func queryDerived(tenantFacts []state.Fact, metricID, rawA, rawB string, grain Grain, startDate, endDate string, combine func(a, b float64) float64) (Series, error) {
	a := bucketSums(filterFacts(tenantFacts, rawA, startDate, endDate), grain)
	b := bucketSums(filterFacts(tenantFacts, rawB, startDate, endDate), grain)

	allBuckets := map[string]bool{}
	for k := range a {
		allBuckets[k] = true
	}
	for k := range b {
		allBuckets[k] = true
	}

	combined := make(map[string]float64, len(allBuckets))
	for bucket := range allBuckets {
		combined[bucket] = combine(a[bucket], b[bucket])
	}
	return toSeries(metricID, grain, combined), nil
}

func filterFacts(facts []state.Fact, metricID, startDate, endDate string) []state.Fact {
	var out []state.Fact
	for _, f := range facts {
		if f.MetricID != metricID {
			continue
		}
		if startDate != "" && f.Date < startDate {
			continue
		}
		if endDate != "" && f.Date > endDate {
			continue
		}
		out = append(out, f)
	}
	return out
}

func bucketSums(facts []state.Fact, grain Grain) map[string]float64 {
	buckets := map[string]float64{}
	for _, f := range facts {
		buckets[bucketKey(f.Date, grain)] += f.Value
	}
	return buckets
}

// bucketKey buckets an ISO yyyy-mm-dd date: day is the date itself, week
// is the ISO Monday of that date's week, month is the first 7 characters.
func bucketKey(date string, grain Grain) string {
	switch grain {
	case GrainWeek:
		t, err := time.Parse("2006-01-02", date)
		if err != nil {
			return date
		}
		offset := (int(t.Weekday()) + 6) % 7 // days since Monday
		monday := t.AddDate(0, 0, -offset)
		return monday.Format("2006-01-02")
	case GrainMonth:
		if len(date) >= 7 {
			return date[:7]
		}
		return date
	default:
		return date
	}
}

func toSeries(metricID string, grain Grain, buckets map[string]float64) Series {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	points := make([]Point, 0, len(keys))
	var total, max, min float64
	for i, k := range keys {
		v := buckets[k]
		points = append(points, Point{Bucket: k, Value: round3(v)})
		total += v
		if i == 0 || v > max {
			max = v
		}
		if i == 0 || v < min {
			min = v
		}
	}
	avg := 0.0
	if len(keys) > 0 {
		avg = total / float64(len(keys))
	}

	return Series{
		MetricID: metricID,
		Grain:    grain,
		Points:   points,
		Summary: Summary{
			Total:   round3(total),
			Average: round3(avg),
			Max:     round3(max),
			Min:     round3(min),
		},
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
