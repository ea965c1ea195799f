// Package ranking scores sites against the program deadline and orders them
// by composite performance.
package ranking

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/terraclean-dev/remwatch/internal/dataset"
)

// SitePerformance is one site's scored entry in the performance ranking.
type SitePerformance struct {
	Site                string  `json:"site"`
	Cluster             string  `json:"cluster"`
	CompletionRate      float64 `json:"completion_rate"`
	DaysAheadBehind     float64 `json:"days_ahead_behind"`
	TimelinePerformance float64 `json:"timeline_performance"`
	CompositeScore      float64 `json:"composite_score"`
	ActiveStatus        string  `json:"active_status"`
	TotalToRemediate    float64 `json:"total_to_remediate"`
	TotalRemediated     float64 `json:"total_remediated"`
}

// LaggingSite is a site that cannot finish by the program deadline at its
// stated required pace.
type LaggingSite struct {
	Site              string  `json:"site"`
	Cluster           string  `json:"cluster"`
	DaysRequired      float64 `json:"days_required"`
	DaysUntilDeadline int     `json:"days_until_deadline"`
	DaysOverdue       float64 `json:"days_overdue"`
	ActiveStatus      string  `json:"active_status"`
}

type Engine struct {
	weights       WeightSet
	minCompletion float64
	deadline      time.Time
	logger        *slog.Logger

	// Now is the clock seam; tests pin it.
	Now func() time.Time
}

func NewEngine(weights WeightSet, minCompletionPct float64, deadline time.Time, logger *slog.Logger) *Engine {
	return &Engine{
		weights:       weights,
		minCompletion: minCompletionPct,
		deadline:      deadline,
		logger:        logger,
		Now:           time.Now,
	}
}

// Rankings scores every qualifying site in the agency's records and returns
// them ordered by composite score descending (top performers first). Sites
// with neither meaningful progress (completion above the minimum) nor active
// status are dropped entirely, not scored as zero. Ties keep encounter order.
func (e *Engine) Rankings(snap *dataset.Snapshot, records []dataset.Record) []SitePerformance {
	if !snap.Has(dataset.FieldSite) ||
		!snap.Has(dataset.FieldQuantityTotal) || !snap.Has(dataset.FieldQuantityDone) {
		return nil
	}
	daysUntil := dataset.DaysUntil(e.deadline, e.Now())

	var ranked []SitePerformance
	forEachUniqueSite(records, func(r dataset.Record) {
		if r.QuantityTotal <= 0 {
			return
		}

		completion := r.QuantityDone / r.QuantityTotal * 100
		completion = clamp(completion, 0, 100)

		// Neutral 50 when days_required is blank, zero, or negative.
		timeline := 50.0
		daysAheadBehind := 0.0
		if r.DaysRequired != nil && *r.DaysRequired > 0 {
			daysAheadBehind = float64(daysUntil) - *r.DaysRequired
			timeline = clamp(50+daysAheadBehind/2, 0, 100)
		}

		composite := completion*e.weights.Completion + timeline*e.weights.Timeline

		if completion <= e.minCompletion && !r.Active() {
			return
		}

		ranked = append(ranked, SitePerformance{
			Site:                strings.TrimSpace(r.Site),
			Cluster:             clusterOrUnknown(r.Cluster),
			CompletionRate:      round1(completion),
			DaysAheadBehind:     round1(daysAheadBehind),
			TimelinePerformance: round1(timeline),
			CompositeScore:      round1(composite),
			ActiveStatus:        activeStatusLabel(r.ActiveSite),
			TotalToRemediate:    r.QuantityTotal,
			TotalRemediated:     r.QuantityDone,
		})
	})

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CompositeScore > ranked[j].CompositeScore
	})
	return ranked
}

// LaggingPerformers is the top-performers list reversed, not an independent
// worst-case computation. Low relative rank, not absolute badness.
func LaggingPerformers(top []SitePerformance) []SitePerformance {
	out := make([]SitePerformance, len(top))
	for i, s := range top {
		out[len(top)-1-i] = s
	}
	return out
}

// LaggingByDeadline answers a different question from the ranking reversal:
// which sites cannot physically finish by the deadline at their stated
// required pace. Sites with blank, zero, or negative days_required are
// silently absent from this view. Sorted by days overdue descending.
func (e *Engine) LaggingByDeadline(snap *dataset.Snapshot, records []dataset.Record) []LaggingSite {
	if !snap.Has(dataset.FieldSite) || !snap.Has(dataset.FieldDaysRequired) {
		return nil
	}
	daysUntil := dataset.DaysUntil(e.deadline, e.Now())

	var lagging []LaggingSite
	forEachUniqueSite(records, func(r dataset.Record) {
		if r.DaysRequired == nil || *r.DaysRequired <= 0 {
			return
		}
		if *r.DaysRequired <= float64(daysUntil) {
			return
		}
		lagging = append(lagging, LaggingSite{
			Site:              strings.TrimSpace(r.Site),
			Cluster:           clusterOrUnknown(r.Cluster),
			DaysRequired:      round1(*r.DaysRequired),
			DaysUntilDeadline: daysUntil,
			DaysOverdue:       round1(*r.DaysRequired - float64(daysUntil)),
			ActiveStatus:      activeStatusLabel(r.ActiveSite),
		})
	})

	sort.SliceStable(lagging, func(i, j int) bool {
		return lagging[i].DaysOverdue > lagging[j].DaysOverdue
	})
	return lagging
}

func forEachUniqueSite(records []dataset.Record, fn func(dataset.Record)) {
	seen := make(map[string]bool)
	for _, r := range records {
		site := strings.TrimSpace(r.Site)
		if site == "" || seen[site] {
			continue
		}
		seen[site] = true
		fn(r)
	}
}

func clusterOrUnknown(cluster string) string {
	if c := strings.TrimSpace(cluster); c != "" {
		return c
	}
	return "Unknown"
}

func activeStatusLabel(raw string) string {
	if s := strings.ToLower(strings.TrimSpace(raw)); s != "" {
		return s
	}
	return "unknown"
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
