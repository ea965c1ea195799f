// Package aggregate computes per-agency remediation metrics from a dataset
// snapshot. Metric groups are computed independently: a column missing for
// one group defaults that group to zero and records it as unavailable
// without affecting the others.
package aggregate

import (
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/terraclean-dev/remwatch/internal/dataset"
)

// Metrics holds the derived values for one agency. Zero values are real
// zeros; metrics that could not be computed are listed in Report.Unavailable.
type Metrics struct {
	ClustersCount  int `json:"clusters_count"`
	SitesCount     int `json:"sites_count"`
	ActiveSites    int `json:"active_sites"`
	InactiveSites  int `json:"inactive_sites"`

	PlannedMachines  int `json:"planned_machines"`
	DeployedMachines int `json:"deployed_machines"`

	SitesNotOnTrack   int `json:"sites_not_on_track"`
	CriticallyLagging int `json:"critically_lagging"`

	AvgClusterCompletion  float64 `json:"avg_cluster_completion"`
	BestClusterCompletion float64 `json:"best_cluster_completion"`

	TotalCapacity    float64 `json:"total_capacity"`
	AvgDailyCapacity float64 `json:"avg_daily_capacity"`

	TotalPlannedQuantity    float64 `json:"total_planned_quantity"`
	TotalRemediatedQuantity float64 `json:"total_remediated_quantity"`
	RemainingQuantity       float64 `json:"remaining_quantity"`
	OverallCompletionRate   float64 `json:"overall_completion_rate"`

	CurrentDailyRate  float64 `json:"current_daily_rate"`
	RequiredDailyRate float64 `json:"required_daily_rate"`
	DailyPerformance  float64 `json:"daily_performance_pct"`
	DailyStatus       string  `json:"daily_status,omitempty"`

	DaysRemaining int `json:"days_remaining"`
}

// ClusterRate is one cluster's completion summary over its deduplicated
// member sites.
type ClusterRate struct {
	Cluster          string  `json:"cluster"`
	CompletionRate   float64 `json:"completion_rate"`
	TotalToRemediate float64 `json:"total_to_remediate"`
	TotalRemediated  float64 `json:"total_remediated"`
}

// SiteRate is one site's completion summary, taken from the site's first
// record.
type SiteRate struct {
	Site             string  `json:"site"`
	Cluster          string  `json:"cluster"`
	CompletionRate   float64 `json:"completion_rate"`
	TotalToRemediate float64 `json:"total_to_remediate"`
	TotalRemediated  float64 `json:"total_remediated"`
}

// Report is the best-effort aggregation result for one agency. It is always
// returned: data-quality problems default metrics and are recorded in
// Unavailable rather than raised as errors.
type Report struct {
	AgencyKey     string        `json:"agency_key"`
	AgencyDisplay string        `json:"agency_display"`
	NoData        bool          `json:"no_data"`
	Metrics       Metrics       `json:"metrics"`
	ClusterRates  []ClusterRate `json:"cluster_rates,omitempty"`
	SiteRates     []SiteRate    `json:"site_rates,omitempty"`
	// Unavailable lists metrics that defaulted to zero because the source
	// columns were absent, so callers can distinguish zero from unknown.
	Unavailable []string `json:"unavailable,omitempty"`
}

// Aggregator computes agency reports against a fixed program deadline.
type Aggregator struct {
	deadline       time.Time
	fallbackWindow int
	logger         *slog.Logger

	// Now is the clock seam; tests pin it.
	Now func() time.Time
}

func New(deadline time.Time, fallbackWindowDays int, logger *slog.Logger) *Aggregator {
	if fallbackWindowDays <= 0 {
		fallbackWindowDays = 90
	}
	return &Aggregator{
		deadline:       deadline,
		fallbackWindow: fallbackWindowDays,
		logger:         logger,
		Now:            time.Now,
	}
}

// Report computes the full metric set for one agency's records.
func (a *Aggregator) Report(snap *dataset.Snapshot, agencyKey string) Report {
	rep := Report{
		AgencyKey:     agencyKey,
		AgencyDisplay: dataset.DisplayAgencyName(agencyKey),
	}

	records := snap.ByAgency(agencyKey)
	rep.Metrics.DaysRemaining = dataset.DaysUntil(a.deadline, a.Now())
	if len(records) == 0 {
		rep.NoData = true
		return rep
	}

	a.countGroups(snap, records, &rep)
	a.countMachines(snap, records, &rep)
	a.scheduleFlags(snap, records, &rep)
	a.clusterCompletion(snap, records, &rep)
	a.capacity(snap, records, &rep)
	a.overallProgress(snap, records, &rep)
	a.dailyPerformance(snap, records, &rep)

	rep.ClusterRates = ClusterRates(snap, records)
	rep.SiteRates = SiteRates(snap, records)

	if len(rep.Unavailable) > 0 {
		a.logger.Warn("some metrics unavailable for agency",
			"agency", agencyKey, "unavailable", rep.Unavailable)
	}
	return rep
}

func (a *Aggregator) countGroups(snap *dataset.Snapshot, records []dataset.Record, rep *Report) {
	if snap.Has(dataset.FieldCluster) {
		rep.Metrics.ClustersCount = distinctCount(records, func(r dataset.Record) string { return r.Cluster })
	} else {
		rep.Unavailable = append(rep.Unavailable, "clusters_count")
	}
	if snap.Has(dataset.FieldSite) {
		rep.Metrics.SitesCount = distinctCount(records, func(r dataset.Record) string { return r.Site })
	} else {
		rep.Unavailable = append(rep.Unavailable, "sites_count")
	}

	if !snap.Has(dataset.FieldActiveSite) {
		rep.Unavailable = append(rep.Unavailable, "active_sites", "inactive_sites")
		return
	}
	for _, r := range records {
		switch {
		case r.Active():
			rep.Metrics.ActiveSites++
		case r.Inactive():
			rep.Metrics.InactiveSites++
		}
	}
}

func (a *Aggregator) countMachines(snap *dataset.Snapshot, records []dataset.Record, rep *Report) {
	if !snap.Has(dataset.FieldMachine) {
		rep.Unavailable = append(rep.Unavailable, "planned_machines", "deployed_machines")
		return
	}
	// Token counts, not distinct-machine counts: a machine listed on three
	// rows counts three times.
	rep.Metrics.PlannedMachines = CountMachines(records, false)
	if snap.Has(dataset.FieldActiveSite) {
		rep.Metrics.DeployedMachines = CountMachines(records, true)
	} else {
		rep.Unavailable = append(rep.Unavailable, "deployed_machines")
	}
}

// CountMachines sums machine tokens across rows, optionally restricted to
// active sites.
func CountMachines(records []dataset.Record, onlyActive bool) int {
	total := 0
	for _, r := range records {
		if onlyActive && !r.Active() {
			continue
		}
		total += len(r.MachineTokens())
	}
	return total
}

func (a *Aggregator) scheduleFlags(snap *dataset.Snapshot, records []dataset.Record, rep *Report) {
	if snap.Has(dataset.FieldActiveSite) && snap.Has(dataset.FieldExpectedEnd) {
		deadline := truncate(a.deadline)
		for _, r := range records {
			if r.Active() && r.ExpectedEnd != nil && truncate(*r.ExpectedEnd).After(deadline) {
				rep.Metrics.SitesNotOnTrack++
			}
		}
	} else {
		rep.Unavailable = append(rep.Unavailable, "sites_not_on_track")
	}

	if snap.Has(dataset.FieldActiveSite) && snap.Has(dataset.FieldDaysRequired) && snap.Has(dataset.FieldDaysToDeadline) {
		for _, r := range records {
			if r.Active() && r.DaysRequired != nil && r.DaysToDeadline != nil &&
				*r.DaysRequired > *r.DaysToDeadline {
				rep.Metrics.CriticallyLagging++
			}
		}
	} else {
		rep.Unavailable = append(rep.Unavailable, "critically_lagging")
	}
}

func (a *Aggregator) clusterCompletion(snap *dataset.Snapshot, records []dataset.Record, rep *Report) {
	if !snap.Has(dataset.FieldCluster) || !snap.Has(dataset.FieldQuantityTotal) || !snap.Has(dataset.FieldQuantityDone) {
		rep.Unavailable = append(rep.Unavailable, "avg_cluster_completion", "best_cluster_completion")
		return
	}
	rates := ClusterRates(snap, records)
	if len(rates) == 0 {
		return
	}
	var sum, best float64
	for i, cr := range rates {
		sum += cr.CompletionRate
		if i == 0 || cr.CompletionRate > best {
			best = cr.CompletionRate
		}
	}
	rep.Metrics.AvgClusterCompletion = round1(sum / float64(len(rates)))
	rep.Metrics.BestClusterCompletion = round1(best)
}

func (a *Aggregator) capacity(snap *dataset.Snapshot, records []dataset.Record, rep *Report) {
	if !snap.Has(dataset.FieldDailyCapacity) {
		rep.Unavailable = append(rep.Unavailable, "total_capacity", "avg_daily_capacity")
		return
	}
	var sum float64
	for _, r := range records {
		if r.DailyCapacity != nil {
			sum += *r.DailyCapacity
		}
	}
	rep.Metrics.TotalCapacity = math.Round(sum)
	if len(records) > 0 {
		rep.Metrics.AvgDailyCapacity = round1(sum / float64(len(records)))
	}
}

func (a *Aggregator) overallProgress(snap *dataset.Snapshot, records []dataset.Record, rep *Report) {
	if !snap.Has(dataset.FieldQuantityTotal) || !snap.Has(dataset.FieldQuantityDone) {
		rep.Unavailable = append(rep.Unavailable,
			"total_planned_quantity", "total_remediated_quantity",
			"remaining_quantity", "overall_completion_rate")
		return
	}
	// Each unique site counts once; repeated rows for a site would otherwise
	// inflate the totals.
	var planned, done float64
	forEachUniqueSite(records, func(r dataset.Record) {
		planned += r.QuantityTotal
		done += r.QuantityDone
	})

	rep.Metrics.TotalPlannedQuantity = planned
	rep.Metrics.TotalRemediatedQuantity = done
	rep.Metrics.RemainingQuantity = math.Max(0, planned-done)
	if planned > 0 {
		// Not clamped: cumulative beyond the requirement reads over 100%.
		rep.Metrics.OverallCompletionRate = round1(done / planned * 100)
	}
}

func (a *Aggregator) dailyPerformance(snap *dataset.Snapshot, records []dataset.Record, rep *Report) {
	var current float64
	switch {
	case snap.Has(dataset.FieldQuantityToday):
		for _, r := range records {
			if r.QuantityToday != nil {
				current += *r.QuantityToday
			}
		}
	case snap.Has(dataset.FieldDailyCapacity):
		for _, r := range records {
			if r.DailyCapacity != nil {
				current += *r.DailyCapacity
			}
		}
	case snap.Has(dataset.FieldQuantityDone):
		var done float64
		for _, r := range records {
			done += r.QuantityDone
		}
		if done > 0 {
			current = done / float64(a.fallbackWindow)
		}
	default:
		rep.Unavailable = append(rep.Unavailable, "current_daily_rate")
	}
	rep.Metrics.CurrentDailyRate = round1(current)

	if !snap.Has(dataset.FieldQuantityTotal) || !snap.Has(dataset.FieldQuantityDone) {
		rep.Unavailable = append(rep.Unavailable, "required_daily_rate")
		return
	}
	remaining := rep.Metrics.RemainingQuantity
	var required float64
	if rep.Metrics.DaysRemaining > 0 {
		required = remaining / float64(rep.Metrics.DaysRemaining)
	} else {
		// Deadline passed: everything left is needed immediately.
		required = remaining
	}
	rep.Metrics.RequiredDailyRate = round1(required)

	if rep.Metrics.RequiredDailyRate > 0 {
		pct := round1(rep.Metrics.CurrentDailyRate / rep.Metrics.RequiredDailyRate * 100)
		rep.Metrics.DailyPerformance = pct
		switch {
		case pct >= 100:
			rep.Metrics.DailyStatus = "ahead"
		case pct >= 80:
			rep.Metrics.DailyStatus = "on_track"
		case pct >= 50:
			rep.Metrics.DailyStatus = "behind"
		default:
			rep.Metrics.DailyStatus = "critical"
		}
	}
}

func distinctCount(records []dataset.Record, key func(dataset.Record) string) int {
	seen := make(map[string]bool)
	for _, r := range records {
		k := strings.TrimSpace(key(r))
		if k != "" {
			seen[k] = true
		}
	}
	return len(seen)
}

// forEachUniqueSite visits the first record of each distinct site, in
// encounter order.
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

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
