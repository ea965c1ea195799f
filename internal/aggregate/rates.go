package aggregate

import (
	"sort"
	"strings"

	"github.com/terraclean-dev/remwatch/internal/dataset"
)

// ClusterRates computes per-cluster completion rates over each cluster's
// deduplicated member sites, sorted by completion rate descending. A cluster
// with zero required quantity scores 0.
func ClusterRates(snap *dataset.Snapshot, records []dataset.Record) []ClusterRate {
	if !snap.Has(dataset.FieldCluster) || !snap.Has(dataset.FieldSite) ||
		!snap.Has(dataset.FieldQuantityTotal) || !snap.Has(dataset.FieldQuantityDone) {
		return nil
	}

	type bucket struct {
		planned float64
		done    float64
		sites   map[string]bool
	}
	buckets := make(map[string]*bucket)
	var order []string

	for _, r := range records {
		cluster := strings.TrimSpace(r.Cluster)
		site := strings.TrimSpace(r.Site)
		if cluster == "" {
			continue
		}
		b, ok := buckets[cluster]
		if !ok {
			b = &bucket{sites: make(map[string]bool)}
			buckets[cluster] = b
			order = append(order, cluster)
		}
		if site == "" || b.sites[site] {
			continue
		}
		b.sites[site] = true
		b.planned += r.QuantityTotal
		b.done += r.QuantityDone
	}

	rates := make([]ClusterRate, 0, len(order))
	for _, cluster := range order {
		b := buckets[cluster]
		rate := 0.0
		if b.planned > 0 {
			rate = round1(b.done / b.planned * 100)
		}
		rates = append(rates, ClusterRate{
			Cluster:          cluster,
			CompletionRate:   rate,
			TotalToRemediate: b.planned,
			TotalRemediated:  b.done,
		})
	}

	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].CompletionRate > rates[j].CompletionRate
	})
	return rates
}

// SiteRates computes per-site completion rates from each site's first
// record, sorted by completion rate descending.
func SiteRates(snap *dataset.Snapshot, records []dataset.Record) []SiteRate {
	if !snap.Has(dataset.FieldSite) ||
		!snap.Has(dataset.FieldQuantityTotal) || !snap.Has(dataset.FieldQuantityDone) {
		return nil
	}

	var rates []SiteRate
	forEachUniqueSite(records, func(r dataset.Record) {
		rate := 0.0
		if r.QuantityTotal > 0 {
			rate = round1(r.QuantityDone / r.QuantityTotal * 100)
		}
		cluster := strings.TrimSpace(r.Cluster)
		if cluster == "" {
			cluster = "Unknown"
		}
		rates = append(rates, SiteRate{
			Site:             strings.TrimSpace(r.Site),
			Cluster:          cluster,
			CompletionRate:   rate,
			TotalToRemediate: r.QuantityTotal,
			TotalRemediated:  r.QuantityDone,
		})
	})

	sort.SliceStable(rates, func(i, j int) bool {
		return rates[i].CompletionRate > rates[j].CompletionRate
	})
	return rates
}
