// Package filters resolves the dependent Agency → Cluster → Site selectors.
// Option sets narrow progressively: the agency filter applies first, then the
// cluster filter on the already-narrowed subset. Changing an upstream level
// always clears every downstream selection; a stale cluster choice must never
// survive an agency change that no longer contains it.
package filters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/terraclean-dev/remwatch/internal/dataset"
)

// Level identifies one selector in the cascade, in dependency order.
type Level int

const (
	LevelAgency Level = iota
	LevelCluster
	LevelSite
)

func (l Level) String() string {
	switch l {
	case LevelAgency:
		return "agency"
	case LevelCluster:
		return "cluster"
	case LevelSite:
		return "site"
	}
	return "unknown"
}

// Selection holds the current (multi-select) values at each level. Empty
// slices mean "no selection" — show everything.
type Selection struct {
	Agencies []string `json:"agencies"`
	Clusters []string `json:"clusters"`
	Sites    []string `json:"sites"`
}

// Options carries the valid option sets for the current selection. Empty
// sets come with a placeholder note instead of an error.
type Options struct {
	Agencies     []string `json:"agencies"`
	Clusters     []string `json:"clusters"`
	ClustersNote string   `json:"clusters_note"`
	Sites        []string `json:"sites"`
	SitesNote    string   `json:"sites_note"`
}

// Apply records a change at one level, clears every downstream selection,
// and recomputes the option sets. This also covers the initial-load case:
// apply an empty agency change to populate the first level.
func Apply(snap *dataset.Snapshot, prev Selection, changed Level, values []string) (Selection, Options) {
	next := prev
	switch changed {
	case LevelAgency:
		next.Agencies = values
		next.Clusters = nil
		next.Sites = nil
	case LevelCluster:
		next.Clusters = values
		next.Sites = nil
	case LevelSite:
		next.Sites = values
	}
	return next, Resolve(snap, next)
}

// Resolve computes the valid option sets for a selection. Pure and
// idempotent: resolving the same selection twice yields identical options.
func Resolve(snap *dataset.Snapshot, sel Selection) Options {
	opts := Options{}
	if snap.Empty() {
		opts.ClustersNote = "No data available"
		opts.SitesNote = "No data available"
		return opts
	}

	opts.Agencies = distinctSorted(snap.Records, func(r dataset.Record) string { return r.Agency })

	byAgency := narrow(snap.Records, sel.Agencies, func(r dataset.Record) string { return r.Agency })
	opts.Clusters = distinctSorted(byAgency, func(r dataset.Record) string { return r.Cluster })
	opts.ClustersNote = note("cluster", len(opts.Clusters))

	byCluster := narrow(byAgency, sel.Clusters, func(r dataset.Record) string { return r.Cluster })
	opts.Sites = distinctSorted(byCluster, func(r dataset.Record) string { return r.Site })
	opts.SitesNote = note("site", len(opts.Sites))

	return opts
}

// narrow filters records to those whose key is in the selected set; an empty
// selection keeps everything.
func narrow(records []dataset.Record, selected []string, key func(dataset.Record) string) []dataset.Record {
	if len(selected) == 0 {
		return records
	}
	want := make(map[string]bool, len(selected))
	for _, s := range selected {
		want[strings.TrimSpace(s)] = true
	}
	var out []dataset.Record
	for _, r := range records {
		if want[strings.TrimSpace(key(r))] {
			out = append(out, r)
		}
	}
	return out
}

func distinctSorted(records []dataset.Record, key func(dataset.Record) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		k := strings.TrimSpace(key(r))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func note(level string, count int) string {
	if count == 0 {
		return fmt.Sprintf("No %ss available", level)
	}
	label := strings.ToUpper(level[:1]) + level[1:]
	return fmt.Sprintf("Select %s... (%d available)", label, count)
}
