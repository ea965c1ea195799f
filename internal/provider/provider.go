// Package provider owns the "latest dataset" slot. Readers always see either
// the previous snapshot or a fully-loaded new one, never a partial read; a
// failed reload keeps the previous snapshot.
package provider

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/terraclean-dev/remwatch/internal/dataset"
)

// Provider is the sole owner of the current-dataset decision.
type Provider interface {
	// Current returns the latest fully-loaded snapshot, or nil when no load
	// has ever succeeded.
	Current() *dataset.Snapshot
	// Reload forces a synchronous refresh from the underlying source.
	Reload(ctx context.Context) error
}

var (
	reloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remwatch_dataset_reloads_total",
		Help: "Successful dataset reloads.",
	})
	reloadFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remwatch_dataset_reload_failures_total",
		Help: "Dataset reloads that failed and kept the previous snapshot.",
	})
)

// Static is a fixed-snapshot provider used in tests and tooling.
type Static struct {
	Snap *dataset.Snapshot
}

func (s *Static) Current() *dataset.Snapshot   { return s.Snap }
func (s *Static) Reload(context.Context) error { return nil }
