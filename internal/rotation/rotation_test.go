package rotation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/terraclean-dev/remwatch/internal/aggregate"
	"github.com/terraclean-dev/remwatch/internal/dataset"
	"github.com/terraclean-dev/remwatch/internal/provider"
	"github.com/terraclean-dev/remwatch/internal/ranking"
)

var testDeadline = time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rotationSnapshot(agencies ...string) *dataset.Snapshot {
	snap := &dataset.Snapshot{
		Fields: map[dataset.Field]bool{
			dataset.FieldAgency: true, dataset.FieldCluster: true,
			dataset.FieldSite: true, dataset.FieldQuantityTotal: true,
			dataset.FieldQuantityDone: true, dataset.FieldActiveSite: true,
		},
		LoadedAt: time.Now(),
	}
	for i, a := range agencies {
		snap.Records = append(snap.Records, dataset.Record{
			Agency: a, Cluster: "C1", Site: a + "-S1",
			QuantityTotal: 1000, QuantityDone: float64(100 * (i + 1)),
			ActiveSite: "yes",
		})
	}
	return snap
}

func newTestScheduler(p provider.Provider) *Scheduler {
	agg := aggregate.New(testDeadline, 90, discardLogger())
	rank := ranking.NewEngine(ranking.DefaultWeights(), 5, testDeadline, discardLogger())
	return NewScheduler(p, agg, rank, nil, time.Hour, 0, discardLogger())
}

// recordingClient captures published events for assertions.
type recordingClient struct {
	mu       sync.Mutex
	subjects []string
}

func (c *recordingClient) Publish(subject string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return nil
}

func (c *recordingClient) Close() {}

func TestRotationCyclesThroughAgencies(t *testing.T) {
	s := newTestScheduler(&provider.Static{Snap: rotationSnapshot("Zigma", "Tharuni")})

	want := []string{"Zigma", "Tharuni", "Zigma", "Tharuni"}
	for i, w := range want {
		frame := s.Advance()
		if frame.Tick != uint64(i) {
			t.Errorf("tick %d: frame.Tick = %d", i, frame.Tick)
		}
		if frame.Status != StatusOK {
			t.Fatalf("tick %d: status %q, note %q", i, frame.Status, frame.Note)
		}
		if frame.AgencyKey != w {
			t.Errorf("tick %d: agency = %q, want %q", i, frame.AgencyKey, w)
		}
	}
}

func TestRotationAdaptsToSnapshotChange(t *testing.T) {
	p := &provider.Static{Snap: rotationSnapshot("Zigma", "Tharuni")}
	s := newTestScheduler(p)

	s.Advance() // tick 0: Zigma
	s.Advance() // tick 1: Tharuni

	// A third agency appears mid-rotation; tick 2 selects by the new list.
	p.Snap = rotationSnapshot("Zigma", "Tharuni", "Saurashtra")
	frame := s.Advance()
	if frame.AgencyKey != "Saurashtra" {
		t.Errorf("tick 2 after list growth: agency = %q, want Saurashtra", frame.AgencyKey)
	}
	if len(frame.Agencies) != 3 {
		t.Errorf("frame agencies = %v", frame.Agencies)
	}
}

func TestFrameCarriesReportAndRankings(t *testing.T) {
	s := newTestScheduler(&provider.Static{Snap: rotationSnapshot("Zigma")})
	frame := s.Advance()

	if frame.Report == nil {
		t.Fatal("frame missing report")
	}
	if frame.Report.AgencyKey != "Zigma" {
		t.Errorf("report agency = %q", frame.Report.AgencyKey)
	}
	if frame.AgencyDisplay == "" || frame.AgencyDisplay == "Zigma" {
		t.Errorf("agency display should be the mapped full name, got %q", frame.AgencyDisplay)
	}
	if len(frame.TopPerformers) != 1 {
		t.Fatalf("top performers = %+v", frame.TopPerformers)
	}
	if len(frame.LaggingPerformers) != len(frame.TopPerformers) {
		t.Errorf("lagging list length %d != top list length %d",
			len(frame.LaggingPerformers), len(frame.TopPerformers))
	}
	if frame.ID == "" {
		t.Error("frame missing ID")
	}
}

func TestLaggingListIsReversedTopList(t *testing.T) {
	snap := rotationSnapshot("Zigma")
	snap.Records = append(snap.Records,
		dataset.Record{Agency: "Zigma", Cluster: "C1", Site: "Zigma-S2",
			QuantityTotal: 1000, QuantityDone: 900, ActiveSite: "yes"},
		dataset.Record{Agency: "Zigma", Cluster: "C1", Site: "Zigma-S3",
			QuantityTotal: 1000, QuantityDone: 500, ActiveSite: "yes"},
	)
	frame := newTestScheduler(&provider.Static{Snap: snap}).Advance()

	n := len(frame.TopPerformers)
	for i := 0; i < n; i++ {
		if frame.TopPerformers[i] != frame.LaggingPerformers[n-1-i] {
			t.Fatalf("lagging[%d] is not top[%d]", n-1-i, i)
		}
	}
}

func TestTopSitesCapsBothLists(t *testing.T) {
	snap := rotationSnapshot("Zigma")
	snap.Records = append(snap.Records,
		dataset.Record{Agency: "Zigma", Cluster: "C1", Site: "Zigma-S2",
			QuantityTotal: 1000, QuantityDone: 900, ActiveSite: "yes"},
		dataset.Record{Agency: "Zigma", Cluster: "C1", Site: "Zigma-S3",
			QuantityTotal: 1000, QuantityDone: 500, ActiveSite: "yes"},
	)
	agg := aggregate.New(testDeadline, 90, discardLogger())
	rank := ranking.NewEngine(ranking.DefaultWeights(), 5, testDeadline, discardLogger())
	s := NewScheduler(&provider.Static{Snap: snap}, agg, rank, nil, time.Hour, 2, discardLogger())

	frame := s.Advance()
	if len(frame.TopPerformers) != 2 || len(frame.LaggingPerformers) != 2 {
		t.Fatalf("lists not capped: top=%d lagging=%d",
			len(frame.TopPerformers), len(frame.LaggingPerformers))
	}
	// The cap applies after the reversal: the capped lists show opposite ends
	// of the full ranking, not the same two sites.
	if frame.TopPerformers[0].Site == frame.LaggingPerformers[0].Site {
		t.Error("capped lagging list should start from the bottom of the ranking")
	}
}

func TestNoDataFrame(t *testing.T) {
	s := newTestScheduler(&provider.Static{})
	frame := s.Advance()

	if frame.Status != StatusNoData {
		t.Errorf("status = %q, want %q", frame.Status, StatusNoData)
	}
	if frame.Note != "No data available" {
		t.Errorf("note = %q", frame.Note)
	}
	if frame.Report != nil {
		t.Error("no-data frame should carry no report")
	}

	if _, ok := s.LastGood(); ok {
		t.Error("no-data frame must not become last good")
	}
	if cur, ok := s.Current(); !ok || cur.Status != StatusNoData {
		t.Error("current frame should still be served")
	}
}

func TestLastGoodSurvivesDataLoss(t *testing.T) {
	p := &provider.Static{Snap: rotationSnapshot("Zigma")}
	s := newTestScheduler(p)

	good := s.Advance()
	if good.Status != StatusOK {
		t.Fatalf("setup frame status %q", good.Status)
	}

	p.Snap = nil
	bad := s.Advance()
	if bad.Status != StatusNoData {
		t.Fatalf("expected no_data after snapshot loss, got %q", bad.Status)
	}

	last, ok := s.LastGood()
	if !ok || last.ID != good.ID {
		t.Errorf("last good frame lost: ok=%v id=%q want %q", ok, last.ID, good.ID)
	}
	cur, _ := s.Current()
	if cur.ID != bad.ID {
		t.Errorf("current should be the latest frame")
	}
}

func TestTickCounterKeepsAdvancingPastBadTicks(t *testing.T) {
	p := &provider.Static{}
	s := newTestScheduler(p)

	s.Advance() // tick 0, no data
	p.Snap = rotationSnapshot("Zigma", "Tharuni")
	frame := s.Advance() // tick 1

	if frame.Tick != 1 {
		t.Errorf("tick = %d, want 1", frame.Tick)
	}
	// Tick 1 mod 2 selects the second agency even though tick 0 served nothing.
	if frame.AgencyKey != "Tharuni" {
		t.Errorf("agency = %q, want Tharuni", frame.AgencyKey)
	}
}

func TestAdvancePublishesRotationEvent(t *testing.T) {
	rec := &recordingClient{}
	agg := aggregate.New(testDeadline, 90, discardLogger())
	rank := ranking.NewEngine(ranking.DefaultWeights(), 5, testDeadline, discardLogger())
	s := NewScheduler(&provider.Static{Snap: rotationSnapshot("Zigma")}, agg, rank, rec, time.Hour, 0, discardLogger())

	s.Advance()
	s.Advance()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.subjects) != 2 {
		t.Fatalf("published %d events, want 2", len(rec.subjects))
	}
	for _, subj := range rec.subjects {
		if subj != "remwatch.display.rotated" {
			t.Errorf("unexpected subject %q", subj)
		}
	}
}

func TestStartAndStop(t *testing.T) {
	s := newTestScheduler(&provider.Static{Snap: rotationSnapshot("Zigma")})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	if _, ok := s.Current(); !ok {
		t.Error("Start should produce an immediate frame")
	}
	s.Stop()
	s.Stop() // idempotent
}
