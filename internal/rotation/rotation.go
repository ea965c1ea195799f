// Package rotation drives the public display: a free-running tick counter
// selects one agency per interval, modulo the live agency list, and re-runs
// the aggregator and ranking engine for it. The agency list is re-derived
// from the current snapshot on every tick, so a dataset change between ticks
// changes the rotation without a restart.
package rotation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/terraclean-dev/remwatch/internal/aggregate"
	"github.com/terraclean-dev/remwatch/internal/events"
	"github.com/terraclean-dev/remwatch/internal/provider"
	"github.com/terraclean-dev/remwatch/internal/ranking"
)

const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remwatch_rotation_ticks_total",
		Help: "Rotation ticks processed.",
	})
	tickErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remwatch_rotation_tick_errors_total",
		Help: "Rotation ticks that produced an error frame.",
	})
)

// Frame is everything the display layer needs for one rotation tick.
type Frame struct {
	ID            string                    `json:"frame_id"`
	Tick          uint64                    `json:"tick"`
	Status        string                    `json:"status"`
	Note          string                    `json:"note,omitempty"`
	AgencyKey     string                    `json:"agency_key,omitempty"`
	AgencyDisplay string                    `json:"agency_display,omitempty"`
	Agencies      []string                  `json:"agencies,omitempty"`
	Report        *aggregate.Report         `json:"report,omitempty"`
	TopPerformers []ranking.SitePerformance `json:"top_performers,omitempty"`
	// LaggingPerformers is the bottom of the same ranking, never an
	// independently recomputed worst-case list.
	LaggingPerformers []ranking.SitePerformance `json:"lagging_performers,omitempty"`
	LaggingByDeadline []ranking.LaggingSite     `json:"lagging_by_deadline,omitempty"`
	GeneratedAt       time.Time                 `json:"generated_at"`
}

// Scheduler advances the rotation on a fixed interval. Advance is exported
// so tests drive ticks manually instead of waiting on the wall clock.
type Scheduler struct {
	provider provider.Provider
	agg      *aggregate.Aggregator
	rank     *ranking.Engine
	events   events.Client
	interval time.Duration
	topSites int
	logger   *slog.Logger

	mu       sync.RWMutex
	ticks    uint64
	current  *Frame
	lastGood *Frame

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler builds a rotation scheduler. topSites caps the performer lists
// carried on each frame; zero or negative means uncapped.
func NewScheduler(p provider.Provider, agg *aggregate.Aggregator, rank *ranking.Engine, ev events.Client, interval time.Duration, topSites int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		provider: p,
		agg:      agg,
		rank:     rank,
		events:   ev,
		interval: interval,
		topSites: topSites,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.Advance()
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("rotation started", "interval", s.interval)
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Advance()
		}
	}
}

// Current returns the latest frame. Error frames are clearly labeled; the
// last successful frame stays available alongside them.
func (s *Scheduler) Current() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Frame{}, false
	}
	return *s.current, true
}

// LastGood returns the most recent frame with status "ok".
func (s *Scheduler) LastGood() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastGood == nil {
		return Frame{}, false
	}
	return *s.lastGood, true
}

// Advance runs one rotation tick and returns the produced frame. A failure
// is isolated to this tick: the frame is labeled as an error and future
// ticks keep running.
func (s *Scheduler) Advance() Frame {
	s.mu.Lock()
	tick := s.ticks
	s.ticks++
	s.mu.Unlock()

	frame := s.buildFrame(tick)
	ticksTotal.Inc()
	if frame.Status == StatusError {
		tickErrorsTotal.Inc()
	}

	s.mu.Lock()
	s.current = &frame
	if frame.Status == StatusOK {
		s.lastGood = &frame
	}
	s.mu.Unlock()

	s.publish(frame)
	return frame
}

func (s *Scheduler) buildFrame(tick uint64) (frame Frame) {
	frame = Frame{
		ID:          uuid.NewString(),
		Tick:        tick,
		GeneratedAt: time.Now(),
	}

	// Tick boundary: the one place a genuine programming error is caught
	// broadly, so a bad tick never stops the rotation.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("rotation tick panicked", "tick", tick, "panic", r)
			frame.Status = StatusError
			frame.Note = fmt.Sprintf("tick failed: %v", r)
			frame.Report = nil
			frame.TopPerformers = nil
			frame.LaggingPerformers = nil
			frame.LaggingByDeadline = nil
		}
	}()

	snap := s.provider.Current()
	if snap.Empty() {
		frame.Status = StatusNoData
		frame.Note = "No data available"
		return frame
	}

	agencies := snap.Agencies()
	if len(agencies) == 0 {
		frame.Status = StatusNoData
		frame.Note = "No agencies found"
		return frame
	}

	key := agencies[tick%uint64(len(agencies))]
	records := snap.ByAgency(key)
	report := s.agg.Report(snap, key)
	ranked := s.rank.Rankings(snap, records)

	// Top and lagging show opposite ends of the same full ranking, so the
	// reversal happens before either list is capped.
	top := ranked
	lagging := ranking.LaggingPerformers(ranked)
	if s.topSites > 0 {
		if s.topSites < len(top) {
			top = top[:s.topSites]
		}
		if s.topSites < len(lagging) {
			lagging = lagging[:s.topSites]
		}
	}

	frame.Status = StatusOK
	frame.AgencyKey = key
	frame.AgencyDisplay = report.AgencyDisplay
	frame.Agencies = agencies
	frame.Report = &report
	frame.TopPerformers = top
	frame.LaggingPerformers = lagging
	frame.LaggingByDeadline = s.rank.LaggingByDeadline(snap, records)

	s.logger.Info("rotation tick",
		"tick", tick,
		"agency", key,
		"display", frame.AgencyDisplay,
		"sites_ranked", len(ranked))
	return frame
}

func (s *Scheduler) publish(frame Frame) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(events.SubjectDisplayRotated, events.DisplayRotatedEvent{
		FrameID:       frame.ID,
		Tick:          frame.Tick,
		AgencyKey:     frame.AgencyKey,
		AgencyDisplay: frame.AgencyDisplay,
		Status:        frame.Status,
		GeneratedAt:   frame.GeneratedAt,
	})
	if err != nil {
		s.logger.Warn("failed to publish rotation event", "error", err)
	}
}
