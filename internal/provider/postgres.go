package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terraclean-dev/remwatch/internal/dataset"
)

// PostgresProvider reads the same logical records from an externally-
// maintained mirror table. Strictly read-only: this service never writes.
type PostgresProvider struct {
	pool    *pgxpool.Pool
	refresh time.Duration
	logger  *slog.Logger

	mu   sync.RWMutex
	snap *dataset.Snapshot

	onSwap func(*dataset.Snapshot)

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewPostgresProvider(ctx context.Context, databaseURL string, refresh time.Duration, logger *slog.Logger) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresProvider{
		pool:    pool,
		refresh: refresh,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// OnSwap registers a callback invoked after each successful snapshot swap.
// Must be called before Start.
func (p *PostgresProvider) OnSwap(fn func(*dataset.Snapshot)) {
	p.onSwap = fn
}

func (p *PostgresProvider) Current() *dataset.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

const recordColumns = `agency, cluster, site, machine,
	quantity_total_mt, quantity_done_mt, quantity_today_mt,
	daily_capacity_mt, days_required, days_to_deadline,
	active_site, start_date, planned_end_date, expected_end_date`

func (p *PostgresProvider) Reload(ctx context.Context) error {
	rows, err := p.pool.Query(ctx, `SELECT `+recordColumns+` FROM remediation_sites ORDER BY id`)
	if err != nil {
		reloadFailuresTotal.Inc()
		p.logger.Warn("dataset query failed, keeping previous snapshot", "error", err)
		return err
	}
	defer rows.Close()

	snap := &dataset.Snapshot{
		Fields:   allFields(),
		LoadedAt: time.Now(),
	}
	for rows.Next() {
		var r dataset.Record
		err := rows.Scan(
			&r.Agency, &r.Cluster, &r.Site, &r.Machine,
			&r.QuantityTotal, &r.QuantityDone, &r.QuantityToday,
			&r.DailyCapacity, &r.DaysRequired, &r.DaysToDeadline,
			&r.ActiveSite, &r.StartDate, &r.PlannedEnd, &r.ExpectedEnd,
		)
		if err != nil {
			reloadFailuresTotal.Inc()
			return fmt.Errorf("scan record: %w", err)
		}
		snap.Records = append(snap.Records, r)
	}
	if err := rows.Err(); err != nil {
		reloadFailuresTotal.Inc()
		return err
	}

	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
	reloadsTotal.Inc()
	if p.onSwap != nil {
		p.onSwap(snap)
	}
	p.logger.Info("loaded dataset from postgres", "records", len(snap.Records))
	return nil
}

// Start performs the initial load and begins the periodic refresh loop.
func (p *PostgresProvider) Start(ctx context.Context) error {
	if err := p.Reload(ctx); err != nil {
		p.logger.Warn("initial dataset load failed", "error", err)
	}
	p.wg.Add(1)
	go p.refreshLoop(ctx)
	return nil
}

func (p *PostgresProvider) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	p.pool.Close()
}

func (p *PostgresProvider) refreshLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Reload(ctx)
		}
	}
}

func allFields() map[dataset.Field]bool {
	fields := []dataset.Field{
		dataset.FieldAgency, dataset.FieldCluster, dataset.FieldSite,
		dataset.FieldMachine, dataset.FieldQuantityTotal, dataset.FieldQuantityDone,
		dataset.FieldQuantityToday, dataset.FieldDailyCapacity,
		dataset.FieldDaysRequired, dataset.FieldDaysToDeadline,
		dataset.FieldActiveSite, dataset.FieldStartDate,
		dataset.FieldPlannedEnd, dataset.FieldExpectedEnd,
	}
	out := make(map[dataset.Field]bool, len(fields))
	for _, f := range fields {
		out[f] = true
	}
	return out
}
