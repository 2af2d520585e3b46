// Package listview owns the fetch-normalize cycle behind each staff
// dashboard list: the refresh signal that mutations bump, the filter state,
// and the last good view model.
package listview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wardbook/portalsync/internal/observability/metrics"
	"github.com/wardbook/portalsync/internal/portalapi"
	"github.com/wardbook/portalsync/internal/records"
	"github.com/wardbook/portalsync/pkg/logging"
)

// Fetcher retrieves raw parent records for a date window from the remote
// data source.
type Fetcher func(ctx context.Context, from, to time.Time) ([]portalapi.Patient, error)

// Snapshot is the state a display consumer renders: the current rows plus
// loading/error flags. Rows survive a failed fetch untouched.
type Snapshot struct {
	Rows          []records.Row
	Loading       bool
	Err           error
	RefreshSignal int64
}

// Container runs the pipeline for one list view. Methods are safe for
// concurrent callers; a fetch result is applied only while it is still the
// newest one issued, so a slow stale response never clobbers a fresh one.
type Container struct {
	resource         string
	fetch            Fetcher
	latestPerPatient bool
	logger           *logging.Logger
	metrics          *metrics.SyncMetrics

	mu            sync.Mutex
	tab           records.Tab
	query         string
	from, to      time.Time
	raw           []portalapi.Patient
	rows          []records.Row
	inFlight      int
	err           error
	refreshSignal int64
	seq           uint64
	closed        bool
}

// NewContainer creates a container for one resource (e.g. "admissions").
// latestPerPatient enables the one-row-per-patient reduction the admission
// overview uses.
func NewContainer(resource string, fetch Fetcher, latestPerPatient bool, m *metrics.SyncMetrics, logger *logging.Logger) *Container {
	if fetch == nil {
		panic("listview: fetcher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Container{
		resource:         resource,
		fetch:            fetch,
		latestPerPatient: latestPerPatient,
		tab:              records.TabAll,
		logger:           logger,
		metrics:          m,
	}
}

// Refresh runs one full fetch-normalize cycle. The previous rows stay in
// place when the fetch fails or when a newer trigger superseded this one.
func (c *Container) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("listview: %s container closed", c.resource)
	}
	c.seq++
	mySeq := c.seq
	c.inFlight++
	from, to := c.from, c.to
	c.mu.Unlock()

	parents, err := c.fetch(ctx, from, to)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if c.closed {
		return nil
	}
	if mySeq != c.seq {
		// A newer trigger was issued while this fetch was outstanding.
		c.metrics.ObserveStaleDiscard(c.resource)
		c.logger.Debug("listview: stale response discarded",
			"resource", c.resource, "seq", mySeq, "newest", c.seq)
		return nil
	}

	if err != nil {
		c.err = err
		c.metrics.ObserveFetch(c.resource, "error")
		c.logger.Error("listview: fetch failed, keeping last good rows",
			"resource", c.resource, "error", err)
		return fmt.Errorf("listview: fetch %s: %w", c.resource, err)
	}

	c.raw = parents
	c.err = nil
	c.recomputeLocked()
	c.metrics.ObserveFetch(c.resource, "ok")
	return nil
}

// Query runs one fetch-normalize cycle scoped to a single caller. The
// window, tab, and search term apply to this call only and never persist on
// the container; a zero window falls back to the container's own. The shared
// raw fetch and view model are updated only while this is still the newest
// trigger issued. On fetch failure the returned snapshot holds the last good
// raw fetch filtered by the caller's parameters.
func (c *Container) Query(ctx context.Context, from, to time.Time, tab records.Tab, query string) (Snapshot, error) {
	opts := records.Options{LatestPerPatient: c.latestPerPatient, Tab: tab, Query: query}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, fmt.Errorf("listview: %s container closed", c.resource)
	}
	if from.IsZero() && to.IsZero() {
		from, to = c.from, c.to
	}
	c.seq++
	mySeq := c.seq
	c.inFlight++
	c.mu.Unlock()

	parents, err := c.fetch(ctx, from, to)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if c.closed {
		return Snapshot{}, fmt.Errorf("listview: %s container closed", c.resource)
	}

	if err != nil {
		c.err = err
		c.metrics.ObserveFetch(c.resource, "error")
		c.logger.Error("listview: fetch failed, serving last good rows",
			"resource", c.resource, "error", err)
		return c.snapshotWithLocked(records.Normalize(c.raw, opts)),
			fmt.Errorf("listview: fetch %s: %w", c.resource, err)
	}

	if mySeq == c.seq {
		c.raw = parents
		c.err = nil
		c.recomputeLocked()
		c.metrics.ObserveFetch(c.resource, "ok")
	} else {
		c.metrics.ObserveStaleDiscard(c.resource)
	}
	return c.snapshotWithLocked(records.Normalize(parents, opts)), nil
}

// SetTab changes the active status tab and recomputes the view model from
// the last fetch. No network round trip.
func (c *Container) SetTab(tab records.Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tab = tab
	c.recomputeLocked()
}

// SetQuery changes the free-text filter and recomputes the view model from
// the last fetch.
func (c *Container) SetQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = query
	c.recomputeLocked()
}

// SetDateRange changes the fetch window and forces a re-fetch.
func (c *Container) SetDateRange(ctx context.Context, from, to time.Time) error {
	c.mu.Lock()
	c.from, c.to = from, to
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// OnMutationDone is the completion callback mutators invoke after a
// successful write: it increments the refresh signal by exactly one and
// re-runs the pipeline. Failed writes must never call it.
func (c *Container) OnMutationDone(ctx context.Context) {
	c.mu.Lock()
	c.refreshSignal++
	c.mu.Unlock()
	c.metrics.ObserveRefreshSignal(c.resource)
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("listview: post-mutation refresh failed", "resource", c.resource, "error", err)
	}
}

// RefreshSignal returns the current signal counter value.
func (c *Container) RefreshSignal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshSignal
}

// Snapshot returns the current view model and state flags.
func (c *Container) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := make([]records.Row, len(c.rows))
	copy(rows, c.rows)
	return c.snapshotWithLocked(rows)
}

func (c *Container) snapshotWithLocked(rows []records.Row) Snapshot {
	return Snapshot{
		Rows:          rows,
		Loading:       c.inFlight > 0,
		Err:           c.err,
		RefreshSignal: c.refreshSignal,
	}
}

// Close abandons the container. Outstanding fetches become no-ops on arrival.
func (c *Container) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Container) recomputeLocked() {
	start := time.Now()
	c.rows = records.Normalize(c.raw, records.Options{
		LatestPerPatient: c.latestPerPatient,
		Tab:              c.tab,
		Query:            c.query,
	})
	c.metrics.ObserveNormalizeDuration(c.resource, time.Since(start).Seconds())
}
