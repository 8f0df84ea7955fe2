// Package service runs the dashboard polling loop and holds the state the page displays.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/dashboard/types"
)

const (
	InitialFetchError = "An error occurred while fetching initial data."
	FetchError        = "An error occurred while fetching data."
)

type Fetcher interface {
	FetchSnapshot(ctx context.Context) (types.Snapshot, error)
}

// Sink is notified after a snapshot has been applied. Errors are logged and otherwise ignored.
type Sink interface {
	Apply(ctx context.Context, snap types.Snapshot, display types.Display) error
}

// Observer receives poll outcomes, e.g. for metrics.
type Observer interface {
	ObservePoll(ok bool, elapsed time.Duration)
	ObserveStale()
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Location *time.Location
	Logger   *slog.Logger
	Observer Observer
}

// Poller fetches a snapshot on start and then every Interval. Every cycle gets a sequence
// number; a result older than the newest applied one is dropped.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	timeout  time.Duration
	loc      *time.Location
	logger   *slog.Logger
	observer Observer
	now      func() time.Time

	sinksMu sync.RWMutex
	sinks   []Sink

	// deliverMu orders sink fan-out; delivered is the newest seq handed to the sinks.
	deliverMu sync.Mutex
	delivered uint64

	mu      sync.Mutex
	seq     uint64
	applied uint64
	display types.Display
	snap    types.Snapshot

	wg sync.WaitGroup
}

func NewPoller(fetcher Fetcher, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Poller{
		fetcher:  fetcher,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		loc:      opts.Location,
		logger:   opts.Logger,
		observer: opts.Observer,
		now:      time.Now,
		display:  types.Display{Samples: []types.SamplePoint{}},
	}
}

func (p *Poller) AddSink(s Sink) {
	p.sinksMu.Lock()
	defer p.sinksMu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Run polls until ctx is cancelled, then waits for in-flight cycles and returns ctx.Err().
// A slow cycle never delays the next tick.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval.String(), "timeout", p.timeout.String())
	p.spawn(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.spawn(ctx)
		}
	}
}

func (p *Poller) spawn(ctx context.Context) {
	seq := p.nextSeq()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(ctx, seq)
	}()
}

// Refresh clears the error message and fetches immediately, outside the cadence. It returns
// the display state once the fetch has been applied (or dropped).
func (p *Poller) Refresh(ctx context.Context) types.Display {
	p.mu.Lock()
	p.display.ErrorMessage = ""
	p.mu.Unlock()

	p.poll(ctx, p.nextSeq())
	return p.Display()
}

// Display returns a copy of the current display state.
func (p *Poller) Display() types.Display {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.display
}

// Snapshot returns the last applied snapshot and whether one has been applied yet.
func (p *Poller) Snapshot() (types.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, p.display.Loaded
}

func (p *Poller) nextSeq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	return p.seq
}

func (p *Poller) poll(ctx context.Context, seq uint64) {
	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := p.now()
	snap, err := p.fetcher.FetchSnapshot(reqCtx)
	elapsed := p.now().Sub(start)
	if p.observer != nil {
		p.observer.ObservePoll(err == nil, elapsed)
	}

	if err != nil {
		if ctx.Err() != nil {
			// shutting down
			return
		}
		p.logger.Error("fetch snapshot failed", "seq", seq, "error", err)
		if !p.fail(seq) {
			p.dropped(seq)
		}
		return
	}

	display, ok := p.apply(seq, snap)
	if !ok {
		p.dropped(seq)
		return
	}
	p.logger.Debug("snapshot applied",
		"seq", seq,
		"total_records", snap.TotalRecords,
		"samples", len(snap.Data),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	p.deliver(ctx, seq, snap, display)
}

// deliver fans an applied snapshot out to the sinks. Deliveries are serialized and a cycle
// that lost the race to a newer one is skipped, so sinks never end on an older snapshot.
func (p *Poller) deliver(ctx context.Context, seq uint64, snap types.Snapshot, display types.Display) {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()
	if seq <= p.delivered {
		p.logger.Debug("stale sink delivery skipped", "seq", seq, "delivered", p.delivered)
		return
	}
	p.delivered = seq

	p.sinksMu.RLock()
	sinks := append([]Sink(nil), p.sinks...)
	p.sinksMu.RUnlock()
	for _, s := range sinks {
		if err := s.Apply(ctx, snap, display); err != nil {
			p.logger.Warn("snapshot sink failed", "sink", sinkName(s), "error", err)
		}
	}
}

func (p *Poller) dropped(seq uint64) {
	p.logger.Debug("stale poll result dropped", "seq", seq)
	if p.observer != nil {
		p.observer.ObserveStale()
	}
}

// apply replaces the display state with snap unless a newer cycle has already been applied.
func (p *Poller) apply(seq uint64, snap types.Snapshot) (types.Display, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq <= p.applied {
		return types.Display{}, false
	}
	p.applied = seq
	p.snap = snap
	p.display = FormatSnapshot(snap, p.loc, p.now())
	return p.display, true
}

// fail sets the error message and leaves every other display field untouched.
func (p *Poller) fail(seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq <= p.applied {
		return false
	}
	p.applied = seq
	if seq == 1 {
		p.display.ErrorMessage = InitialFetchError
	} else {
		p.display.ErrorMessage = FetchError
	}
	return true
}

type namedSink interface {
	Name() string
}

func sinkName(s Sink) string {
	if n, ok := s.(namedSink); ok {
		return n.Name()
	}
	return "unnamed"
}
