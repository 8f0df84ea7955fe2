// Package probe checks ICMP reachability of the monitored host on an interval.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ping "github.com/prometheus-community/pro-bing"
)

const (
	defaultCount   = 3
	defaultTimeout = 5 * time.Second
)

// Pinger is the subset of *ping.Pinger the prober needs.
type Pinger interface {
	RunWithContext(ctx context.Context) error
	Statistics() *ping.Statistics
	SetPrivileged(bool)
}

// newPinger is a variable to allow mocking in tests.
var newPinger = func(host string, count int, timeout time.Duration) (Pinger, error) {
	p, err := ping.NewPinger(host)
	if err != nil {
		return nil, err
	}
	p.Count = count
	p.Timeout = timeout
	return p, nil
}

// Result is the outcome of one probe round.
type Result struct {
	Host       string        `json:"host"`
	Reachable  bool          `json:"reachable"`
	RTT        time.Duration `json:"rtt"`
	PacketLoss float64       `json:"packet_loss"`
	At         time.Time     `json:"at"`
	Err        string        `json:"error,omitempty"`
}

// Reporter receives every probe result.
type Reporter interface {
	ReportProbe(ctx context.Context, r Result) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, r Result) error

func (f ReporterFunc) ReportProbe(ctx context.Context, r Result) error { return f(ctx, r) }

type Options struct {
	Host       string
	Interval   time.Duration
	Privileged bool
	Count      int
	Timeout    time.Duration
	Logger     *slog.Logger
}

type Prober struct {
	opts   Options
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	last      Result
	hasLast   bool
	reporters []Reporter
}

func NewProber(opts Options) (*Prober, error) {
	if opts.Host == "" {
		return nil, errors.New("probe host is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("probe interval must be positive, got %v", opts.Interval)
	}
	if opts.Count <= 0 {
		opts.Count = defaultCount
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		opts:   opts,
		logger: logger.With("component", "probe", "host", opts.Host),
		now:    time.Now,
	}, nil
}

func (p *Prober) AddReporter(r Reporter) {
	p.mu.Lock()
	p.reporters = append(p.reporters, r)
	p.mu.Unlock()
}

// Last returns the most recent result.
func (p *Prober) Last() (Result, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last, p.hasLast
}

// Probe runs a single round and records it.
func (p *Prober) Probe(ctx context.Context) Result {
	res := p.ping(ctx)

	p.mu.Lock()
	p.last = res
	p.hasLast = true
	reporters := append([]Reporter(nil), p.reporters...)
	p.mu.Unlock()

	if res.Reachable {
		p.logger.Debug("probe ok", "rtt_ms", res.RTT.Milliseconds(), "packet_loss", res.PacketLoss)
	} else {
		p.logger.Warn("host unreachable", "packet_loss", res.PacketLoss, "error", res.Err)
	}

	for _, r := range reporters {
		if err := r.ReportProbe(ctx, res); err != nil {
			p.logger.Warn("probe report failed", "error", err)
		}
	}
	return res
}

func (p *Prober) ping(ctx context.Context) Result {
	res := Result{Host: p.opts.Host, PacketLoss: 100, At: p.now()}

	pinger, err := newPinger(p.opts.Host, p.opts.Count, p.opts.Timeout)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	pinger.SetPrivileged(p.opts.Privileged)
	if err := pinger.RunWithContext(ctx); err != nil {
		res.Err = err.Error()
		return res
	}

	stats := pinger.Statistics()
	if stats == nil {
		res.Err = "no statistics"
		return res
	}
	res.PacketLoss = stats.PacketLoss
	res.Reachable = stats.PacketsRecv > 0
	if res.Reachable {
		res.RTT = stats.AvgRtt
	}
	return res
}

// Run probes immediately and then every Interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
