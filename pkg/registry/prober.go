package registry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dope-context/dope/pkg/models"
)

// Probe timeouts and scheduling.
const (
	// ProbeTimeout is the per-probe deadline: an HTTP /health GET must
	// answer 2xx within this window.
	ProbeTimeout = 2 * time.Second

	// ProbeInterval is the steady-state probe loop interval.
	ProbeInterval = 15 * time.Second

	// warmupWait is how long the startup sequence waits between priority
	// tiers before moving on.
	warmupWait = 500 * time.Millisecond

	// maxConcurrentProbes bounds parallel probing.
	maxConcurrentProbes = 8
)

// Prober periodically health-checks registered backends. It is the single
// writer of registry health state outside of broker-observed requests.
type Prober struct {
	registry   *Registry
	httpClient *http.Client

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// NewProber creates a prober over the registry.
func NewProber(registry *Registry) *Prober {
	return &Prober{
		registry:   registry,
		httpClient: &http.Client{Timeout: ProbeTimeout},
		logger:     slog.Default(),
	}
}

// Start performs the startup warm-up (critical_path first, then workflow,
// then the rest) and launches the periodic probe loop. Calling Start on a
// running prober is a no-op.
func (p *Prober) Start(ctx context.Context) {
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	p.warmup(ctx)
	go p.loop(ctx)
}

// Stop shuts down the probe loop.
func (p *Prober) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.done != nil {
		<-p.done
	}
	p.cancel = nil
	p.done = nil
}

// warmup probes backends tier by tier so critical-path capabilities are
// known first. This affects only initial registry state; afterwards all
// probing is periodic and concurrent.
func (p *Prober) warmup(ctx context.Context) {
	tiers := []models.BackendPriority{
		models.PriorityCriticalPath,
		models.PriorityWorkflow,
	}
	probed := make(map[string]bool)
	for _, tier := range tiers {
		for _, s := range p.registry.List(Filter{Priority: tier}) {
			p.ProbeOne(ctx, s.Descriptor.Name)
			probed[s.Descriptor.Name] = true
		}
		select {
		case <-time.After(warmupWait):
		case <-ctx.Done():
			return
		}
	}
	for _, name := range p.registry.Names() {
		if !probed[name] {
			p.ProbeOne(ctx, name)
		}
	}
}

func (p *Prober) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every registered backend concurrently.
func (p *Prober) ProbeAll(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for _, name := range p.registry.Names() {
		g.Go(func() error {
			p.ProbeOne(gctx, name)
			return nil
		})
	}
	_ = g.Wait()
}

// ProbeOne performs a single health check and records the outcome.
func (p *Prober) ProbeOne(ctx context.Context, name string) {
	status, err := p.registry.Get(name)
	if err != nil {
		return
	}

	start := time.Now()
	err = p.probe(ctx, &status.Descriptor)
	latency := time.Since(start)

	if err != nil {
		p.logger.Debug("Backend probe failed", "backend", name, "error", err)
		p.registry.ReportFailure(name, err.Error())
		return
	}
	p.registry.ReportSuccess(name, latency)
}

// probe runs the transport-appropriate liveness check.
func (p *Prober) probe(ctx context.Context, b *models.BackendDescriptor) error {
	switch b.Transport {
	case models.TransportTypeHTTP, models.TransportTypeSSE:
		return p.probeHTTP(ctx, b)
	case models.TransportTypeStdio:
		if b.ProbePort > 0 {
			return probeTCP(ctx, b.ProbePort)
		}
		// No advertised port: the child process is spawned per session, so
		// the command's presence on PATH is the best available liveness signal.
		return probeCommand(b.Command)
	default:
		return fmt.Errorf("unsupported transport %q", b.Transport)
	}
}

func (p *Prober) probeHTTP(ctx context.Context, b *models.BackendDescriptor) error {
	base, err := url.Parse(b.Endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	probeURL := *base
	probeURL.Path = b.ProbePath
	probeURL.RawQuery = ""

	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, probeURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func probeTCP(ctx context.Context, port int) error {
	d := net.Dialer{Timeout: ProbeTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("tcp probe: %w", err)
	}
	return conn.Close()
}

func probeCommand(command string) error {
	if command == "" {
		return fmt.Errorf("stdio backend has no command")
	}
	// A bare command name must resolve on PATH; a path must exist.
	if strings.ContainsRune(command, '/') {
		if _, err := lookStat(command); err != nil {
			return fmt.Errorf("command not found: %w", err)
		}
		return nil
	}
	if _, err := lookPath(command); err != nil {
		return fmt.Errorf("command not on PATH: %w", err)
	}
	return nil
}
