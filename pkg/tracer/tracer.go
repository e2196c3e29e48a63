// Package tracer wires the topology cache, the transit recorder, and the
// aggregate store into a pad-latency measurement engine behind the
// hooks.Hooks contract.
//
// One Tracer carries all measurement state; there is no ambient global. The
// host constructs it, attaches it, routes its pipeline callbacks to the hook
// methods, and closes it on teardown.
//
// Known coarsening: an element that forwards buffers through an internal pad
// without a visible push (a bin boundary) yields one transit spanning the
// forwarding element and everything it wraps. Transits across asynchronous
// worker-pool boundaries are not measured at all; the engine only correlates
// a push-pre with a push-post on the same call stack.
package tracer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/padlatency/internal/logger"
	"github.com/marmos91/padlatency/pkg/aggregate"
	"github.com/marmos91/padlatency/pkg/export"
	"github.com/marmos91/padlatency/pkg/hooks"
	"github.com/marmos91/padlatency/pkg/topology"
	"github.com/marmos91/padlatency/pkg/transit"
)

// Options selects which pushes are measured and how the exporter behaves.
type Options struct {
	// Buffers enables measurement of single-buffer pushes.
	Buffers bool

	// BufferLists enables measurement of buffer-list pushes. A list is
	// measured as one aggregate transit, not per contained buffer.
	BufferLists bool

	// Port for the pull listener; 0 disables pull mode. The on-demand
	// RenderText query works either way.
	Port int

	// LogInterval enables periodic logging of an aggregate summary when
	// greater than zero.
	LogInterval time.Duration

	// MaxPending and MaxPendingAge bound the in-flight transit table; zero
	// values select the transit package defaults.
	MaxPending    int
	MaxPendingAge time.Duration
}

// Tracer is the latency measurement engine. It implements hooks.Hooks.
type Tracer struct {
	opts Options

	topo     *topology.Cache
	inflight *transit.Recorder
	store    *aggregate.Store

	registry *prometheus.Registry
	server   *export.Server

	pullOnce sync.Once
	pullErr  error

	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// New constructs an engine with its own metric registry. Nothing is measured
// and nothing listens until Attach.
func New(opts Options) *Tracer {
	t := &Tracer{
		opts: opts,
		topo: topology.NewCache(),
		inflight: transit.NewRecorder(transit.Options{
			MaxPending:  opts.MaxPending,
			MaxAgeNanos: opts.MaxPendingAge.Nanoseconds(),
		}),
		store:    aggregate.NewStore(),
		registry: prometheus.NewRegistry(),
	}
	t.registry.MustRegister(export.NewCollector(t.store))
	if opts.Port > 0 {
		t.server = export.NewServer(t.registry, export.ServerConfig{Port: opts.Port})
	}
	return t
}

// Attach starts the engine: background loops and, if a port is configured,
// the pull listener.
//
// A listener bind failure is returned so the caller can fail fast, but the
// engine stays attached: measurement and the on-demand query keep working
// without the pull endpoint.
func (t *Tracer) Attach(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return fmt.Errorf("tracer already attached")
	}
	t.runCtx, t.cancel = context.WithCancel(ctx)
	t.started = true
	t.mu.Unlock()

	if t.opts.LogInterval > 0 {
		t.wg.Add(1)
		go t.logLoop(t.runCtx, t.opts.LogInterval)
	}

	logger.Debug("Tracer attached (buffers=%v lists=%v port=%d)",
		t.opts.Buffers, t.opts.BufferLists, t.opts.Port)

	return t.startPull()
}

// Close detaches the engine: stops background loops and the pull listener.
// Hook calls arriving after Close are harmless no-ops against frozen state.
func (t *Tracer) Close(ctx context.Context) error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = false
	cancel := t.cancel
	t.mu.Unlock()

	cancel()
	t.wg.Wait()

	if t.server != nil {
		return t.server.Stop(ctx)
	}
	return nil
}

// startPull starts the pull listener exactly once. Subsequent calls (from
// OnElementNew) return the outcome of the first attempt.
func (t *Tracer) startPull() error {
	if t.server == nil {
		return nil
	}
	t.pullOnce.Do(func() {
		t.pullErr = t.server.Start(t.runCtx)
		if t.pullErr != nil {
			logger.Warn("Pull listener unavailable, on-demand queries still served: %v", t.pullErr)
		}
	})
	return t.pullErr
}

// RenderText returns the current snapshot in the text exposition format.
func (t *Tracer) RenderText() (string, error) {
	return export.RenderText(t.registry)
}

// Registry exposes the engine's metric registry so an embedding host can
// mount the snapshot on its own exporter.
func (t *Tracer) Registry() *prometheus.Registry {
	return t.registry
}

// Store exposes the aggregate store for read-only consumers such as the
// snapshot journal.
func (t *Tracer) Store() *aggregate.Store {
	return t.store
}

// OnElementNew implements hooks.Hooks. The first pipeline-classed element
// triggers pull-listener startup for hosts that create the engine before any
// pipeline exists.
func (t *Tracer) OnElementNew(el hooks.ElementRef) {
	if !el.Pipeline {
		return
	}
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if started {
		_ = t.startPull()
	}
}

// OnPadLink implements hooks.Hooks. The aggregate label set is resolved here,
// once per link, so the per-buffer path never formats names.
func (t *Tracer) OnPadLink(src, sink hooks.PadRef) {
	t.topo.Link(sink.ID, topology.Edge{
		Src: src.ID,
		Labels: topology.Labels{
			ElementID: sink.Element.ID,
			Element:   sink.Element.Name,
			SrcPad:    src.Name,
			SinkPad:   sink.Name,
		},
	})
	logger.Debug("Pad linked: %s.%s -> %s.%s",
		src.Element.Name, src.Name, sink.Element.Name, sink.Name)
}

// OnPadUnlink implements hooks.Hooks.
func (t *Tracer) OnPadUnlink(src, sink hooks.PadRef) {
	t.topo.Unlink(sink.ID, src.ID)
	logger.Debug("Pad unlinked: %s.%s -/-> %s.%s",
		src.Element.Name, src.Name, sink.Element.Name, sink.Name)
}

// OnPushPre implements hooks.Hooks.
func (t *Tracer) OnPushPre(ts int64, src hooks.PadID, token hooks.BufferToken, thread hooks.ThreadID) {
	if !t.opts.Buffers {
		return
	}
	t.inflight.Begin(thread, src, token, ts)
	t.inflight.ResetSpan(thread)
}

// OnPushPost implements hooks.Hooks.
func (t *Tracer) OnPushPost(ts int64, sink hooks.PadID, token hooks.BufferToken, thread hooks.ThreadID) {
	if !t.opts.Buffers {
		return
	}
	t.complete(ts, sink, token, thread)
}

// OnPushListPre implements hooks.Hooks.
func (t *Tracer) OnPushListPre(ts int64, src hooks.PadID, token hooks.BufferToken, thread hooks.ThreadID) {
	if !t.opts.BufferLists {
		return
	}
	t.inflight.Begin(thread, src, token, ts)
	t.inflight.ResetSpan(thread)
}

// OnPushListPost implements hooks.Hooks.
func (t *Tracer) OnPushListPost(ts int64, sink hooks.PadID, token hooks.BufferToken, thread hooks.ThreadID) {
	if !t.opts.BufferLists {
		return
	}
	t.complete(ts, sink, token, thread)
}

// complete promotes a finished push to an aggregate sample. Every failure
// mode here is a silent drop: a missing edge or begin record means the
// transit is unmeasured (startup race, dynamic relink, untracked boundary),
// and a non-positive duration means the clock went backwards or the calls
// re-entered out of order. Nothing propagates back into the pipeline thread.
func (t *Tracer) complete(ts int64, sink hooks.PadID, token hooks.BufferToken, thread hooks.ThreadID) {
	edge, ok := t.topo.Lookup(sink)
	if !ok {
		if logger.Enabled(logger.LevelTrace) {
			logger.Trace("No edge for sink pad %d, transit unmeasured", sink)
		}
		return
	}

	start, ok := t.inflight.Take(thread, edge.Src, token)
	if !ok {
		if logger.Enabled(logger.LevelTrace) {
			logger.Trace("No begin record for pad %d token %d, transit unmeasured", edge.Src, token)
		}
		return
	}

	span := ts - start
	// Downstream pushes run nested inside this one on a synchronous call
	// stack; subtracting their span leaves only this edge's element time.
	dur := span - t.inflight.NestedSpan(thread)
	if dur <= 0 {
		if logger.Enabled(logger.LevelTrace) {
			logger.Trace("Non-positive duration %d for pad %d, sample rejected", dur, edge.Src)
		}
		return
	}
	t.inflight.FinishSpan(thread, span)

	t.store.Record(aggregate.Key{
		ElementID: edge.Labels.ElementID,
		Element:   edge.Labels.Element,
		SinkPad:   edge.Labels.SinkPad,
		SrcPad:    edge.Labels.SrcPad,
	}, uint64(dur))
}

// logLoop periodically logs an aggregate summary, in the spirit of a server
// logging its own metrics for troubleshooting without an external scraper.
func (t *Tracer) logLoop(ctx context.Context, interval time.Duration) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries := t.store.Snapshot()
			var samples uint64
			for _, e := range entries {
				samples += e.Count
			}
			logger.Info("Latency summary: %d pad pairs, %d samples, %d in flight",
				len(entries), samples, t.inflight.Pending())
		}
	}
}
