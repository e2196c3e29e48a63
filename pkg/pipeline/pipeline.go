// Package pipeline is a synthetic pipeline host for exercising a tracer
// engine without a real media framework.
//
// It models the host side of the hooks contract: elements with one sink and
// one src pad, link/unlink notifications, and buffer pushes that walk the
// element chain on a single call stack the way a synchronous pipeline does
// (push-pre on the producer pad, downstream processing nested inside, then
// push-post on the consumer pad). Processing cost is simulated by advancing
// the pipeline clock, so tests can use a fake clock and get exact durations.
package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/padlatency/pkg/hooks"
)

// Clock is the host clock: monotonic nanoseconds plus a way to spend
// simulated processing time.
type Clock interface {
	Now() int64
	Advance(d time.Duration)
}

// WallClock is a real-time clock; Advance sleeps.
type WallClock struct {
	base time.Time
}

// NewWallClock returns a clock anchored at the current time.
func NewWallClock() *WallClock {
	return &WallClock{base: time.Now()}
}

func (c *WallClock) Now() int64 {
	return time.Since(c.base).Nanoseconds()
}

func (c *WallClock) Advance(d time.Duration) {
	time.Sleep(d)
}

// FakeClock is a logical clock for deterministic tests; Advance moves time
// forward exactly, with no real waiting.
type FakeClock struct {
	ns atomic.Int64
}

func (c *FakeClock) Now() int64 {
	return c.ns.Load()
}

func (c *FakeClock) Advance(d time.Duration) {
	c.ns.Add(d.Nanoseconds())
}

// Buffer is one unit of streamed data. The token is the host's correlation
// handle for a single push; the correlation ID is an opaque value carried
// alongside the buffer for consumers that follow it across hook points.
type Buffer struct {
	Token       hooks.BufferToken
	Correlation uuid.UUID
}

// BufferList bundles buffers pushed as a unit. The list carries its own
// token; transit measurement sees the list as a whole, not its members.
type BufferList struct {
	Token   hooks.BufferToken
	Buffers []Buffer
}

// Element is a processing element with one sink pad, one src pad, and a
// simulated processing delay charged when a buffer enters it.
type Element struct {
	ref   hooks.ElementRef
	sink  hooks.PadRef
	src   hooks.PadRef
	delay time.Duration

	// next is the downstream element, nil when the src pad is unlinked.
	next *Element
}

// Ref returns the element's host identity.
func (e *Element) Ref() hooks.ElementRef { return e.ref }

// SinkPad returns the element's consumer pad.
func (e *Element) SinkPad() hooks.PadRef { return e.sink }

// SrcPad returns the element's producer pad.
func (e *Element) SrcPad() hooks.PadRef { return e.src }

// Pipeline owns elements and drives hook notifications into a tracer engine.
type Pipeline struct {
	name  string
	hooks hooks.Hooks
	clock Clock

	elemSeq   atomic.Uint64
	padSeq    atomic.Uint64
	tokenSeq  atomic.Uint64
	threadSeq atomic.Uint64
}

// New creates a pipeline and announces it to the engine as a pipeline-classed
// element.
func New(name string, h hooks.Hooks, clock Clock) *Pipeline {
	p := &Pipeline{name: name, hooks: h, clock: clock}
	p.hooks.OnElementNew(hooks.ElementRef{
		ID:       hooks.ElementID(p.elemSeq.Add(1)),
		Name:     name,
		Pipeline: true,
	})
	return p
}

// AddElement creates an element with the given simulated processing delay and
// announces it to the engine.
func (p *Pipeline) AddElement(name string, delay time.Duration) *Element {
	ref := hooks.ElementRef{ID: hooks.ElementID(p.elemSeq.Add(1)), Name: name}
	e := &Element{
		ref:   ref,
		delay: delay,
		sink: hooks.PadRef{
			ID:      hooks.PadID(p.padSeq.Add(1)),
			Name:    "sink",
			Element: ref,
		},
		src: hooks.PadRef{
			ID:      hooks.PadID(p.padSeq.Add(1)),
			Name:    "src",
			Element: ref,
		},
	}
	p.hooks.OnElementNew(ref)
	return e
}

// Link connects up's src pad to down's sink pad and notifies the engine.
func (p *Pipeline) Link(up, down *Element) {
	up.next = down
	p.hooks.OnPadLink(up.src, down.sink)
}

// Unlink disconnects up from down and notifies the engine.
func (p *Pipeline) Unlink(up, down *Element) {
	if up.next == down {
		up.next = nil
	}
	p.hooks.OnPadUnlink(up.src, down.sink)
}

// NewBuffer allocates a buffer with a fresh token.
func (p *Pipeline) NewBuffer() Buffer {
	return Buffer{
		Token:       hooks.BufferToken(p.tokenSeq.Add(1)),
		Correlation: uuid.New(),
	}
}

// NewBufferList bundles n fresh buffers under one list token.
func (p *Pipeline) NewBufferList(n int) BufferList {
	list := BufferList{Token: hooks.BufferToken(p.tokenSeq.Add(1))}
	for i := 0; i < n; i++ {
		list.Buffers = append(list.Buffers, p.NewBuffer())
	}
	return list
}

// Thread is one pipeline-processing thread of execution. All pushes made
// through a Thread share its thread context, matching the host guarantee
// that a push's pre and post happen on the same call stack.
type Thread struct {
	id hooks.ThreadID
	p  *Pipeline
}

// NewThread allocates a thread context. Call it once per pushing goroutine.
func (p *Pipeline) NewThread() *Thread {
	return &Thread{id: hooks.ThreadID(p.threadSeq.Add(1)), p: p}
}

// ID returns the thread context handle.
func (th *Thread) ID() hooks.ThreadID { return th.id }

// Push sends buf downstream from the given element through the whole linked
// chain. Downstream processing happens nested inside the upstream push,
// mirroring a synchronous pipeline's call stack.
func (th *Thread) Push(from *Element, buf Buffer) {
	to := from.next
	if to == nil {
		return
	}
	h, clock := th.p.hooks, th.p.clock

	h.OnPushPre(clock.Now(), from.src.ID, buf.Token, th.id)
	clock.Advance(to.delay)
	th.Push(to, buf)
	h.OnPushPost(clock.Now(), to.sink.ID, buf.Token, th.id)
}

// PushList sends a buffer list downstream from the given element. The list
// traverses each edge as one unit with a single pre/post pair.
func (th *Thread) PushList(from *Element, list BufferList) {
	to := from.next
	if to == nil {
		return
	}
	h, clock := th.p.hooks, th.p.clock

	h.OnPushListPre(clock.Now(), from.src.ID, list.Token, th.id)
	clock.Advance(to.delay)
	th.PushList(to, list)
	h.OnPushListPost(clock.Now(), to.sink.ID, list.Token, th.id)
}
