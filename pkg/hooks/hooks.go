// Package hooks defines the contract between a host pipeline and a tracer
// engine.
//
// The host owns the pipeline graph (elements connected by pads) and invokes
// the engine synchronously from its processing threads whenever a pad is
// linked or unlinked and whenever a buffer (or buffer list) is pushed from a
// producer pad to the linked consumer pad. The engine never calls back into
// the host and never extends the lifetime of host objects: pads and elements
// are referred to only by the opaque identities carried in PadRef and
// ElementRef.
//
// All hook methods may be called re-entrantly from any number of concurrent
// pipeline threads. Implementations must not block on I/O or sleep inside a
// hook; a pipeline thread may be real-time sensitive.
package hooks

// PadID is the host's stable identity for a pad. It is valid only while the
// pad is attached to the pipeline; the host may reuse an ID after the pad is
// destroyed. A lookup miss on a PadID therefore means "no cached
// relationship", never an error.
type PadID uint64

// ElementID is the host's stable identity for an element.
type ElementID uint64

// BufferToken identifies one buffer (or one buffer list) for the duration of
// a single push. The host guarantees the token is stable between the push-pre
// and push-post calls of the same push; it may be recycled afterwards.
type BufferToken uint64

// ThreadID identifies the host thread of execution a push happens on. The
// same producer pad can push concurrently from different threads for
// different buffers, so correlation state must be keyed by thread as well as
// pad and token.
type ThreadID uint64

// ElementRef is a non-owning reference to a pipeline element.
type ElementRef struct {
	ID   ElementID
	Name string

	// Pipeline is true for the top-level pipeline object rather than a
	// processing element. The engine uses this to defer exporter startup
	// until a pipeline actually exists.
	Pipeline bool
}

// PadRef is a non-owning reference to a pad: its identity, its human-readable
// name, and its owning element.
type PadRef struct {
	ID      PadID
	Name    string
	Element ElementRef
}

// Hooks is the set of callbacks a tracer engine exposes to the host.
//
// Link/unlink calls are ordered by the host relative to buffer traffic on the
// affected pads: no buffer traverses an edge before its link notification or
// after its unlink notification. Push-pre happens-before its matching
// push-post on the same call stack.
//
// Timestamps are monotonic nanoseconds supplied by the host clock.
type Hooks interface {
	// OnElementNew notifies the engine that an element has been created.
	OnElementNew(el ElementRef)

	// OnPadLink notifies the engine that src now feeds sink.
	OnPadLink(src, sink PadRef)

	// OnPadUnlink notifies the engine that src no longer feeds sink.
	OnPadUnlink(src, sink PadRef)

	// OnPushPre records that a buffer push began on the producer pad.
	OnPushPre(ts int64, src PadID, token BufferToken, thread ThreadID)

	// OnPushPost records that the push completed at the consumer pad.
	OnPushPost(ts int64, sink PadID, token BufferToken, thread ThreadID)

	// OnPushListPre is the buffer-list variant of OnPushPre. The list is
	// measured as a whole, not per contained buffer.
	OnPushListPre(ts int64, src PadID, token BufferToken, thread ThreadID)

	// OnPushListPost is the buffer-list variant of OnPushPost.
	OnPushListPost(ts int64, sink PadID, token BufferToken, thread ThreadID)
}
