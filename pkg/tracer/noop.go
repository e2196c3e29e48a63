package tracer

import "github.com/marmos91/padlatency/pkg/hooks"

// Noop is a hooks.Hooks implementation that measures nothing. Hosts that
// want the registration wiring without any overhead can swap it in for a
// Tracer; every method is an empty body the compiler can inline away.
type Noop struct{}

// NewNoop returns a no-op hook consumer.
func NewNoop() Noop { return Noop{} }

func (Noop) OnElementNew(hooks.ElementRef)                                        {}
func (Noop) OnPadLink(_, _ hooks.PadRef)                                          {}
func (Noop) OnPadUnlink(_, _ hooks.PadRef)                                        {}
func (Noop) OnPushPre(int64, hooks.PadID, hooks.BufferToken, hooks.ThreadID)      {}
func (Noop) OnPushPost(int64, hooks.PadID, hooks.BufferToken, hooks.ThreadID)     {}
func (Noop) OnPushListPre(int64, hooks.PadID, hooks.BufferToken, hooks.ThreadID)  {}
func (Noop) OnPushListPost(int64, hooks.PadID, hooks.BufferToken, hooks.ThreadID) {}

var _ hooks.Hooks = Noop{}
var _ hooks.Hooks = (*Tracer)(nil)
