// Package lifecycle drives observer bindings as items enter and leave the
// engine's current slot.
package lifecycle

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/llehouerou/lineup/internal/engine"
	"github.com/llehouerou/lineup/internal/playlist"
)

// Phase is the state of one binding instance.
//
//	Uninitialized ──enable──▶ Enabled ──update*──▶ Enabled ──disable──▶ Disabled
//
// Disabled is terminal.
type Phase int

const (
	Uninitialized Phase = iota
	Enabled
	Disabled
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "Uninitialized"
	case Enabled:
		return "Enabled"
	case Disabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

type instance struct {
	id      playlist.ID
	binding playlist.Binding
	phase   Phase
}

// Coordinator owns every binding instance. It is not safe for concurrent
// use; callers serialize access on their coordination context.
type Coordinator struct {
	log        zerolog.Logger
	registered map[playlist.ID][]playlist.Binding
	current    *engine.Item
	live       []*instance
	props      playlist.Properties
	closed     bool
}

// New creates an idle coordinator.
func New(log zerolog.Logger) *Coordinator {
	return &Coordinator{
		log:        log,
		registered: make(map[playlist.ID][]playlist.Binding),
	}
}

// Current returns the item whose bindings are live.
func (c *Coordinator) Current() *engine.Item {
	return c.current
}

// Live returns the number of enabled bindings.
func (c *Coordinator) Live() int {
	return len(c.live)
}

// SetCurrent moves the current slot to item (nil when the engine has none).
// Bindings of the previous item are disabled; item gets new instances from
// its descriptor's factories plus anything registered for its id, each
// enabled and then updated once with the initial properties.
func (c *Coordinator) SetCurrent(item *engine.Item) {
	if c.closed || item == c.current {
		return
	}
	c.disableLive()
	c.current = item
	if item == nil {
		return
	}

	d := item.Descriptor()
	c.props = playlist.Properties{Metadata: d.Metadata}
	for _, factory := range d.Bindings {
		if factory == nil {
			continue
		}
		if b := c.build(factory, d); b != nil {
			c.enable(&instance{id: d.ID, binding: b})
		}
	}
	for _, b := range c.registered[d.ID] {
		c.enable(&instance{id: d.ID, binding: b})
	}
	delete(c.registered, d.ID)
	c.updateLive()
}

// Register attaches b to the descriptor id. The binding is enabled the next
// time that id is current, or immediately if it is current now. A registered
// binding serves a single stay in the current slot.
func (c *Coordinator) Register(id playlist.ID, b playlist.Binding) {
	if c.closed || b == nil {
		return
	}
	if c.current != nil && c.current.ID() == id {
		inst := &instance{id: id, binding: b}
		c.enable(inst)
		c.update(inst)
		return
	}
	c.registered[id] = append(c.registered[id], b)
}

// UpdateDescriptor pushes a new metadata snapshot to live bindings when d is
// the current descriptor and its metadata changed.
func (c *Coordinator) UpdateDescriptor(d playlist.Descriptor) {
	if c.current == nil || c.current.ID() != d.ID || c.props.Metadata.Equal(d.Metadata) {
		return
	}
	c.props.Metadata = d.Metadata
	c.updateLive()
}

// UpdateProperties pushes engine-reported properties to live bindings when
// they changed.
func (c *Coordinator) UpdateProperties(p engine.Properties) {
	if c.current == nil {
		return
	}
	next := c.props
	next.Buffering = p.Buffering
	next.Rate = p.Rate
	next.Position = p.Position
	next.Duration = p.Duration
	if next.Buffering == c.props.Buffering && next.Rate == c.props.Rate &&
		next.Position == c.props.Position && next.Duration == c.props.Duration {
		return
	}
	c.props = next
	c.updateLive()
}

// Prune forgets registrations for ids that left the descriptor list. Those
// bindings were never enabled and receive no calls.
func (c *Coordinator) Prune(present []playlist.Descriptor) {
	keep := make(map[playlist.ID]struct{}, len(present))
	for i := range present {
		keep[present[i].ID] = struct{}{}
	}
	for id := range c.registered {
		if _, ok := keep[id]; !ok {
			delete(c.registered, id)
		}
	}
}

// Close disables every live binding. Further calls are ignored.
func (c *Coordinator) Close() {
	if c.closed {
		return
	}
	c.disableLive()
	c.current = nil
	c.registered = make(map[playlist.ID][]playlist.Binding)
	c.closed = true
}

func (c *Coordinator) disableLive() {
	for _, inst := range c.live {
		if inst.phase != Enabled {
			continue
		}
		inst.phase = Disabled
		c.guard(inst.id, "disable", inst.binding.Disable)
	}
	c.live = nil
}

func (c *Coordinator) enable(inst *instance) {
	if inst.phase != Uninitialized {
		return
	}
	inst.phase = Enabled
	c.live = append(c.live, inst)
	c.guard(inst.id, "enable", inst.binding.Enable)
}

func (c *Coordinator) updateLive() {
	for _, inst := range c.live {
		c.update(inst)
	}
}

func (c *Coordinator) update(inst *instance) {
	if inst.phase != Enabled {
		return
	}
	props := c.props
	c.guard(inst.id, "update", func() { inst.binding.Update(props) })
}

func (c *Coordinator) build(factory playlist.BindingFactory, d playlist.Descriptor) (b playlist.Binding) {
	c.guard(d.ID, "create", func() { b = factory(d) })
	return b
}

// guard confines a binding failure to the binding.
func (c *Coordinator) guard(id playlist.ID, op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn().
				Str("descriptor", string(id)).
				Str("op", op).
				Str("panic", fmt.Sprint(r)).
				Msg("observer binding failed")
		}
	}()
	fn()
}
