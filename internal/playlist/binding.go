package playlist

import "time"

// Properties is what a binding observes while its descriptor is current.
type Properties struct {
	Metadata  Metadata
	Buffering bool
	Rate      float64
	Position  time.Duration
	Duration  time.Duration
}

// Binding observes one descriptor while it occupies the current slot.
//
// Calls are totally ordered: Enable, then any number of Update, then
// Disable exactly once. The first Update right after Enable carries the
// initial properties. An instance is never enabled twice.
type Binding interface {
	Enable()
	Update(p Properties)
	Disable()
}

// BindingFactory creates a fresh binding each time a descriptor becomes current.
type BindingFactory func(d Descriptor) Binding

// BindingFuncs adapts plain functions to Binding. Nil fields are skipped.
type BindingFuncs struct {
	OnEnable  func()
	OnUpdate  func(Properties)
	OnDisable func()
}

func (b BindingFuncs) Enable() {
	if b.OnEnable != nil {
		b.OnEnable()
	}
}

func (b BindingFuncs) Update(p Properties) {
	if b.OnUpdate != nil {
		b.OnUpdate(p)
	}
}

func (b BindingFuncs) Disable() {
	if b.OnDisable != nil {
		b.OnDisable()
	}
}
