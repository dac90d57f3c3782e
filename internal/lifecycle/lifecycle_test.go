package lifecycle

import (
	"io"
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/lineup/internal/engine"
	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/reconcile"
	"github.com/llehouerou/lineup/internal/resource"
)

// recorder logs every call made on the bindings it creates.
type recorder struct {
	instances []*recorded
}

type recorded struct {
	id     playlist.ID
	events []string
	last   playlist.Properties
}

func (r *recorded) Enable()                     { r.events = append(r.events, "enable") }
func (r *recorded) Update(p playlist.Properties) { r.events = append(r.events, "update"); r.last = p }
func (r *recorded) Disable()                    { r.events = append(r.events, "disable") }

func (r *recorder) factory(d playlist.Descriptor) playlist.Binding {
	b := &recorded{id: d.ID}
	r.instances = append(r.instances, b)
	return b
}

func newCoordinator() *Coordinator {
	return New(zerolog.New(io.Discard))
}

func descriptor(rec *recorder, id string) playlist.Descriptor {
	return playlist.Descriptor{
		ID:       playlist.ID(id),
		Resource: resource.Simple("https://cdn/" + id),
		Metadata: playlist.Metadata{Title: id},
		Bindings: []playlist.BindingFactory{rec.factory},
	}
}

func item(d playlist.Descriptor) *engine.Item {
	return engine.Adapter{}.Build(d)
}

func TestCoordinator_EnableOnCurrent(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()

	c.SetCurrent(item(descriptor(rec, "a")))

	require.Len(t, rec.instances, 1)
	assert.Equal(t, []string{"enable", "update"}, rec.instances[0].events)
	assert.Equal(t, "a", rec.instances[0].last.Metadata.Title)
	assert.Equal(t, 1, c.Live())
}

func TestCoordinator_SameItemIsNoop(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()
	it := item(descriptor(rec, "a"))

	c.SetCurrent(it)
	c.SetCurrent(it)

	require.Len(t, rec.instances, 1)
	assert.Equal(t, []string{"enable", "update"}, rec.instances[0].events)
}

func TestCoordinator_ReplacedItemGetsNewInstance(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()
	d := descriptor(rec, "a")

	c.SetCurrent(item(d))
	c.SetCurrent(item(d.WithResource(resource.Simple("https://cdn/a2"))))

	require.Len(t, rec.instances, 2)
	assert.Equal(t, []string{"enable", "update", "disable"}, rec.instances[0].events)
	assert.Equal(t, []string{"enable", "update"}, rec.instances[1].events)
}

func TestCoordinator_ClearDisables(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()
	c.SetCurrent(item(descriptor(rec, "a")))

	c.SetCurrent(nil)

	assert.Equal(t, []string{"enable", "update", "disable"}, rec.instances[0].events)
	assert.Zero(t, c.Live())
}

func TestCoordinator_UpdateDescriptor(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()
	d := descriptor(rec, "a")
	c.SetCurrent(item(d))

	c.UpdateDescriptor(d)
	c.UpdateDescriptor(d.WithMetadata(playlist.Metadata{Title: "renamed"}))
	c.UpdateDescriptor(descriptor(rec, "b"))

	b := rec.instances[0]
	assert.Equal(t, []string{"enable", "update", "update"}, b.events)
	assert.Equal(t, "renamed", b.last.Metadata.Title)
}

func TestCoordinator_UpdateProperties(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()

	c.UpdateProperties(engine.Properties{Rate: 1})
	c.SetCurrent(item(descriptor(rec, "a")))
	c.UpdateProperties(engine.Properties{Rate: 1, Position: time.Second})
	c.UpdateProperties(engine.Properties{Rate: 1, Position: time.Second})
	c.UpdateProperties(engine.Properties{Rate: 1, Position: time.Second, Buffering: true})

	b := rec.instances[0]
	assert.Equal(t, []string{"enable", "update", "update", "update"}, b.events)
	assert.True(t, b.last.Buffering)
	assert.Equal(t, "a", b.last.Metadata.Title)
}

func TestCoordinator_Register(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()
	late := &recorded{id: "b"}
	now := &recorded{id: "a"}

	c.Register("b", late)
	c.SetCurrent(item(descriptor(rec, "a")))
	c.Register("a", now)

	assert.Empty(t, late.events)
	assert.Equal(t, []string{"enable", "update"}, now.events)

	c.SetCurrent(item(descriptor(rec, "b")))
	assert.Equal(t, []string{"enable", "update", "disable"}, now.events)
	assert.Equal(t, []string{"enable", "update"}, late.events)

	// A registered binding serves one stay only.
	c.SetCurrent(item(descriptor(rec, "a")))
	c.SetCurrent(item(descriptor(rec, "b")))
	assert.Equal(t, []string{"enable", "update", "disable"}, late.events)
}

func TestCoordinator_PruneDropsUnusedRegistrations(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()
	gone := &recorded{id: "gone"}
	c.Register("gone", gone)

	c.Prune([]playlist.Descriptor{descriptor(rec, "a")})
	c.SetCurrent(item(descriptor(rec, "gone")))

	assert.Empty(t, gone.events)
}

func TestCoordinator_CloseDisablesOnce(t *testing.T) {
	rec := &recorder{}
	c := newCoordinator()
	c.SetCurrent(item(descriptor(rec, "a")))

	c.Close()
	c.Close()
	c.SetCurrent(item(descriptor(rec, "b")))
	c.UpdateProperties(engine.Properties{Rate: 2})

	require.Len(t, rec.instances, 1)
	assert.Equal(t, []string{"enable", "update", "disable"}, rec.instances[0].events)
}

func TestCoordinator_BindingPanicIsContained(t *testing.T) {
	c := newCoordinator()
	var disabled bool
	d := playlist.Descriptor{
		ID:       "a",
		Resource: resource.Simple("u"),
		Bindings: []playlist.BindingFactory{
			func(playlist.Descriptor) playlist.Binding {
				return playlist.BindingFuncs{
					OnEnable:  func() { panic("analytics down") },
					OnUpdate:  func(playlist.Properties) { panic("still down") },
					OnDisable: func() { disabled = true },
				}
			},
			func(playlist.Descriptor) playlist.Binding { panic("factory broken") },
		},
	}

	assert.NotPanics(t, func() {
		c.SetCurrent(item(d))
		c.UpdateProperties(engine.Properties{Rate: 1})
		c.SetCurrent(nil)
	})
	assert.True(t, disabled, "a binding that failed to enable is still disabled")
}

// TestCoordinator_ExactlyOnce drives the coordinator the way the playback
// service does and checks every instance sees enable, update*, disable.
func TestCoordinator_ExactlyOnce(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	rec := &recorder{}
	c := newCoordinator()
	rc := reconcile.New(nil)

	n := 0
	fresh := func() playlist.Descriptor {
		n++
		return descriptor(rec, strconv.Itoa(n))
	}

	previous := []playlist.Descriptor{fresh(), fresh(), fresh()}
	var current *engine.Item
	for range 300 {
		next := append([]playlist.Descriptor(nil), previous...)
		switch r.IntN(4) {
		case 0:
			next = append(next, fresh())
		case 1:
			if len(next) > 0 {
				i := r.IntN(len(next))
				next = append(next[:i], next[i+1:]...)
			}
		case 2:
			if len(next) > 0 {
				i := r.IntN(len(next))
				next[i] = next[i].WithMetadata(playlist.Metadata{Title: "m" + strconv.Itoa(r.IntN(9))})
			}
		default:
			if len(next) > 0 {
				i := r.IntN(len(next))
				next[i] = next[i].WithResource(resource.Simple("https://cdn/r" + strconv.Itoa(r.IntN(1000))))
			}
		}

		items := rc.Reconcile(previous, next, current, reconcile.RepeatOff, 3)
		if len(items) > 0 {
			current = items[0]
			c.UpdateDescriptor(current.Descriptor())
		} else {
			current = nil
		}
		c.SetCurrent(current)
		c.UpdateProperties(engine.Properties{Position: time.Duration(r.IntN(5))})
		previous = next
	}
	c.Close()

	require.NotEmpty(t, rec.instances)
	for i, b := range rec.instances {
		require.GreaterOrEqual(t, len(b.events), 2, "instance %d", i)
		assert.Equal(t, "enable", b.events[0], "instance %d", i)
		assert.Equal(t, "disable", b.events[len(b.events)-1], "instance %d", i)
		for _, e := range b.events[1 : len(b.events)-1] {
			assert.Equal(t, "update", e, "instance %d", i)
		}
	}
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "Uninitialized", Uninitialized.String())
	assert.Equal(t, "Enabled", Enabled.String())
	assert.Equal(t, "Disabled", Disabled.String())
}
