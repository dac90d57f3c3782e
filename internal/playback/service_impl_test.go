package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/llehouerou/lineup/internal/engine"
	"github.com/llehouerou/lineup/internal/errmsg"
	"github.com/llehouerou/lineup/internal/log"
	"github.com/llehouerou/lineup/internal/metrics"
	"github.com/llehouerou/lineup/internal/playlist"
	"github.com/llehouerou/lineup/internal/reconcile"
	"github.com/llehouerou/lineup/internal/resource"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder logs binding calls for every descriptor it was built for.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) factory(d playlist.Descriptor) playlist.Binding {
	id := string(d.ID)
	return playlist.BindingFuncs{
		OnEnable:  func() { r.add("enable " + id) },
		OnUpdate:  func(playlist.Properties) { r.add("update " + id) },
		OnDisable: func() { r.add("disable " + id) },
	}
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func desc(id string, bindings ...playlist.BindingFactory) playlist.Descriptor {
	return playlist.Descriptor{
		ID:       playlist.ID(id),
		Resource: resource.Simple("https://cdn.example.com/" + id + ".m3u8"),
		Metadata: playlist.Metadata{Title: "Title " + id},
		Bindings: bindings,
	}
}

func list(ids ...string) []playlist.Descriptor {
	ds := make([]playlist.Descriptor, len(ids))
	for i, id := range ids {
		ds[i] = desc(id)
	}
	return ds
}

func newTestService(opts Options) (*engine.Mock, Service) {
	m := engine.NewMock()
	nop := log.Nop()
	opts.Logger = &nop
	return m, New(m, opts)
}

func ids(xs ...string) []playlist.ID {
	out := make([]playlist.ID, len(xs))
	for i, x := range xs {
		out[i] = playlist.ID(x)
	}
	return out
}

func TestService_SetDescriptors_HandsWindowToEngine(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, svc := newTestService(Options{})
		defer svc.Close()

		require.NoError(t, svc.SetDescriptors(list("a", "b", "c", "d")))

		assert.Equal(t, ids("a", "b", "c"), svc.Queue())
		require.Len(t, m.Queue(), 3)
		cur, ok := svc.CurrentDescriptor()
		require.True(t, ok)
		assert.Equal(t, playlist.ID("a"), cur.ID)
		assert.Len(t, svc.Descriptors(), 4)
	})
}

func TestService_SetDescriptors_RejectsDuplicateIDs(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a", "b")))

		err := svc.SetDescriptors(list("a", "b", "a"))

		require.ErrorIs(t, err, playlist.ErrDuplicateID)
		assert.Len(t, svc.Descriptors(), 2)
		assert.Len(t, m.QueueHistory(), 1)
	})
}

func TestService_SetDescriptors_KeepsCurrentItem(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a", "b", "c", "d")))
		head := m.Current()

		next := list("a", "c", "d")
		next[0].Metadata.Title = "Renamed"
		require.NoError(t, svc.SetDescriptors(next))

		assert.Same(t, head, m.Current())
		assert.Equal(t, "Renamed", m.Current().Descriptor().Metadata.Title)
		assert.Equal(t, ids("a", "c", "d"), svc.Queue())
		cur, _ := svc.CurrentDescriptor()
		assert.Equal(t, "Renamed", cur.Metadata.Title)
	})
}

func TestService_EngineAdvanceRefillsWindow(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, svc := newTestService(Options{})
		defer svc.Close()
		sub := svc.Subscribe()
		require.NoError(t, svc.SetDescriptors(list("a", "b", "c", "d")))
		<-sub.QueueChanged
		<-sub.CurrentChanged
		b := m.Queue()[1]

		m.Advance()
		synctest.Wait()

		assert.Equal(t, ids("b", "c", "d"), svc.Queue())
		assert.Same(t, b, m.Current())
		change := <-sub.CurrentChanged
		require.NotNil(t, change.Previous)
		require.NotNil(t, change.Current)
		assert.Equal(t, playlist.ID("a"), change.Previous.ID)
		assert.Equal(t, playlist.ID("b"), change.Current.ID)
	})
}

func TestService_QueueRunsDry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a")))

		m.Advance()
		synctest.Wait()

		_, ok := svc.CurrentDescriptor()
		assert.False(t, ok)
		assert.Nil(t, m.Current())
		assert.Empty(t, svc.Queue())
	})
}

func TestService_BindingsFollowCurrentItem(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &recorder{}
		m, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors([]playlist.Descriptor{
			desc("a", rec.factory),
			desc("b", rec.factory),
		}))

		m.Advance()
		synctest.Wait()

		assert.Equal(t, []string{
			"enable a", "update a",
			"disable a",
			"enable b", "update b",
		}, rec.Calls())
	})
}

func TestService_CurrentDescriptorVisibleFromEnable(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var (
			svc  Service
			mu   sync.Mutex
			seen []string
		)
		factory := func(d playlist.Descriptor) playlist.Binding {
			return playlist.BindingFuncs{OnEnable: func() {
				cur, ok := svc.CurrentDescriptor()
				mu.Lock()
				defer mu.Unlock()
				if !ok {
					seen = append(seen, "none")
					return
				}
				seen = append(seen, string(d.ID)+"="+string(cur.ID))
			}}
		}
		var m *engine.Mock
		m, svc = newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors([]playlist.Descriptor{
			desc("a", factory),
			desc("b", factory),
		}))
		m.Advance()
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"a=a", "b=b"}, seen)
	})
}

func TestService_RegisterEnablesForCurrent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &recorder{}
		_, svc := newTestService(Options{})
		require.NoError(t, svc.SetDescriptors(list("a", "b")))

		require.NoError(t, svc.Register("a", rec.factory(desc("a"))))
		require.NoError(t, svc.Close())

		assert.Equal(t, []string{"enable a", "update a", "disable a"}, rec.Calls())
	})
}

func TestService_PropertiesReachBindings(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var (
			mu   sync.Mutex
			seen []playlist.Properties
		)
		factory := func(playlist.Descriptor) playlist.Binding {
			return playlist.BindingFuncs{OnUpdate: func(p playlist.Properties) {
				mu.Lock()
				seen = append(seen, p)
				mu.Unlock()
			}}
		}
		m, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors([]playlist.Descriptor{desc("a", factory)}))

		m.EmitProperties(engine.Properties{Rate: 1, Position: 12 * time.Second, Duration: time.Minute})
		synctest.Wait()

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, seen, 2)
		assert.Equal(t, 12*time.Second, seen[1].Position)
		assert.Equal(t, "Title a", seen[1].Metadata.Title)
	})
}

func TestService_MetricsAggregatePerItem(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		exp := metrics.NewExporter("test")
		m, svc := newTestService(Options{Exporter: exp})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a", "b")))

		m.EmitSample(metrics.Sample{Counters: metrics.Counters{metrics.CounterStalls: 1}})
		m.EmitSample(metrics.Sample{Counters: metrics.Counters{metrics.CounterStalls: 2}})
		synctest.Wait()

		snap := svc.Metrics()
		assert.Equal(t, 2, snap.EventCount)
		assert.InDelta(t, 3, snap.Value(metrics.CounterStalls), 1e-9)

		m.Advance()
		synctest.Wait()

		snap = svc.Metrics()
		assert.Equal(t, 0, snap.EventCount)
		assert.InDelta(t, 0, snap.Value(metrics.CounterStalls), 1e-9)
	})
}

func TestService_ReloadResolvesOffLoop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		resolver := func(ctx context.Context, d playlist.Descriptor) (resource.Resource, error) {
			select {
			case <-release:
				return resource.Simple("https://cdn.example.com/fresh/" + string(d.ID)), nil
			case <-ctx.Done():
				return resource.Resource{}, ctx.Err()
			}
		}
		m, svc := newTestService(Options{Resolver: resolver})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a", "b")))
		before := m.Current()

		require.NoError(t, svc.Reload("a"))

		placeholder := m.Current()
		assert.NotSame(t, before, placeholder)
		assert.True(t, placeholder.IsPlaceholder())
		assert.ErrorIs(t, svc.Play(), engine.ErrNothingToPlay)

		close(release)
		synctest.Wait()

		head := m.Current()
		require.NotNil(t, head)
		assert.False(t, head.IsPlaceholder())
		assert.Equal(t, "https://cdn.example.com/fresh/a", head.Descriptor().Resource.URL())
		require.NoError(t, svc.Play())
		assert.Equal(t, engine.Playing, svc.State())
	})
}

func TestService_JumpTo(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a", "b", "c", "d")))
		before := m.Current()

		require.NoError(t, svc.JumpTo("c"))

		assert.Equal(t, ids("c", "d"), svc.Queue())
		cur, ok := svc.CurrentDescriptor()
		require.True(t, ok)
		assert.Equal(t, playlist.ID("c"), cur.ID)
		assert.NotSame(t, before, m.Current())
		assert.ErrorIs(t, svc.JumpTo("zz"), ErrUnknownID)
	})
}

func TestService_ReloadUnknownID(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		resolver := func(context.Context, playlist.Descriptor) (resource.Resource, error) {
			return resource.Simple("x"), nil
		}
		_, svc := newTestService(Options{Resolver: resolver})
		defer svc.Close()

		assert.ErrorIs(t, svc.Reload("missing"), ErrUnknownID)
	})
}

func TestService_ReloadWithoutResolver(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		_, svc := newTestService(Options{})
		defer svc.Close()

		assert.ErrorIs(t, svc.Reload("a"), ErrNoResolver)
	})
}

func TestService_FailedLoadPublishesError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		boom := errors.New("token expired")
		resolver := func(context.Context, playlist.Descriptor) (resource.Resource, error) {
			return resource.Resource{}, boom
		}
		m, svc := newTestService(Options{Resolver: resolver})
		defer svc.Close()
		sub := svc.Subscribe()

		d := desc("a").WithResource(resource.Loading())
		require.NoError(t, svc.SetDescriptors([]playlist.Descriptor{d}))
		synctest.Wait()

		e := <-sub.Error
		assert.Equal(t, errmsg.OpResourceLoad, e.Operation)
		assert.Equal(t, playlist.ID("a"), e.ID)
		assert.ErrorIs(t, e.Err, boom)

		require.NotNil(t, m.Current())
		assert.Equal(t, engine.StatusFailed, m.Current().Status())
		assert.Equal(t, resource.KindFailed, svc.Descriptors()[0].Resource.Kind())
	})
}

func TestService_RemovingLoadingDescriptorCancelsLoad(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		started := make(chan struct{})
		cancelled := make(chan struct{})
		resolver := func(ctx context.Context, _ playlist.Descriptor) (resource.Resource, error) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return resource.Resource{}, ctx.Err()
		}
		_, svc := newTestService(Options{Resolver: resolver})
		defer svc.Close()

		d := desc("a").WithResource(resource.Loading())
		require.NoError(t, svc.SetDescriptors([]playlist.Descriptor{d, desc("b")}))
		<-started
		require.NoError(t, svc.SetDescriptors(list("b")))

		<-cancelled
		synctest.Wait()
		assert.Equal(t, ids("b"), svc.Queue())
	})
}

func TestService_RepeatOneReplaysCurrent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &recorder{}
		m, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors([]playlist.Descriptor{
			desc("a", rec.factory),
			desc("b", rec.factory),
		}))
		require.NoError(t, svc.SetRepeatMode(reconcile.RepeatOne))
		assert.Equal(t, ids("a"), svc.Queue())
		first := m.Current()

		m.Advance()
		synctest.Wait()

		assert.Equal(t, ids("a"), svc.Queue())
		require.NotNil(t, m.Current())
		assert.NotSame(t, first, m.Current())
		assert.Equal(t, engine.Playing, m.State())
		assert.Equal(t, []string{
			"enable a", "update a",
			"disable a",
			"enable a", "update a",
		}, rec.Calls())
	})
}

func TestService_RepeatAllWraps(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, svc := newTestService(Options{RepeatMode: reconcile.RepeatAll})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a", "b")))

		assert.Equal(t, ids("a", "b", "a"), svc.Queue())

		m.Advance()
		synctest.Wait()
		assert.Equal(t, ids("b", "a", "b"), svc.Queue())
	})
}

func TestService_CycleRepeatMode(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		_, svc := newTestService(Options{})
		defer svc.Close()
		sub := svc.Subscribe()

		mode, err := svc.CycleRepeatMode()

		require.NoError(t, err)
		assert.Equal(t, reconcile.RepeatOff.Next(), mode)
		assert.Equal(t, mode, svc.RepeatMode())
		assert.Equal(t, mode, (<-sub.ModeChanged).RepeatMode)
	})
}

func TestService_UndoRedo(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		_, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a", "b")))
		require.NoError(t, svc.SetDescriptors(list("a", "b", "c")))

		require.True(t, svc.Undo())
		assert.Len(t, svc.Descriptors(), 2)

		require.True(t, svc.Redo())
		assert.Len(t, svc.Descriptors(), 3)
		assert.False(t, svc.Redo())
	})
}

func TestService_PlayFailurePublishesError(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		_, svc := newTestService(Options{})
		defer svc.Close()
		sub := svc.Subscribe()

		err := svc.Play()

		require.ErrorIs(t, err, engine.ErrNothingToPlay)
		e := <-sub.Error
		assert.Equal(t, errmsg.OpPlaybackStart, e.Operation)
	})
}

func TestService_SeekClampsNegative(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		m, svc := newTestService(Options{})
		defer svc.Close()
		require.NoError(t, svc.SetDescriptors(list("a")))

		require.NoError(t, svc.Seek(-time.Second))
		require.NoError(t, svc.Seek(30*time.Second))

		assert.Equal(t, []time.Duration{0, 30 * time.Second}, m.SeekCalls())
		assert.Equal(t, 30*time.Second, m.Current().Position())
	})
}

func TestService_Close(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		rec := &recorder{}
		m, svc := newTestService(Options{})
		sub := svc.Subscribe()
		require.NoError(t, svc.SetDescriptors([]playlist.Descriptor{desc("a", rec.factory)}))

		require.NoError(t, svc.Close())
		require.NoError(t, svc.Close())

		<-sub.Done
		assert.True(t, m.Closed())
		assert.Equal(t, []string{"enable a", "update a", "disable a"}, rec.Calls())
		assert.ErrorIs(t, svc.SetDescriptors(list("b")), ErrClosed)
		assert.ErrorIs(t, svc.Play(), ErrClosed)

		late := svc.Subscribe()
		<-late.Done
	})
}
