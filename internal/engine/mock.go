package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/llehouerou/lineup/internal/metrics"
)

const mockEventBufferSize = 64

// ErrNothingToPlay is returned by Play when the queue head is not playable.
var ErrNothingToPlay = errors.New("nothing to play")

// Mock is an in-memory engine for tests and simulations.
type Mock struct {
	mu       sync.Mutex
	state    State
	queue    []*Item
	history  [][]*Item
	seeks    []time.Duration
	closed   bool
	playErr  error
	current  chan *Item
	samples  chan metrics.Sample
	props    chan Properties
	closeErr error
}

// NewMock creates a new stopped mock engine.
func NewMock() *Mock {
	return &Mock{
		state:   Stopped,
		current: make(chan *Item, mockEventBufferSize),
		samples: make(chan metrics.Sample, mockEventBufferSize),
		props:   make(chan Properties, mockEventBufferSize),
	}
}

func (m *Mock) SetQueue(items []*Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append([]*Item(nil), items...)
	m.history = append(m.history, m.queue)
	if len(m.queue) == 0 {
		m.state = Stopped
	}
}

func (m *Mock) Queue() []*Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Item(nil), m.queue...)
}

func (m *Mock) Current() *Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	return m.queue[0]
}

func (m *Mock) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return m.playErr
	}
	if m.state.CanResume() {
		m.state = Playing
		return nil
	}
	if len(m.queue) == 0 || m.queue[0].IsPlaceholder() {
		return ErrNothingToPlay
	}
	m.state = Playing
	return nil
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.CanPause() {
		m.state = Paused
	}
}

func (m *Mock) Seek(position time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, position)
	if len(m.queue) > 0 {
		m.queue[0].SetPosition(position)
	}
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) CurrentChanged() <-chan *Item { return m.current }

func (m *Mock) Samples() <-chan metrics.Sample { return m.samples }

func (m *Mock) PropertiesChanged() <-chan Properties { return m.props }

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.state = Stopped
	return m.closeErr
}

// Test helpers

// Advance simulates the head item finishing: the engine drops it and
// reports the next one (nil when the queue runs dry).
func (m *Mock) Advance() *Item {
	m.mu.Lock()
	var next *Item
	if len(m.queue) > 0 {
		m.queue = m.queue[1:]
	}
	if len(m.queue) > 0 {
		next = m.queue[0]
	} else {
		m.state = Stopped
	}
	m.mu.Unlock()

	m.current <- next
	return next
}

// EmitSample simulates an access-log event.
func (m *Mock) EmitSample(s metrics.Sample) {
	m.samples <- s
}

// EmitProperties simulates a property change of the current item.
func (m *Mock) EmitProperties(p Properties) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		m.queue[0].SetPosition(p.Position)
	}
	m.mu.Unlock()
	m.props <- p
}

func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

func (m *Mock) SetState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// QueueHistory returns every queue passed to SetQueue.
func (m *Mock) QueueHistory() [][]*Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*Item(nil), m.history...)
}

func (m *Mock) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seeks...)
}

func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)
