package playback

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	QueueChanged   <-chan QueueChange
	CurrentChanged <-chan CurrentChange
	MetricsChanged <-chan MetricsChange
	ModeChanged    <-chan ModeChange
	Error          <-chan ErrorEvent
	Done           <-chan struct{}

	// Internal write channels
	queueCh   chan QueueChange
	currentCh chan CurrentChange
	metricsCh chan MetricsChange
	modeCh    chan ModeChange
	errorCh   chan ErrorEvent
	doneCh    chan struct{}
}

// newSubscription creates a new subscription with buffered channels.
func newSubscription() *Subscription {
	s := &Subscription{
		queueCh:   make(chan QueueChange, eventBufferSize),
		currentCh: make(chan CurrentChange, eventBufferSize),
		metricsCh: make(chan MetricsChange, eventBufferSize),
		modeCh:    make(chan ModeChange, eventBufferSize),
		errorCh:   make(chan ErrorEvent, eventBufferSize),
		doneCh:    make(chan struct{}),
	}
	s.QueueChanged = s.queueCh
	s.CurrentChanged = s.currentCh
	s.MetricsChanged = s.metricsCh
	s.ModeChanged = s.modeCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// sendQueue sends a queue change event (non-blocking).
func (s *Subscription) sendQueue(e QueueChange) {
	select {
	case s.queueCh <- e:
	default:
		// Drop if buffer full
	}
}

func (s *Subscription) sendCurrent(e CurrentChange) {
	select {
	case s.currentCh <- e:
	default:
	}
}

func (s *Subscription) sendMetrics(e MetricsChange) {
	select {
	case s.metricsCh <- e:
	default:
	}
}

func (s *Subscription) sendMode(e ModeChange) {
	select {
	case s.modeCh <- e:
	default:
	}
}

func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
