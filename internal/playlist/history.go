package playlist

// History maintains snapshots of descriptor lists for undo/redo.
type History struct {
	states  [][]Descriptor
	current int // index of current state (-1 = before any state)
	maxSize int
}

// NewHistory creates a new history with the given maximum size.
func NewHistory(maxSize int) *History {
	if maxSize < 1 {
		maxSize = 1
	}
	return &History{
		states:  make([][]Descriptor, 0, maxSize),
		current: -1,
		maxSize: maxSize,
	}
}

// Push saves a snapshot of the descriptor list.
// Clears any redo states and trims if over limit.
func (h *History) Push(ds []Descriptor) {
	snapshot := make([]Descriptor, len(ds))
	copy(snapshot, ds)

	if h.current < len(h.states)-1 {
		h.states = h.states[:h.current+1]
	}

	h.states = append(h.states, snapshot)
	h.current = len(h.states) - 1

	if len(h.states) > h.maxSize {
		excess := len(h.states) - h.maxSize
		h.states = h.states[excess:]
		h.current -= excess
	}
}

// Undo returns the previous descriptor list.
// Returns nil and false if nothing to undo.
func (h *History) Undo() ([]Descriptor, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.current--
	return h.snapshot(), true
}

// Redo returns the next descriptor list.
// Returns nil and false if nothing to redo.
func (h *History) Redo() ([]Descriptor, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.current++
	return h.snapshot(), true
}

func (h *History) snapshot() []Descriptor {
	s := make([]Descriptor, len(h.states[h.current]))
	copy(s, h.states[h.current])
	return s
}

// CanUndo returns true if there is a previous state to undo to.
func (h *History) CanUndo() bool {
	return h.current > 0
}

// CanRedo returns true if there is a next state to redo to.
func (h *History) CanRedo() bool {
	return h.current < len(h.states)-1
}
