package resource

import (
	"sync"
)

// Table tracks live cells, their ownership states and owning frames, and
// notifies observers about every lifecycle change.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert adds a scope-bound value owned by frame and returns its ID.
// It returns 0 once the table is closed.
func (t *Table) Insert(frame FrameID, value any) ID {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0
	}
	t.closeMu.RUnlock()

	id, err := t.backend.Create(frame, value)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:  EventCreated,
		ID:    id,
		Frame: frame,
		State: ScopeBound,
		Value: value,
	})

	return id
}

// Get retrieves a value by ID.
func (t *Table) Get(id ID) (any, bool) {
	return t.backend.Get(id)
}

// Set replaces the value of a live cell without changing its state.
func (t *Table) Set(id ID, value any) bool {
	return t.backend.Set(id, value)
}

// State returns the ownership state and owning frame of a live cell.
func (t *Table) State(id ID) (State, FrameID, bool) {
	return t.backend.State(id)
}

// Manage promotes a scope-bound cell to managed.
func (t *Table) Manage(id ID) error {
	return t.transition(id, ScopeBound, Managed, 0, EventManaged)
}

// Unmanage demotes a managed cell to native ownership.
func (t *Table) Unmanage(id ID) error {
	return t.transition(id, Managed, Unmanaged, 0, EventUnmanaged)
}

// Rebind hands an unmanaged cell back to a frame as scope-bound.
func (t *Table) Rebind(id ID, frame FrameID) error {
	return t.transition(id, Unmanaged, ScopeBound, frame, EventRehomed)
}

func (t *Table) transition(id ID, from, to State, frame FrameID, ev EventType) error {
	if err := t.backend.Transition(id, from, to, frame); err != nil {
		return err
	}
	value, _ := t.backend.Get(id)
	t.notify(Event{Type: ev, ID: id, Frame: frame, State: to, Value: value})
	return nil
}

// Release destroys an unmanaged cell.
func (t *Table) Release(id ID) (any, error) {
	state, _, ok := t.backend.State(id)
	if !ok {
		return nil, ErrInvalid
	}
	if state != Unmanaged {
		return nil, ErrState
	}
	value, _ := t.Remove(id)
	return value, nil
}

// Rehome moves a scope-bound cell to another frame.
func (t *Table) Rehome(id ID, frame FrameID) error {
	if err := t.backend.Rehome(id, frame); err != nil {
		return err
	}
	value, _ := t.backend.Get(id)
	t.notify(Event{Type: EventRehomed, ID: id, Frame: frame, State: ScopeBound, Value: value})
	return nil
}

// Remove destroys a cell regardless of its state and returns its value.
func (t *Table) Remove(id ID) (any, bool) {
	state, frame, _ := t.backend.State(id)
	value, _, ok := t.backend.Drop(id)
	if !ok {
		return nil, false
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:  EventReleased,
		ID:    id,
		Frame: frame,
		State: state,
		Value: value,
	})

	return value, true
}

// DropFrame destroys every cell scope-bound to frame, except keep (which may
// be 0), and returns how many were destroyed.
func (t *Table) DropFrame(frame FrameID, keep ID) int {
	n := 0
	for _, id := range t.backend.Owned(frame) {
		if id == keep {
			continue
		}
		if _, ok := t.Remove(id); ok {
			n++
		}
	}
	return n
}

// Owned returns the IDs scope-bound to frame.
func (t *Table) Owned(frame FrameID) []ID {
	return t.backend.Owned(frame)
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer. o must be comparable, so function
// observers cannot be removed this way.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live cells.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Counts returns live cells per ownership state.
func (t *Table) Counts() Counts {
	return t.backend.Counts()
}

// Each iterates over live cells. fn must not modify the table.
func (t *Table) Each(fn func(ID, State, any) bool) {
	t.backend.Each(fn)
}

// Clear destroys all cells, notifying observers for each.
func (t *Table) Clear() {
	// Collect IDs first to avoid holding the lock during Remove
	var ids []ID
	t.backend.Each(func(id ID, _ State, _ any) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		t.Remove(id)
	}
}

// Close releases all cells and stops accepting inserts.
func (t *Table) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
