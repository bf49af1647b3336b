package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed  = errors.New("resource backend closed")
	ErrInvalid = errors.New("invalid or released cell")
	ErrState   = errors.New("illegal ownership transition")
)

// LocalBackend is an in-memory cell store with per-frame ownership indexing.
type LocalBackend struct {
	entries  []entry
	freeList []ID
	byFrame  map[FrameID]map[ID]struct{}
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value any
	owner FrameID
	state State
	valid bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]ID, 0, 16),
		byFrame:  make(map[FrameID]map[ID]struct{}),
	}
}

// Create stores a scope-bound value owned by frame and returns its ID.
func (b *LocalBackend) Create(frame FrameID, value any) (ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	e := entry{
		value: value,
		owner: frame,
		state: ScopeBound,
		valid: true,
	}

	var id ID
	if len(b.freeList) > 0 {
		id = b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[id-1] = e
	} else {
		b.entries = append(b.entries, e)
		id = ID(len(b.entries))
	}
	b.index(frame, id)
	return id, nil
}

func (b *LocalBackend) index(frame FrameID, id ID) {
	set, ok := b.byFrame[frame]
	if !ok {
		set = make(map[ID]struct{})
		b.byFrame[frame] = set
	}
	set[id] = struct{}{}
}

func (b *LocalBackend) unindex(frame FrameID, id ID) {
	if set, ok := b.byFrame[frame]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(b.byFrame, frame)
		}
	}
}

func (b *LocalBackend) lookup(id ID) *entry {
	if id == 0 || int(id) > len(b.entries) {
		return nil
	}
	e := &b.entries[id-1]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a value by ID.
func (b *LocalBackend) Get(id ID) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(id)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Set replaces the value held by a live cell.
func (b *LocalBackend) Set(id ID, value any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(id)
	if e == nil {
		return false
	}
	e.value = value
	return true
}

// State returns the ownership state and owning frame of a live cell.
// The frame is zero unless the cell is scope-bound.
func (b *LocalBackend) State(id ID) (State, FrameID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(id)
	if e == nil {
		return 0, 0, false
	}
	return e.state, e.owner, true
}

// Transition moves a cell from one state to another. Moving into ScopeBound
// requires a frame; moving out of it detaches the cell from its frame.
func (b *LocalBackend) Transition(id ID, from, to State, frame FrameID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(id)
	if e == nil {
		return ErrInvalid
	}
	if e.state != from {
		return ErrState
	}
	if e.state == ScopeBound {
		b.unindex(e.owner, id)
		e.owner = 0
	}
	e.state = to
	if to == ScopeBound {
		e.owner = frame
		b.index(frame, id)
	}
	return nil
}

// Rehome moves a scope-bound cell to a different owning frame.
func (b *LocalBackend) Rehome(id ID, frame FrameID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(id)
	if e == nil {
		return ErrInvalid
	}
	if e.state != ScopeBound {
		return ErrState
	}
	b.unindex(e.owner, id)
	e.owner = frame
	b.index(frame, id)
	return nil
}

// Drop removes a cell and returns its value and the state it held.
func (b *LocalBackend) Drop(id ID) (any, State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(id)
	if e == nil {
		return nil, 0, false
	}

	value, state := e.value, e.state
	if state == ScopeBound {
		b.unindex(e.owner, id)
	}
	*e = entry{}
	b.freeList = append(b.freeList, id)

	return value, state, true
}

// Owned returns the IDs of every cell scope-bound to frame.
func (b *LocalBackend) Owned(frame FrameID) []ID {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set := b.byFrame[frame]
	ids := make([]ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Close releases all cells.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				d.Drop()
			}
		}
	}

	b.entries = nil
	b.freeList = nil
	b.byFrame = nil
	return nil
}

// Counts returns the number of live cells per state.
func (b *LocalBackend) Counts() Counts {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var c Counts
	for _, e := range b.entries {
		if !e.valid {
			continue
		}
		switch e.state {
		case ScopeBound:
			c.ScopeBound++
		case Managed:
			c.Managed++
		case Unmanaged:
			c.Unmanaged++
		}
	}
	return c
}

// Len returns the number of live cells.
func (b *LocalBackend) Len() int {
	return b.Counts().Total()
}

// Each iterates over all live cells.
func (b *LocalBackend) Each(fn func(ID, State, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(ID(i+1), e.state, e.value) {
				break
			}
		}
	}
}
