package resource

// ID is an opaque reference to a cell in a table.
// ID 0 is reserved and always means the runtime's null.
type ID uint32

// FrameID identifies the native call frame that owns scope-bound cells.
// Frame 0 is never allocated.
type FrameID uint32

// State is the ownership state of a live cell.
type State uint8

const (
	// ScopeBound cells are reclaimed when their owning frame exits.
	ScopeBound State = iota
	// Managed cells live until the collector or shutdown reclaims them.
	Managed
	// Unmanaged cells belong to native code until released.
	Unmanaged
)

func (s State) String() string {
	switch s {
	case ScopeBound:
		return "scope-bound"
	case Managed:
		return "managed"
	case Unmanaged:
		return "unmanaged"
	}
	return "unknown"
}

// Event types for cell lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventReleased
	EventManaged
	EventUnmanaged
	EventRehomed
)

// Event represents a cell lifecycle event.
type Event struct {
	Value any
	ID    ID
	Frame FrameID
	State State
	Type  EventType
}

// Observer receives notifications about cell lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// OnResourceEvent calls f(e).
func (f ObserverFunc) OnResourceEvent(e Event) { f(e) }

// Dropper is optionally implemented by cell values that need cleanup when
// their cell is destroyed.
type Dropper interface {
	Drop()
}

// Counts is a snapshot of live cells per ownership state.
type Counts struct {
	ScopeBound int
	Managed    int
	Unmanaged  int
}

// Total returns the number of live cells.
func (c Counts) Total() int {
	return c.ScopeBound + c.Managed + c.Unmanaged
}
