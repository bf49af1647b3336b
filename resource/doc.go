// Package resource provides the cell table behind librebol value handles.
//
// Every handle returned to native code refers to one cell in a Table. A
// cell holds a value plus its ownership state and, while scope-bound, the
// frame that owns it.
//
// # Ownership States
//
//	ScopeBound - reclaimed when the owning frame exits (the default)
//	Managed    - follows the collector, detached from any frame
//	Unmanaged  - owned by native code until released
//
// Legal transitions:
//
//	Manage:   ScopeBound -> Managed
//	Unmanage: Managed    -> Unmanaged
//	Release:  Unmanaged  -> destroyed
//
// Anything else returns ErrState; touching a released cell returns ErrInvalid.
//
// # Frames
//
//	table := resource.NewTable()
//	id := table.Insert(frame, value)
//
//	// later, when the frame unwinds
//	table.DropFrame(frame, resultID)
//
// # Observers
//
// Observers see every creation, transition and release:
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//		if e.Type == resource.EventReleased {
//			log.Printf("cell %d released", e.ID)
//		}
//	}))
//
// Values implementing Dropper have Drop called when their cell is destroyed.
package resource
