package runtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/librebol/resource"
)

// frame is one native call level. Scope-bound handles and foreign buffers
// created while it is the top frame belong to it.
type frame struct {
	allocs *allocationList
	id     resource.FrameID
}

// allocationList tracks the buffers a frame owns so they can be freed when
// the frame unwinds.
type allocationList struct {
	buffers []*Buffer
}

var allocationListPool = sync.Pool{
	New: func() any {
		return &allocationList{buffers: make([]*Buffer, 0, 8)}
	},
}

const maxPooledAllocationCapacity = 128

func newAllocationList() *allocationList {
	return allocationListPool.Get().(*allocationList)
}

// release returns the list to the pool. The list is invalid afterwards.
func (al *allocationList) release() {
	// Only pool small lists to prevent memory bloat
	if cap(al.buffers) > maxPooledAllocationCapacity {
		return
	}
	al.buffers = al.buffers[:0]
	allocationListPool.Put(al)
}

func (al *allocationList) add(b *Buffer) {
	al.buffers = append(al.buffers, b)
}

func (al *allocationList) remove(b *Buffer) {
	for i, x := range al.buffers {
		if x == b {
			al.buffers[i] = al.buffers[len(al.buffers)-1]
			al.buffers = al.buffers[:len(al.buffers)-1]
			return
		}
	}
}

func (rt *Runtime) top() *frame {
	return rt.frames[len(rt.frames)-1]
}

func (rt *Runtime) pushFrame() *frame {
	rt.nextFrame++
	f := &frame{id: rt.nextFrame, allocs: newAllocationList()}
	rt.frames = append(rt.frames, f)
	return f
}

// popFrame unwinds f, which must be the top frame. Its scope-bound handles
// are destroyed except keep, which moves to the parent frame. Buffers still
// owned are freed; on a normal exit they are also reported as leaks.
func (rt *Runtime) popFrame(f *frame, failed bool, keep *Handle) {
	if len(rt.frames) == 0 || rt.top() != f {
		rt.log.Error("frame unwound out of order", zap.Uint32("frame", uint32(f.id)))
		return
	}
	rt.frames = rt.frames[:len(rt.frames)-1]

	var keepID resource.ID
	if keep != nil {
		if state, owner, ok := rt.cells.State(keep.id); ok && state == resource.ScopeBound && owner == f.id {
			keepID = keep.id
		}
	}

	dropped := rt.cells.DropFrame(f.id, keepID)
	if keepID != 0 && len(rt.frames) > 0 {
		_ = rt.cells.Rehome(keepID, rt.top().id)
	}

	for _, b := range append([]*Buffer(nil), f.allocs.buffers...) {
		if !failed {
			rt.log.Warn("buffer leaked at frame exit",
				zap.Uint32("frame", uint32(f.id)),
				zap.Int("size", len(b.data)))
		}
		rt.freeBuffer(b)
	}
	f.allocs.release()
	f.allocs = nil

	if dropped > 0 {
		rt.log.Debug("frame dropped",
			zap.Uint32("frame", uint32(f.id)),
			zap.Int("handles", dropped),
			zap.Bool("failed", failed))
	}
}

// InFrame runs fn in a fresh frame. Handles created inside are reclaimed
// when fn returns, except the returned one, which is handed to the
// enclosing frame on success. Panics unwind the frame and propagate.
func (rt *Runtime) InFrame(fn func() (*Handle, error)) (h *Handle, err error) {
	if err := rt.enter("frame"); err != nil {
		return nil, err
	}
	f := rt.pushFrame()
	done := false
	defer func() {
		if !done {
			rt.popFrame(f, true, nil)
		}
	}()

	h, err = fn()
	done = true
	if err != nil {
		rt.popFrame(f, true, nil)
		return nil, err
	}
	rt.popFrame(f, false, h)
	return h, nil
}
