package runtime

import (
	"encoding/binary"
	"unicode/utf16"

	"go.uber.org/zap"

	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/value"
)

// Buffer is a foreign allocation tracked by the runtime. It belongs to the
// frame that was on top when it was allocated.
type Buffer struct {
	rt    *Runtime
	frame *frame
	data  []byte
	freed bool
	wide  bool
}

// Bytes returns the buffer contents. The slice is invalid once the buffer
// is freed, reallocated or repossessed.
func (b *Buffer) Bytes() []byte {
	if b == nil || b.freed {
		return nil
	}
	return b.data
}

// Len returns the buffer size in bytes.
func (b *Buffer) Len() int {
	if b == nil || b.freed {
		return 0
	}
	return len(b.data)
}

// Wide reports whether the buffer holds little-endian UTF-16 code units.
func (b *Buffer) Wide() bool {
	return b != nil && b.wide
}

// Units decodes a wide buffer into UTF-16 code units, excluding the
// terminator.
func (b *Buffer) Units() []uint16 {
	data := b.Bytes()
	units := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return units
}

// String returns the buffer as text, up to the first NUL.
func (b *Buffer) String() string {
	if b.Wide() {
		return string(utf16.Decode(b.Units()))
	}
	data := b.Bytes()
	for i, c := range data {
		if c == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}

// Malloc allocates a zeroed foreign buffer of size bytes. The allocation
// counts toward the collector threshold.
func (rt *Runtime) Malloc(size int) (*Buffer, error) {
	if err := rt.enter("rebMalloc"); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errors.OutOfBounds(errors.PhaseAlloc, "rebMalloc", size, 0)
	}
	return rt.allocate(make([]byte, size), false), nil
}

func (rt *Runtime) allocate(data []byte, wide bool) *Buffer {
	return rt.allocateIn(rt.top(), data, wide)
}

// allocateIn attaches a new buffer to frame f.
func (rt *Runtime) allocateIn(f *frame, data []byte, wide bool) *Buffer {
	b := &Buffer{rt: rt, frame: f, data: data, wide: wide}
	f.allocs.add(b)
	rt.buffers[b] = struct{}{}
	rt.bufferBytes += len(data)
	rt.mallocBytes += len(data)

	if rt.mallocBytes >= rt.cfg.RecycleThreshold {
		rt.mallocBytes = 0
		n := rt.Recycle()
		rt.log.Debug("allocation pressure recycle", zap.Int("cleaned", n))
	}
	return b
}

// Realloc returns a buffer of size bytes holding the start of b. b is
// invalid afterwards. The new buffer belongs to the same frame as b.
func (rt *Runtime) Realloc(b *Buffer, size int) (*Buffer, error) {
	if err := rt.enter("rebRealloc"); err != nil {
		return nil, err
	}
	if err := rt.checkBuffer("rebRealloc", b); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errors.OutOfBounds(errors.PhaseAlloc, "rebRealloc", size, 0)
	}
	data := make([]byte, size)
	copy(data, b.data)
	wide, f := b.wide, b.frame
	rt.freeBuffer(b)
	return rt.allocateIn(f, data, wide), nil
}

// Free releases a buffer. Freeing twice is a usage error.
func (rt *Runtime) Free(b *Buffer) error {
	if err := rt.enter("rebFree"); err != nil {
		return err
	}
	if err := rt.checkBuffer("rebFree", b); err != nil {
		return err
	}
	rt.freeBuffer(b)
	return nil
}

// Repossess turns the first size bytes of b into a BINARY! value without
// copying. b is invalid afterwards.
func (rt *Runtime) Repossess(b *Buffer, size int) (*Handle, error) {
	if err := rt.enter("rebRepossess"); err != nil {
		return nil, err
	}
	if err := rt.checkBuffer("rebRepossess", b); err != nil {
		return nil, err
	}
	if size < 0 || size > len(b.data) {
		return nil, errors.OutOfBounds(errors.PhaseAlloc, "rebRepossess", size, len(b.data))
	}
	data := b.data[:size:size]
	rt.freeBuffer(b)
	return rt.wrap(value.Binary(data)), nil
}

func (rt *Runtime) checkBuffer(entry string, b *Buffer) error {
	switch {
	case b == nil:
		return rt.usage(entry, "nil buffer")
	case b.rt != rt:
		return rt.usage(entry, "buffer belongs to another runtime")
	case b.freed:
		return rt.usage(entry, "buffer already freed")
	}
	return nil
}

func (rt *Runtime) freeBuffer(b *Buffer) {
	if b.freed {
		return
	}
	b.freed = true
	delete(rt.buffers, b)
	rt.bufferBytes -= len(b.data)
	if b.frame != nil && b.frame.allocs != nil {
		b.frame.allocs.remove(b)
	}
	b.frame = nil
	b.data = nil
}
