package extension

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/librebol"
	"github.com/wippyai/librebol/errors"
)

// guestMemory adapts a wazero memory to librebol.Memory. Out-of-range
// access is an out_of_bounds error rather than a trap so the host can
// report which entry misbehaved.
type guestMemory struct {
	mem api.Memory
}

var (
	_ librebol.Memory      = (*guestMemory)(nil)
	_ librebol.MemorySizer = (*guestMemory)(nil)
)

func wrapMemory(mem api.Memory) *guestMemory {
	if mem == nil {
		return nil
	}
	return &guestMemory{mem: mem}
}

func (m *guestMemory) oob(offset, length uint32) error {
	return errors.OutOfBounds(errors.PhaseExtension, "memory", int(offset)+int(length), int(m.mem.Size()))
}

func (m *guestMemory) Size() uint32 {
	return m.mem.Size()
}

func (m *guestMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, m.oob(offset, length)
	}
	return data, nil
}

func (m *guestMemory) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return m.oob(offset, uint32(len(data)))
	}
	return nil
}

func (m *guestMemory) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, m.oob(offset, 1)
	}
	return v, nil
}

func (m *guestMemory) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, m.oob(offset, 2)
	}
	return v, nil
}

func (m *guestMemory) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, m.oob(offset, 4)
	}
	return v, nil
}

func (m *guestMemory) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return m.oob(offset, 2)
	}
	return nil
}

func (m *guestMemory) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return m.oob(offset, 4)
	}
	return nil
}

// span checks that n elements of unit bytes starting at offset lie inside
// the memory. Guest lengths are checked with it before anything is
// allocated for them.
func (m *guestMemory) span(offset, n, unit uint32) error {
	end := uint64(offset) + uint64(n)*uint64(unit)
	if end > uint64(m.mem.Size()) {
		return errors.OutOfBounds(errors.PhaseExtension, "memory", int(end), int(m.mem.Size()))
	}
	return nil
}

// units reads n little-endian UTF-16 code units.
func (m *guestMemory) units(offset, n uint32) ([]uint16, error) {
	if err := m.span(offset, n, 2); err != nil {
		return nil, err
	}
	raw, err := m.Read(offset, n*2)
	if err != nil {
		return nil, err
	}
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return out, nil
}

func (m *guestMemory) writeUnits(offset uint32, units []uint16) error {
	raw := make([]byte, 2*len(units))
	for i, u := range units {
		raw[2*i] = byte(u)
		raw[2*i+1] = byte(u >> 8)
	}
	return m.Write(offset, raw)
}
