package librebol

// EndSignature is the byte pattern that marks the end of a variadic
// argument sequence on the wire: a UTF-8 continuation byte that can never
// start a fragment, followed by a zero byte. It is part of the contract
// between any two components built against this library and must never
// change.
var EndSignature = [2]byte{0x80, 0x00}

// EndTag is the first byte of EndSignature, used as the record tag that
// terminates guest argument lists.
const EndTag byte = 0x80

// NullID is the handle id that stands for the runtime's null. The zero id
// is never allocated to a live value.
const NullID uint32 = 0

// API version of the entry-point table. Entries are append-only: a table
// with a higher MinorVersion is a superset of every lower one.
const (
	MajorVersion = 2
	MinorVersion = 102
)

// Memory is a guest linear memory as seen by extension bridges.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
}

// MemorySizer provides the current size of a guest memory in bytes.
type MemorySizer interface {
	Size() uint32
}
