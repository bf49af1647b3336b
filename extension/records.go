package extension

import (
	"strconv"

	"github.com/wippyai/librebol"
	"github.com/wippyai/librebol/errors"
	"github.com/wippyai/librebol/runtime"
)

// Argument records as laid out in guest memory:
//
//	offset 0  tag    u8
//	offset 1  quotes u8
//	offset 2  (pad)  u16
//	offset 4  a      u32   handle id, or fragment pointer
//	offset 8  b      u32   fragment length
const recordSize = 12

const (
	tagHandle    byte = 0x00
	tagSource    byte = 0x01
	tagReleasing byte = 0x02
	tagEnd            = librebol.EndTag
)

// decodeArgs reads records starting at ptr up to the END record.
func decodeArgs(rt *runtime.Runtime, mem *guestMemory, entry string, ptr uint32) ([]runtime.Arg, error) {
	var args []runtime.Arg
	for at := uint64(ptr); ; at += recordSize {
		if at+recordSize > uint64(mem.Size()) {
			return nil, errors.New(errors.PhaseExtension, errors.KindMissingEnd).
				Entry(entry).
				Value(ptr).
				Detail("argument list at %#x runs past guest memory after %d record(s)", ptr, len(args)).
				Build()
		}
		rec, err := mem.Read(uint32(at), recordSize)
		if err != nil {
			return nil, err
		}
		tag, quotes := rec[0], int(rec[1])
		a := le32(rec[4:])
		b := le32(rec[8:])

		var arg runtime.Arg
		switch tag {
		case tagEnd:
			return args, nil

		case tagSource:
			src, err := mem.Read(a, b)
			if err != nil {
				return nil, err
			}
			args = append(args, runtime.S(string(src)))
			continue

		case tagHandle, tagReleasing:
			h, err := guestHandle(rt, entry, a)
			if err != nil {
				return nil, err
			}
			if tag == tagReleasing {
				arg = runtime.R(h)
			} else {
				arg = runtime.V(h)
			}

		default:
			return nil, errors.New(errors.PhaseExtension, errors.KindInvalidData).
				Entry(entry).
				Path("args", strconv.Itoa(len(args))).
				Value(tag).
				Detail("unknown argument record tag %#02x at %#x", tag, at).
				Build()
		}

		if quotes > 0 {
			arg = runtime.Quoting(quotes, arg)
		}
		args = append(args, arg)
	}
}

// guestHandle resolves a guest handle id. Zero is null.
func guestHandle(rt *runtime.Runtime, entry string, id uint32) (*runtime.Handle, error) {
	if id == librebol.NullID {
		return nil, nil
	}
	h, ok := rt.Lookup(id)
	if !ok {
		return nil, errors.New(errors.PhaseExtension, errors.KindUsage).
			Entry(entry).
			Value(id).
			Detail("handle %d is not live", id).
			Build()
	}
	return h, nil
}

func handleID(h *runtime.Handle) uint64 {
	if h == nil {
		return uint64(librebol.NullID)
	}
	return uint64(h.ID())
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
