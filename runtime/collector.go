package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/librebol/resource"
	"github.com/wippyai/librebol/value"
)

// Recycle runs the cleanup callbacks of HANDLE! values that are no longer
// reachable from any live handle, the word context or a running native's
// arguments. It returns the number of callbacks run.
func (rt *Runtime) Recycle() int {
	if rt.shut {
		return 0
	}

	marked := make(map[*value.Opaque]struct{})
	mark := func(v *value.Value) {
		value.Walk(v, func(x *value.Value) {
			if x.Kind == value.KindHandle && x.Opaque != nil {
				marked[x.Opaque] = struct{}{}
			}
		})
	}

	rt.cells.Each(func(_ resource.ID, _ resource.State, raw any) bool {
		if c, ok := raw.(*cell); ok {
			mark(c.v)
		}
		return true
	})
	rt.interp.Words(func(_ string, v *value.Value) { mark(v) })
	for _, call := range rt.natives {
		for _, v := range call.args {
			mark(v)
		}
	}
	if rt.spell != nil {
		mark(rt.spell.v)
	}

	cleaned := 0
	live := rt.opaques[:0]
	for _, o := range rt.opaques {
		if _, ok := marked[o]; ok && o.Pending() {
			live = append(live, o)
			continue
		}
		if o.Cleanup() {
			cleaned++
		}
	}
	for i := len(live); i < len(rt.opaques); i++ {
		rt.opaques[i] = nil
	}
	rt.opaques = live

	rt.log.Debug("recycle",
		zap.Int("cleaned", cleaned),
		zap.Int("pending", len(rt.opaques)),
		zap.Int("handles", rt.cells.Len()))
	return cleaned
}
