package runtime

import (
	"fmt"
	"syscall"

	"github.com/wippyai/librebol/eval"
)

// FailOS raises a failure with id os carrying the platform message for
// errnum. It never returns; like Jumps it must run beneath Rescue or a host
// native.
func (rt *Runtime) FailOS(errnum int) {
	panic(eval.Fail("os", "%s", osMessage(errnum)))
}

func osMessage(errnum int) string {
	if errnum == 0 {
		return "no error"
	}
	return fmt.Sprintf("%s (errno %d)", syscall.Errno(errnum).Error(), errnum)
}
