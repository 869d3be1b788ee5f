package runtime

import (
	"time"

	"github.com/axlang/ax/internal/object"
)

// addClock wires Clock.start(0)/stop(0): one stopwatch per registry that
// addClock fills, matching the zero-argument signatures spec.md §6 lists (there's no
// handle argument to thread through, so only one clock can run at a time
// per VM).
func addClock(reg map[string]object.NativeFunc) {
	var started time.Time

	reg["Clock_start"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 0 {
			return 0, arityError("Clock.start", 0, len(args))
		}
		started = time.Now()
		return h.NewNull(), nil
	}

	reg["Clock_stop"] = func(h object.Host, args []object.ID) (object.ID, error) {
		if len(args) != 0 {
			return 0, arityError("Clock.stop", 0, len(args))
		}
		if started.IsZero() {
			return h.NewFloat(0), nil
		}
		return h.NewFloat(time.Since(started).Seconds()), nil
	}
}
