package booking

import (
	"fmt"
	"time"
)

// CountdownWarningThreshold is when a countdown switches to its warning
// presentation.
const CountdownWarningThreshold = 30 * time.Second

// Remaining is the time left on a lock at now, never negative.  It is
// recomputed from the authoritative deadline on every tick.
func Remaining(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}

// FormatCountdown renders the remaining time as mm:ss, rounding partial
// seconds up so the display reaches 00:00 only at the deadline.
func FormatCountdown(deadline, now time.Time) string {
	secs := int((Remaining(deadline, now) + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// CountdownWarning reports whether the countdown should be shown as urgent.
func CountdownWarning(deadline, now time.Time) bool {
	return Remaining(deadline, now) <= CountdownWarningThreshold
}
