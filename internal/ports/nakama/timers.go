package nakama

import "time"

// tickRate is the number of MatchLoop invocations per second.
const tickRate = 10

// tickTimer is a single-slot deadline measured in match ticks. Arming
// captures the table generation; a deadline that comes due under any other
// generation is discarded silently, so a timer can never act on a table that
// moved on after it was armed. The loop sweep re-arms discarded timers when
// their condition still holds.
type tickTimer struct {
	armed bool
	due   int64
	gen   uint64
}

func (t *tickTimer) arm(due int64, gen uint64) {
	t.armed = true
	t.due = due
	t.gen = gen
}

func (t *tickTimer) disarm() {
	t.armed = false
}

// consume reports whether the deadline elapsed under the generation it was
// armed for. A due timer is disarmed either way.
func (t *tickTimer) consume(tick int64, gen uint64) bool {
	if !t.armed || tick < t.due {
		return false
	}
	t.armed = false
	return t.gen == gen
}

// durationToTicks converts a wall duration to match ticks, rounding down
// with a minimum of one tick.
func durationToTicks(d time.Duration) int64 {
	ticks := int64(d) * tickRate / int64(time.Second)
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}
