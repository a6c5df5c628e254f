// Package interval holds the single overlap predicate every availability
// decision in the engine reduces to.
package interval

import "time"

// Overlaps reports whether [aStart, aEnd) intersects [bStart, bEnd).
// Half-open semantics: intervals that merely touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Buffered widens [start, end) by the given buffer minutes on each side.
// Buffers apply to provider events only, never to explicit slots.
func Buffered(start, end time.Time, beforeMin, afterMin int) (time.Time, time.Time) {
	return start.Add(-time.Duration(beforeMin) * time.Minute),
		end.Add(time.Duration(afterMin) * time.Minute)
}
