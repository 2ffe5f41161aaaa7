package session

import (
	"sync"
	"time"
)

// slidingWindow counts inbound message timestamps within a trailing window.
// A message is admitted only while the count stays below the ceiling.
type slidingWindow struct {
	window  time.Duration
	ceiling int

	mu    sync.Mutex
	marks []time.Time
}

func newSlidingWindow(window time.Duration, ceiling int) *slidingWindow {
	return &slidingWindow{window: window, ceiling: ceiling, marks: make([]time.Time, 0, ceiling)}
}

// allow records now as an inbound message if the ceiling permits and reports
// whether the message was admitted. Rejected messages are not recorded.
func (w *slidingWindow) allow(now time.Time) bool {
	if w.ceiling <= 0 {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	kept := w.marks[:0]
	for _, t := range w.marks {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.marks = kept

	if len(w.marks) >= w.ceiling {
		return false
	}
	w.marks = append(w.marks, now)
	return true
}

// count returns the number of marks still inside the window.
func (w *slidingWindow) count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := now.Add(-w.window)
	n := 0
	for _, t := range w.marks {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
