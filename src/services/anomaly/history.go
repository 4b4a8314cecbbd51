package anomaly

// historyDepth bounds the per-subject rolling window. Six readings is
// enough for the delta rule while keeping memory linear in the number
// of subjects.
const historyDepth = 6

// rollingHistory keeps the last historyDepth readings per subject in
// memory. It is deliberately process-local: history resets on restart,
// and the rules are designed to cope with partial history.
//
// Not safe for concurrent use; the detector owns it from one loop.
type rollingHistory struct {
	rates map[string]*rateRing
}

type rateRing struct {
	buf  [historyDepth]int
	head int
	size int
}

func newRollingHistory() *rollingHistory {
	return &rollingHistory{rates: make(map[string]*rateRing)}
}

// Recent returns the subject's readings oldest first. The slice is a
// fresh copy, safe to hold across Observe calls.
func (h *rollingHistory) Recent(customerID string) []int {
	ring, ok := h.rates[customerID]
	if !ok || ring.size == 0 {
		return nil
	}

	recent := make([]int, 0, ring.size)
	start := (ring.head - ring.size + historyDepth*2) % historyDepth
	for i := 0; i < ring.size; i++ {
		recent = append(recent, ring.buf[(start+i)%historyDepth])
	}
	return recent
}

// Observe appends a reading, evicting the oldest once the window is
// full.
func (h *rollingHistory) Observe(customerID string, rate int) {
	ring, ok := h.rates[customerID]
	if !ok {
		ring = &rateRing{}
		h.rates[customerID] = ring
	}

	ring.buf[ring.head] = rate
	ring.head = (ring.head + 1) % historyDepth
	if ring.size < historyDepth {
		ring.size++
	}
}
