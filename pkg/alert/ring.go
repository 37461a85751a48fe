package alert

// ring is a fixed-capacity window of recent alerts. Oldest entries are
// evicted on overflow.
type ring struct {
	buf   []Alert
	start int
	count int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]Alert, capacity)}
}

func (r *ring) push(a Alert) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = a
		r.count++
		return
	}
	// Full: overwrite the oldest slot.
	r.buf[r.start] = a
	r.start = (r.start + 1) % len(r.buf)
}

// items returns the window contents, oldest first.
func (r *ring) items() []Alert {
	out := make([]Alert, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}
