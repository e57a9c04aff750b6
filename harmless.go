package dwarf

import "container/ring"

// harmlessErrorsCap bounds the ring Session uses to record non-fatal
// anomalies. Once full, the oldest entry is overwritten.
const harmlessErrorsCap = 50

// harmlessErrors is a fixed-capacity ring of *Error, append-only from
// Session's perspective: recordHarmless never blocks or grows, it just
// evicts the oldest entry once full.
type harmlessErrors struct {
	r   *ring.Ring
	len int
}

func newHarmlessErrors() *harmlessErrors {
	return &harmlessErrors{r: ring.New(harmlessErrorsCap)}
}

func (h *harmlessErrors) record(err *Error) {
	h.r.Value = err
	h.r = h.r.Next()
	if h.len < harmlessErrorsCap {
		h.len++
	}
}

// Slice returns every recorded harmless error, oldest first.
func (h *harmlessErrors) Slice() []*Error {
	out := make([]*Error, 0, h.len)
	// h.r is always the slot after the newest entry (once the ring has
	// wrapped, that slot holds the oldest entry); walking backward len
	// steps from h.r lands on the oldest entry whether or not the ring
	// has wrapped.
	start := h.r.Move(-h.len)
	start.Do(func(v interface{}) {
		if v != nil {
			out = append(out, v.(*Error))
		}
	})
	return out
}
