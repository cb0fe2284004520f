package wb

import "github.com/abworrall/scalecam/pkg/emath"

const DefaultHistorySize = 7

// GainHistory is a fixed capacity ring of recent raw gain estimates. When
// full, each push evicts the oldest entry.
type GainHistory struct {
	vals  []emath.Vec3
	next  int
	count int
}

func NewGainHistory(capacity int) *GainHistory {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &GainHistory{vals: make([]emath.Vec3, capacity)}
}

func (h *GainHistory) Cap() int { return len(h.vals) }
func (h *GainHistory) Len() int { return h.count }

func (h *GainHistory) Push(v emath.Vec3) {
	h.vals[h.next] = v
	h.next = (h.next + 1) % len(h.vals)
	if h.count < len(h.vals) {
		h.count++
	}
}

// Values returns the contents, oldest first.
func (h *GainHistory) Values() []emath.Vec3 {
	ret := make([]emath.Vec3, 0, h.count)
	start := (h.next - h.count + len(h.vals)) % len(h.vals)
	for i := 0; i < h.count; i++ {
		ret = append(ret, h.vals[(start+i)%len(h.vals)])
	}
	return ret
}

func (h *GainHistory) Median() emath.Vec3 { return emath.MedianVec3(h.Values()) }

func (h *GainHistory) Reset() {
	h.next = 0
	h.count = 0
}
