package model

// History keeps the most recent sealed candles in a fixed size ring.
type History struct {
	candles []Candle
	head    int
	size    int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{candles: make([]Candle, capacity)}
}

func (h *History) Push(candle Candle) {
	h.candles[h.head] = candle
	h.head = (h.head + 1) % len(h.candles)
	if h.size < len(h.candles) {
		h.size++
	}
}

func (h *History) Len() int {
	return h.size
}

func (h *History) Cap() int {
	return len(h.candles)
}

func (h *History) Last() (Candle, bool) {
	if h.size == 0 {
		return Candle{}, false
	}
	idx := (h.head - 1 + len(h.candles)) % len(h.candles)
	return h.candles[idx], true
}

// Candles returns the retained candles from oldest to newest.
func (h *History) Candles() []Candle {
	result := make([]Candle, h.size)
	start := 0
	if h.size == len(h.candles) {
		start = h.head
	}
	for i := 0; i < h.size; i++ {
		result[i] = h.candles[(start+i)%len(h.candles)]
	}
	return result
}
