package tui

// DefaultTranscriptLines bounds how many rendered lines the transcript keeps.
const DefaultTranscriptLines = 2000

// RingBuffer keeps the most recent lines. When full, the oldest line is
// overwritten.
type RingBuffer struct {
	data  []string
	head  int // next write
	count int
}

// NewRingBuffer creates a RingBuffer. A non-positive capacity uses
// DefaultTranscriptLines.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultTranscriptLines
	}
	return &RingBuffer{data: make([]string, capacity)}
}

// Append adds a line.
func (rb *RingBuffer) Append(line string) {
	rb.data[rb.head] = line
	rb.head = (rb.head + 1) % len(rb.data)
	if rb.count < len(rb.data) {
		rb.count++
	}
}

// Lines returns the stored lines from oldest to newest.
func (rb *RingBuffer) Lines() []string {
	if rb.count == 0 {
		return nil
	}
	out := make([]string, rb.count)
	start := (rb.head - rb.count + len(rb.data)) % len(rb.data)
	for i := range out {
		out[i] = rb.data[(start+i)%len(rb.data)]
	}
	return out
}

// Count returns the number of stored lines.
func (rb *RingBuffer) Count() int {
	return rb.count
}

// Clear removes every line.
func (rb *RingBuffer) Clear() {
	rb.head = 0
	rb.count = 0
}
