package indicator

// Ring is a fixed-capacity sliding window over float64 values with a running
// sum. Memory and push cost do not depend on how many values have passed
// through it.
type Ring struct {
	buf  []float64
	head int
	size int
	sum  float64
}

// NewRing creates a ring window. Capacity must be positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, capacity)}
}

// Push appends v, evicting the oldest value when full.
// It returns the evicted value and whether an eviction happened.
func (r *Ring) Push(v float64) (float64, bool) {
	var evicted float64
	full := r.size == len(r.buf)
	if full {
		evicted = r.buf[r.head]
		r.sum -= evicted
	} else {
		r.size++
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	r.sum += v
	return evicted, full
}

func (r *Ring) Len() int  { return r.size }
func (r *Ring) Cap() int  { return len(r.buf) }
func (r *Ring) Full() bool { return r.size == len(r.buf) }

func (r *Ring) Sum() float64 { return r.sum }

// Mean returns the window average, or 0 for an empty window.
func (r *Ring) Mean() float64 {
	if r.size == 0 {
		return 0
	}
	return r.sum / float64(r.size)
}

// MinMax scans the occupied window. Cost is bounded by capacity.
func (r *Ring) MinMax() (float64, float64) {
	if r.size == 0 {
		return 0, 0
	}
	start := r.head - r.size
	if start < 0 {
		start += len(r.buf)
	}
	mn := r.buf[start]
	mx := mn
	for i := 1; i < r.size; i++ {
		v := r.buf[(start+i)%len(r.buf)]
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}

// Values copies the window oldest-first.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.size)
	start := r.head - r.size
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Reset clears the window.
func (r *Ring) Reset() {
	r.head = 0
	r.size = 0
	r.sum = 0
}
