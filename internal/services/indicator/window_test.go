package indicator

import "testing"

func TestRingPushEvicts(t *testing.T) {
	r := NewRing(3)
	for _, v := range []float64{1, 2, 3} {
		if _, full := r.Push(v); full {
			t.Fatalf("unexpected eviction before capacity")
		}
	}
	if !r.Full() {
		t.Fatalf("expected full")
	}
	evicted, full := r.Push(4)
	if !full || evicted != 1 {
		t.Fatalf("expected eviction of 1, got %v full=%v", evicted, full)
	}
	if r.Sum() != 9 {
		t.Fatalf("unexpected sum %v", r.Sum())
	}
}

func TestRingMinMaxAndValues(t *testing.T) {
	r := NewRing(4)
	for _, v := range []float64{5, 1, 9, 3, 7} {
		r.Push(v)
	}
	mn, mx := r.MinMax()
	if mn != 1 || mx != 9 {
		t.Fatalf("unexpected min/max %v %v", mn, mx)
	}
	vals := r.Values()
	want := []float64{1, 9, 3, 7}
	if len(vals) != len(want) {
		t.Fatalf("unexpected len %d", len(vals))
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("values[%d] = %v, want %v", i, vals[i], want[i])
		}
	}
}

func TestRingMean(t *testing.T) {
	r := NewRing(2)
	if r.Mean() != 0 {
		t.Fatalf("empty mean should be 0")
	}
	r.Push(2)
	r.Push(4)
	if r.Mean() != 3 {
		t.Fatalf("unexpected mean %v", r.Mean())
	}
}

func TestRingReset(t *testing.T) {
	r := NewRing(3)
	r.Push(1)
	r.Push(2)
	r.Reset()
	if r.Len() != 0 || r.Sum() != 0 {
		t.Fatalf("reset did not clear state")
	}
}
