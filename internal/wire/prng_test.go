package wire

import "testing"

func TestPRNGNonZeroAndVaries(t *testing.T) {
	p := NewPRNG()
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		v := p.Next()
		if v == 0 {
			t.Fatalf("PRNG produced zero at draw %d", i)
		}
		seen[v] = true
	}
	if len(seen) < 990 {
		t.Fatalf("PRNG produced too many repeats: %d unique of 1000", len(seen))
	}
}

func TestPRNGConcurrentSafe(t *testing.T) {
	p := NewPRNG()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 1000; j++ {
				p.Next()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
