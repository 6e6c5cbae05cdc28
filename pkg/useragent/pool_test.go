package useragent

import (
	"sync"
	"testing"
)

func TestPool_Next(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	for i, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next(); got != want {
			t.Errorf("call %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestPool_Default(t *testing.T) {
	p := NewPool(nil)
	if len(p.List()) != len(DefaultPool) {
		t.Errorf("expected pool length %d, got %d", len(DefaultPool), len(p.List()))
	}
	if got := p.Next(); got != DefaultPool[0] {
		t.Errorf("expected %s, got %s", DefaultPool[0], got)
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"A", "B"})

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		got := p.Random()
		if got != "A" && got != "B" {
			t.Fatalf("unexpected UA: %s", got)
		}
		seen[got] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("expected both agents over 100 draws, saw %v", seen)
	}
}

func TestPool_Concurrent(t *testing.T) {
	uas := []string{"X", "Y", "Z"}
	p := NewPool(uas)

	var wg sync.WaitGroup
	const routines = 100
	const iterations = 1000

	results := make(chan string, routines*iterations)
	for i := 0; i < routines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				results <- p.Next()
			}
		}()
	}
	wg.Wait()
	close(results)

	counts := map[string]int{}
	for r := range results {
		counts[r]++
	}

	// Round-robin under contention still distributes evenly.
	expectedBase := (routines * iterations) / len(uas)
	remainder := (routines * iterations) % len(uas)
	for k, count := range counts {
		if count < expectedBase || count > expectedBase+remainder {
			t.Errorf("expected between %d and %d hits for %s, got %d", expectedBase, expectedBase+remainder, k, count)
		}
	}
}

func TestPool_Empty(t *testing.T) {
	p := &Pool{uas: []string{}}

	if got := p.Next(); got != "" {
		t.Errorf("expected empty string from empty pool, got %s", got)
	}
	if got := p.Random(); got != "" {
		t.Errorf("expected empty string from empty pool, got %s", got)
	}
}
