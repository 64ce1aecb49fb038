package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig().WithWorkers(4)

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestFor_EachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 1}

	hits := make([]int32, 257)
	For(len(hits), func(i int) {
		atomic.AddInt32(&hits[i], 1)
	}, cfg)

	for i, h := range hits {
		if h != 1 {
			t.Errorf("Index %d visited %d times", i, h)
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var order []int
	For(5, func(i int) {
		order = append(order, i)
	}, cfg)

	for i, v := range order {
		if v != i {
			t.Fatalf("Sequential order broken: %v", order)
		}
	}
	if len(order) != 5 {
		t.Errorf("Expected 5 calls, got %d", len(order))
	}
}

func TestFor_SmallInputRunsSequentially(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 100}

	var order []int
	For(50, func(i int) {
		order = append(order, i) // Safe only because n < MinChunkSize*2.
	}, cfg)

	if len(order) != 50 {
		t.Errorf("Expected 50 calls, got %d", len(order))
	}
}

func TestWithWorkers(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.WithWorkers(0); got != cfg {
		t.Errorf("WithWorkers(0) changed config: %+v", got)
	}
	if got := cfg.WithWorkers(1); got.Enabled {
		t.Error("WithWorkers(1) should disable parallelism")
	}
	if got := cfg.WithWorkers(3); got.NumWorkers != 3 {
		t.Errorf("Expected 3 workers, got %d", got.NumWorkers)
	}
}
