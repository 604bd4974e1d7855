package batch

import (
	"sync"
	"testing"
)

func TestNewWorkerPool_ZeroWorkers(t *testing.T) {
	pool := NewWorkerPool(0)
	if pool.GetStats().Workers <= 0 {
		t.Errorf("expected a positive default worker count, got %d", pool.GetStats().Workers)
	}
}

func TestWorkerPool_Submit(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	defer pool.Close()

	var counter int
	var mu sync.Mutex

	for i := 0; i < 5; i++ {
		pool.Submit(func() {
			mu.Lock()
			counter++
			mu.Unlock()
		})
	}

	pool.Wait()

	if counter != 5 {
		t.Errorf("Expected counter to be 5, got %d", counter)
	}
}

func TestWorkerPool_StartOnce(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()
	pool.Start() // Should not panic or create duplicate workers
	defer pool.Close()

	var executed bool
	pool.Submit(func() {
		executed = true
	})

	pool.Wait()

	if !executed {
		t.Error("Expected job to be executed")
	}
}

func TestWorkerPool_CloseAndResubmit(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Start()

	var executed bool
	if !pool.Submit(func() { executed = true }) {
		t.Fatal("Expected job to be accepted before close")
	}

	pool.Wait()
	pool.Close()
	pool.Close() // idempotent

	if !executed {
		t.Error("Expected job to be executed before close")
	}
	if pool.Submit(func() {}) {
		t.Error("Expected job to be rejected after close")
	}
}

func TestWorkerPool_Stats(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Close()

	const numJobs = 20
	for i := 0; i < numJobs; i++ {
		pool.Submit(func() {
			for j := 0; j < 1000; j++ {
				_ = j * j
			}
		})
	}

	pool.Wait()

	stats := pool.GetStats()
	if stats.TotalJobs != numJobs {
		t.Errorf("Expected %d total jobs, got %d", numJobs, stats.TotalJobs)
	}
	if stats.CompletedJobs != numJobs {
		t.Errorf("Expected %d completed jobs, got %d", numJobs, stats.CompletedJobs)
	}
	if stats.ActiveWorkers != 0 {
		t.Errorf("Expected 0 active workers after completion, got %d", stats.ActiveWorkers)
	}
}
