package cache

import (
	"sync"
	"testing"
)

func TestRunCompleteRunsCallbacksOnce(t *testing.T) {
	run := NewRun()
	if run.ID() == "" {
		t.Fatal("Run ID should not be empty")
	}

	var order []string
	run.OnComplete("a", func() { order = append(order, "a") })
	run.OnComplete("b", func() { order = append(order, "b") })

	run.Complete()
	run.Complete()

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("Expected [a b], got %v", order)
	}
	if !run.Completed() {
		t.Fatal("Run should report completed")
	}
}

func TestRunOnCompleteDeduplicatesByID(t *testing.T) {
	run := NewRun()

	calls := 0
	if !run.OnComplete("key", func() { calls++ }) {
		t.Fatal("First registration should succeed")
	}
	if run.OnComplete("key", func() { calls++ }) {
		t.Fatal("Second registration should be ignored")
	}

	run.Complete()
	if calls != 1 {
		t.Fatalf("Expected 1 call, got %d", calls)
	}
}

func TestRunOnCompleteAfterComplete(t *testing.T) {
	run := NewRun()
	run.Complete()

	called := false
	run.OnComplete("late", func() { called = true })
	if !called {
		t.Fatal("Callback registered after completion should run immediately")
	}
}

func TestRunOnCompleteSeenIDAfterComplete(t *testing.T) {
	run := NewRun()

	calls := 0
	run.OnComplete("key", func() { calls++ })
	run.Complete()

	if !run.OnComplete("key", func() { calls++ }) {
		t.Fatal("A completed run should run every callback")
	}
	if calls != 2 {
		t.Fatalf("Expected 2 calls, got %d", calls)
	}
}

func TestRunConcurrentComplete(t *testing.T) {
	run := NewRun()

	var mu sync.Mutex
	calls := 0
	run.OnComplete("key", func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run.Complete()
		}()
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("Expected 1 call, got %d", calls)
	}
}
