package core

import (
	"sync"
	"testing"
	"time"
)

func TestPermitBasics(t *testing.T) {
	var p permit
	p.Reset(1)

	if !p.Available() {
		t.Fatal("permit should start available")
	}
	if !p.TryAcquire() {
		t.Fatal("TryAcquire failed on available permit")
	}
	if p.TryAcquire() {
		t.Fatal("TryAcquire succeeded on held permit")
	}

	p.Release()
	if !p.Available() {
		t.Error("permit not available after release")
	}
}

func TestPermitAcquireBlocks(t *testing.T) {
	var p permit
	p.Reset(1)
	p.Acquire()

	acquired := make(chan struct{})
	go func() {
		p.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire returned while permit held")
	case <-time.After(10 * time.Millisecond):
	}

	p.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return after release")
	}
}

func TestPermitSingleWinner(t *testing.T) {
	var p permit
	p.Reset(1)

	const workers = 8
	var wg sync.WaitGroup
	winners := make(chan int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if p.TryAcquire() {
				winners <- n
			}
		}(i)
	}
	wg.Wait()
	close(winners)

	count := 0
	for range winners {
		count++
	}
	if count != 1 {
		t.Errorf("%d goroutines acquired the permit, want 1", count)
	}
}
