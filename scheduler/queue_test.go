package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkQueueProcessesSubmittedItems(t *testing.T) {
	var processed int32
	q := newWorkQueue("test", 8, 2, func(id int64) {
		atomic.AddInt32(&processed, 1)
	})
	defer q.Stop()

	for i := int64(1); i <= 5; i++ {
		q.Submit(i)
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&processed) < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := atomic.LoadInt32(&processed); got != 5 {
		t.Fatalf("expected 5 processed, got %d", got)
	}
}

func TestWorkQueueSkipsDuplicateInFlightItem(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	release := make(chan struct{})
	var calls int32

	q := newWorkQueue("test", 8, 1, func(id int64) {
		atomic.AddInt32(&calls, 1)
		<-release
		wg.Done()
	})
	defer q.Stop()

	q.Submit(1)
	time.Sleep(20 * time.Millisecond)
	q.Submit(1) // should be dropped; 1 is still "processing"
	close(release)
	wg.Wait()

	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 call, got %d", got)
	}
}

func TestWorkQueueDropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := newWorkQueue("test", 1, 1, func(id int64) {
		<-block
	})
	defer func() {
		close(block)
		q.Stop()
	}()

	if !q.Submit(1) {
		t.Fatal("expected first submit to succeed")
	}
	time.Sleep(10 * time.Millisecond) // let the worker pick item 1 up
	if !q.Submit(2) {
		t.Fatal("expected second submit to fill the buffer")
	}
	if q.Submit(3) {
		t.Fatal("expected third submit to be dropped, queue full")
	}
}
