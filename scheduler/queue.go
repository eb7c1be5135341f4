package scheduler

import (
	"sync"
)

// workQueue is a bounded-concurrency FIFO queue of session ids: a buffered
// channel plus a sync.Map guarding against double-processing the same id,
// drained by a fixed pool of goroutines rather than spawning one goroutine
// per item.
type workQueue struct {
	name       string
	queue      chan int64
	processing sync.Map
	handler    func(sessionID int64)

	wg       sync.WaitGroup
	stopChan chan struct{}
}

func newWorkQueue(name string, size, concurrency int, handler func(int64)) *workQueue {
	q := &workQueue{
		name:     name,
		queue:    make(chan int64, size),
		handler:  handler,
		stopChan: make(chan struct{}),
	}
	for i := 0; i < concurrency; i++ {
		q.wg.Add(1)
		go q.loop()
	}
	return q
}

func (q *workQueue) loop() {
	defer q.wg.Done()
	for {
		select {
		case id := <-q.queue:
			q.process(id)
		case <-q.stopChan:
			return
		}
	}
}

func (q *workQueue) process(sessionID int64) {
	if _, loaded := q.processing.LoadOrStore(sessionID, true); loaded {
		return
	}
	defer q.processing.Delete(sessionID)

	q.handler(sessionID)
}

// Submit enqueues sessionID, dropping it if that id is already being
// processed or if the queue is full — the next periodic poll will pick it
// back up.
func (q *workQueue) Submit(sessionID int64) bool {
	if _, inFlight := q.processing.Load(sessionID); inFlight {
		return false
	}
	select {
	case q.queue <- sessionID:
		return true
	default:
		logger.Warn().Str("queue", q.name).Int64("session_id", sessionID).Msg("queue full, dropping")
		return false
	}
}

func (q *workQueue) Stop() {
	close(q.stopChan)
	q.wg.Wait()
}
