package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemQueue is the channel-based WorkQueue used in stub mode and by tests. It
// keeps the same contract as the asynq queue (per-stage queues, handlers
// pulled by a bounded worker set) minus durability.
type MemQueue struct {
	mu       sync.Mutex
	handlers map[string]StageHandler
	ch       chan memDelivery
	workers  int
	// inflight counts enqueued-but-unfinished deliveries so tests can wait
	// for a whole chain to settle.
	inflight sync.WaitGroup
	started  bool
	done     chan struct{}
}

type memDelivery struct {
	stage string
	jobID string
}

func NewMemQueue(workers int) *MemQueue {
	if workers <= 0 {
		workers = 4
	}
	return &MemQueue{
		handlers: make(map[string]StageHandler),
		ch:       make(chan memDelivery, 256),
		workers:  workers,
		done:     make(chan struct{}),
	}
}

func (q *MemQueue) Enqueue(ctx context.Context, stage, jobID string) error {
	q.mu.Lock()
	_, ok := q.handlers[stage]
	q.mu.Unlock()
	if !ok {
		return fmt.Errorf("no handler subscribed for stage %s", stage)
	}
	q.inflight.Add(1)
	select {
	case q.ch <- memDelivery{stage: stage, jobID: jobID}:
		return nil
	case <-ctx.Done():
		q.inflight.Done()
		return ctx.Err()
	}
}

func (q *MemQueue) Subscribe(stage string, handler StageHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[stage] = handler
}

func (q *MemQueue) Run() error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = true
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		go func() {
			for {
				select {
				case d := <-q.ch:
					q.dispatch(d)
				case <-q.done:
					return
				}
			}
		}()
	}
	return nil
}

func (q *MemQueue) dispatch(d memDelivery) {
	defer q.inflight.Done()
	q.mu.Lock()
	handler := q.handlers[d.stage]
	q.mu.Unlock()
	if err := handler(context.Background(), d.jobID); err != nil {
		// No redelivery here; surface what asynq would have retried.
		log.Error().Err(err).Str("stage", d.stage).Str("job_id", d.jobID).Msg("handler error")
	}
}

// Drain blocks until every enqueued delivery, including ones enqueued by
// running handlers, has finished.
func (q *MemQueue) Drain() {
	q.inflight.Wait()
}

func (q *MemQueue) Close() error {
	close(q.done)
	return nil
}
