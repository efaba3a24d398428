package notifications

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
)

// ErrPoolClosed is returned by Enqueue after Close.
var ErrPoolClosed = errors.New("notification pool closed")

// Deliverer is satisfied by *Dispatcher.
type Deliverer interface {
	Deliver(ctx context.Context, job Job) Outcome
}

// Pool runs deliveries on a fixed set of workers.
type Pool struct {
	deliverer Deliverer
	shards    []chan Job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// StartPool launches workers goroutines, each owning a buffer of queueSize
// jobs. Deliveries run under ctx; cancelling it abandons queued work.
func StartPool(ctx context.Context, deliverer Deliverer, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{deliverer: deliverer, shards: make([]chan Job, workers)}
	for i := range p.shards {
		jobs := make(chan Job, queueSize)
		p.shards[i] = jobs
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range jobs {
				p.deliverer.Deliver(ctx, job)
			}
		}()
	}
	return p
}

// Enqueue hands job to the worker owning its submission. It blocks only while
// that worker's buffer is full.
func (p *Pool) Enqueue(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.shards[ShardIndex(job.SubmissionID, len(p.shards))] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs not yet picked up.
func (p *Pool) Pending() int {
	total := 0
	for _, shard := range p.shards {
		total += len(shard)
	}
	return total
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, shard := range p.shards {
		close(shard)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// ShardIndex maps a submission ID onto one of shards workers.
func ShardIndex(key string, shards int) int {
	if shards <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(shards))
}
