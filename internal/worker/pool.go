package worker

import (
	"sync"

	"topup-service/internal/metrics"
)

type task func()

// Pool runs submitted tasks on a fixed set of goroutines. Used for webhook
// processing so gateway retries get a fast 200 while settlement runs async.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan task
}

func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 256
	}
	p := &Pool{jobs: make(chan task, queue)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
				metrics.WorkerQueueDepth.Dec()
			}
		}()
	}
	return p
}

// Submit blocks when the queue is full.
func (p *Pool) Submit(f task) {
	metrics.WorkerQueueDepth.Inc()
	p.jobs <- f
}

// TrySubmit reports false instead of blocking when the queue is full.
func (p *Pool) TrySubmit(f task) bool {
	select {
	case p.jobs <- f:
		metrics.WorkerQueueDepth.Inc()
		return true
	default:
		return false
	}
}

func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
