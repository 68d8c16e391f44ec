package worker

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mediaconv/media"
)

// MaxPoolSize caps the number of executor goroutines a pool will hold.
const MaxPoolSize = 3

// Status is a point-in-time snapshot of pool occupancy.
type Status struct {
	Busy      int
	Available int
	Queued    int
}

type poolTask struct {
	typ        Type
	payload    interface{}
	onProgress ProgressFunc
	ctx        context.Context
	resultCh   chan poolResult
}

type poolResult struct {
	result interface{}
	err    error
}

// Pool fronts N workers with a FIFO task queue. Tasks are dequeued in
// submission order as workers free up.
type Pool struct {
	mu      sync.Mutex
	workers []*Worker
	free    []*Worker
	queue   []*poolTask
	busy    int
	closed  bool
	log     logrus.FieldLogger
}

func NewPool(size int, log logrus.FieldLogger) *Pool {
	if size < 1 {
		size = 1
	}
	if size > MaxPoolSize {
		size = MaxPoolSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	p := &Pool{log: log}
	for i := 0; i < size; i++ {
		w := New(log.WithField("worker", i))
		p.workers = append(p.workers, w)
		p.free = append(p.free, w)
	}

	return p
}

// Handle registers a handler on every worker in the pool.
func (p *Pool) Handle(t Type, h Handler) {
	for _, w := range p.workers {
		w.Handle(t, h)
	}
}

// Submit enqueues a task and blocks until it completes. Queued tasks
// run FIFO.
func (p *Pool) Submit(ctx context.Context, t Type, payload interface{}, onProgress ProgressFunc) (interface{}, error) {
	task := &poolTask{
		typ:        t,
		payload:    payload,
		onProgress: onProgress,
		ctx:        ctx,
		resultCh:   make(chan poolResult, 1),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.Wrap(media.ErrCancelled, "pool is terminated")
	}
	p.queue = append(p.queue, task)
	p.pump()
	p.mu.Unlock()

	select {
	case res := <-task.resultCh:
		return res.result, res.err
	case <-ctx.Done():
		return nil, errors.Wrap(media.ErrCancelled, ctx.Err().Error())
	}
}

// pump hands queued tasks to free workers. Caller holds p.mu.
func (p *Pool) pump() {
	for len(p.queue) > 0 && len(p.free) > 0 {
		task := p.queue[0]
		p.queue = p.queue[1:]

		w := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		p.busy++

		go func(w *Worker, task *poolTask) {
			result, err := w.Submit(task.ctx, task.typ, task.payload, task.onProgress)
			task.resultCh <- poolResult{result: result, err: err}

			p.mu.Lock()
			p.busy--
			if !p.closed {
				p.free = append(p.free, w)
				p.pump()
			}
			p.mu.Unlock()
		}(w, task)
	}
}

func (p *Pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Status{
		Busy:      p.busy,
		Available: len(p.free),
		Queued:    len(p.queue),
	}
}

// ClearQueue rejects every queued task. Running tasks are unaffected.
func (p *Pool) ClearQueue() {
	p.mu.Lock()
	queued := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, task := range queued {
		task.resultCh <- poolResult{err: errors.Wrap(media.ErrCancelled, "queue cleared")}
	}
}

// Terminate rejects queued tasks and tears down every worker.
func (p *Pool) Terminate() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	queued := p.queue
	p.queue = nil
	workers := p.workers
	p.mu.Unlock()

	for _, task := range queued {
		task.resultCh <- poolResult{err: errors.Wrap(media.ErrCancelled, "pool terminated")}
	}

	for _, w := range workers {
		w.Terminate()
	}
}
