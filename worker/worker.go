// Package worker runs encode and decode jobs off the calling goroutine
// behind a request/response protocol with progress streaming. Each
// worker owns one executor goroutine; requests are correlated to
// responses by a monotonically increasing task id.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mediaconv/media"
)

type Type string

const (
	EncodeGIF  Type = "ENCODE_GIF"
	DecodeHEIC Type = "DECODE_HEIC"
)

// Handler executes one task. It reports progress as a fraction in
// [0, 1]; the protocol layer rescales to 0..100 frames.
type Handler func(payload interface{}, progress func(float64)) (interface{}, error)

// Request is the wire envelope submitted to the executor.
type Request struct {
	ID      string
	Type    Type
	Payload interface{}
}

// Error is the structured failure an executor reports back.
type Error struct {
	Code    string
	Message string
}

// Response is the terminal envelope for a task. Exactly one response is
// emitted per request id.
type Response struct {
	ID      string
	Success bool
	Result  interface{}
	Err     *Error
}

// event is what travels back from the executor: either a progress
// frame or the terminal response.
type event struct {
	id       string
	progress int
	final    bool
	response Response
}

type pending struct {
	ch         chan Response
	onProgress func(int)
	last       int
}

type ProgressFunc func(percentage int)

// Worker is lazily started: the executor goroutine spins up on the
// first submit.
type Worker struct {
	mu       sync.Mutex
	handlers map[Type]Handler
	pend     map[string]*pending
	seq      uint64
	requests chan Request
	events   chan event
	done     chan struct{}
	started  bool
	closed   bool
	log      logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Worker {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Worker{
		handlers: make(map[Type]Handler),
		pend:     make(map[string]*pending),
		requests: make(chan Request),
		events:   make(chan event),
		done:     make(chan struct{}),
		log:      log,
	}
}

// Handle registers the executor for a task type. Registration must
// happen before the first submit of that type.
func (w *Worker) Handle(t Type, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[t] = h
}

func (w *Worker) nextID() string {
	w.seq++
	return fmt.Sprintf("task-%d", w.seq)
}

func (w *Worker) start() {
	if w.started {
		return
	}
	w.started = true

	go w.run()
	go w.dispatch()
}

// Submit sends one task to the executor and blocks until its terminal
// response, context cancellation or worker termination.
func (w *Worker) Submit(ctx context.Context, t Type, payload interface{}, onProgress ProgressFunc) (interface{}, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, errors.Wrap(media.ErrCancelled, "worker is terminated")
	}
	w.start()

	id := w.nextID()
	p := &pending{ch: make(chan Response, 1), last: -1}
	if onProgress != nil {
		p.onProgress = func(pct int) { onProgress(pct) }
	}
	w.pend[id] = p
	w.mu.Unlock()

	select {
	case w.requests <- Request{ID: id, Type: t, Payload: payload}:
	case <-w.done:
		w.drop(id)
		return nil, errors.Wrap(media.ErrCancelled, "worker is terminated")
	case <-ctx.Done():
		w.drop(id)
		return nil, errors.Wrap(media.ErrCancelled, ctx.Err().Error())
	}

	select {
	case resp := <-p.ch:
		if !resp.Success {
			return nil, respError(resp.Err)
		}
		return resp.Result, nil
	case <-w.done:
		return nil, errors.Wrap(media.ErrCancelled, "worker terminated with task in flight")
	case <-ctx.Done():
		w.drop(id)
		return nil, errors.Wrap(media.ErrCancelled, ctx.Err().Error())
	}
}

func respError(e *Error) error {
	if e == nil {
		return errors.Wrap(media.ErrWorkerError, "executor reported failure with no detail")
	}

	code := e.Code
	if code == "" {
		code = e.Message
	}
	if code == "" {
		return media.ErrWorkerError
	}

	// map a known identifier back to its sentinel so media.Code keeps
	// working across the worker boundary
	for _, sentinel := range []error{
		media.ErrGifEncodingError, media.ErrHeicDecodeFailed, media.ErrHeicDecoderUnavailable,
		media.ErrDecodeFailure, media.ErrEncodeFailed, media.ErrCancelled, media.ErrInvalidInput,
	} {
		if sentinel.Error() == code {
			return errors.Wrap(sentinel, e.Message)
		}
	}

	return errors.Wrapf(media.ErrWorkerError, "%s: %s", e.Code, e.Message)
}

// run is the executor goroutine. Tasks execute strictly FIFO, so
// progress frames for a task always precede its terminal response.
func (w *Worker) run() {
	for {
		select {
		case <-w.done:
			return
		case req := <-w.requests:
			w.execute(req)
		}
	}
}

func (w *Worker) execute(req Request) {
	w.mu.Lock()
	h, ok := w.handlers[req.Type]
	w.mu.Unlock()

	if !ok {
		w.emit(event{id: req.ID, final: true, response: Response{
			ID:  req.ID,
			Err: &Error{Code: media.ErrWorkerError.Error(), Message: fmt.Sprintf("no handler for %s", req.Type)},
		}})
		return
	}

	result, err := func() (result interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Wrapf(media.ErrWorkerError, "handler panicked: %v", r)
			}
		}()

		return h(req.Payload, func(fraction float64) {
			w.emit(event{id: req.ID, progress: int(fraction * 100)})
		})
	}()

	if err != nil {
		w.emit(event{id: req.ID, final: true, response: Response{
			ID:  req.ID,
			Err: &Error{Code: media.Code(err), Message: err.Error()},
		}})
		return
	}

	w.emit(event{id: req.ID, final: true, response: Response{ID: req.ID, Success: true, Result: result}})
}

func (w *Worker) emit(ev event) {
	select {
	case w.events <- ev:
	case <-w.done:
	}
}

// dispatch forwards events to the pending table. Events for unknown
// ids are dropped.
func (w *Worker) dispatch() {
	for {
		select {
		case <-w.done:
			return
		case ev := <-w.events:
			w.mu.Lock()
			p, ok := w.pend[ev.id]
			if !ok {
				w.mu.Unlock()
				w.log.WithField("task", ev.id).Debug("dropping event for unknown task")
				continue
			}

			if !ev.final {
				// keep per-task progress monotone even if an executor
				// reports a regressing fraction
				if ev.progress > p.last {
					p.last = ev.progress
				}
				cb := p.onProgress
				pct := p.last
				w.mu.Unlock()
				if cb != nil {
					cb(pct)
				}
				continue
			}

			delete(w.pend, ev.id)
			w.mu.Unlock()
			p.ch <- ev.response
		}
	}
}

func (w *Worker) drop(id string) {
	w.mu.Lock()
	delete(w.pend, id)
	w.mu.Unlock()
}

// Terminate closes the worker. All outstanding tasks are rejected.
// Safe to call more than once.
func (w *Worker) Terminate() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.done)

	rejected := 0
	for id, p := range w.pend {
		p.ch <- Response{ID: id, Err: &Error{Code: media.ErrCancelled.Error(), Message: "worker terminated"}}
		delete(w.pend, id)
		rejected++
	}
	w.mu.Unlock()

	if rejected > 0 {
		w.log.WithField("rejected", rejected).Debug("worker terminated with tasks in flight")
	}
}
