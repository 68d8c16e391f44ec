package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaconv/media"
)

func TestWorker_SubmitRoundTrip(t *testing.T) {
	w := New(nil)
	defer w.Terminate()

	w.Handle(EncodeGIF, func(payload interface{}, progress func(float64)) (interface{}, error) {
		progress(0.25)
		progress(0.5)
		progress(1)
		return payload.(int) * 2, nil
	})

	var mu sync.Mutex
	var seen []int
	result, err := w.Submit(context.Background(), EncodeGIF, 21, func(pct int) {
		mu.Lock()
		seen = append(seen, pct)
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "progress must be monotone")
	}
	assert.Equal(t, 100, seen[len(seen)-1])
}

func TestWorker_FailureCarriesCode(t *testing.T) {
	w := New(nil)
	defer w.Terminate()

	w.Handle(EncodeGIF, func(interface{}, func(float64)) (interface{}, error) {
		return nil, errors.Wrap(media.ErrGifEncodingError, "palette exploded")
	})

	_, err := w.Submit(context.Background(), EncodeGIF, nil, nil)
	assert.Equal(t, "GifEncodingError", media.Code(err))
	assert.Contains(t, err.Error(), "palette exploded")
}

func TestWorker_UnknownTypeFails(t *testing.T) {
	w := New(nil)
	defer w.Terminate()

	_, err := w.Submit(context.Background(), "NO_SUCH_TYPE", nil, nil)
	assert.Equal(t, "WorkerError", media.Code(err))
}

func TestWorker_PanicIsContained(t *testing.T) {
	w := New(nil)
	defer w.Terminate()

	w.Handle(DecodeHEIC, func(interface{}, func(float64)) (interface{}, error) {
		panic("boom")
	})

	_, err := w.Submit(context.Background(), DecodeHEIC, nil, nil)
	assert.Equal(t, "WorkerError", media.Code(err))
}

func TestWorker_IDsAreUniqueAndSequential(t *testing.T) {
	w := New(nil)
	defer w.Terminate()

	assert.Equal(t, "task-1", w.nextID())
	assert.Equal(t, "task-2", w.nextID())
	assert.Equal(t, "task-3", w.nextID())
}

func TestWorker_TerminateRejectsInFlight(t *testing.T) {
	w := New(nil)

	release := make(chan struct{})
	w.Handle(EncodeGIF, func(interface{}, func(float64)) (interface{}, error) {
		<-release
		return nil, nil
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), EncodeGIF, nil, nil)
		errCh <- err
	}()

	// give the task time to reach the executor
	time.Sleep(20 * time.Millisecond)
	w.Terminate()
	close(release)

	select {
	case err := <-errCh:
		assert.Equal(t, "Cancelled", media.Code(err))
	case <-time.After(time.Second):
		t.Fatal("submit did not return after terminate")
	}

	_, err := w.Submit(context.Background(), EncodeGIF, nil, nil)
	assert.Equal(t, "Cancelled", media.Code(err))

	// idempotent
	w.Terminate()
}

func TestWorker_ContextCancellation(t *testing.T) {
	w := New(nil)
	defer w.Terminate()

	release := make(chan struct{})
	defer close(release)
	w.Handle(EncodeGIF, func(interface{}, func(float64)) (interface{}, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := w.Submit(ctx, EncodeGIF, nil, nil)
	assert.Equal(t, "Cancelled", media.Code(err))
}

func TestPool_SubmitFIFO(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Terminate()

	var mu sync.Mutex
	var order []int
	p.Handle(EncodeGIF, func(payload interface{}, _ func(float64)) (interface{}, error) {
		mu.Lock()
		order = append(order, payload.(int))
		mu.Unlock()
		return payload, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			_, err := p.Submit(context.Background(), EncodeGIF, i, nil)
			assert.NoError(t, err)
		}()
		// stagger submissions so queue order is deterministic
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPool_SizeIsCapped(t *testing.T) {
	p := NewPool(10, nil)
	defer p.Terminate()

	st := p.Status()
	assert.Equal(t, MaxPoolSize, st.Available)
	assert.Equal(t, 0, st.Busy)
	assert.Equal(t, 0, st.Queued)
}

func TestPool_ClearQueue(t *testing.T) {
	p := NewPool(1, nil)
	defer p.Terminate()

	release := make(chan struct{})
	p.Handle(EncodeGIF, func(interface{}, func(float64)) (interface{}, error) {
		<-release
		return nil, nil
	})

	// occupy the only worker
	busyErr := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), EncodeGIF, nil, nil)
		busyErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	queuedErr := make(chan error, 1)
	go func() {
		_, err := p.Submit(context.Background(), EncodeGIF, nil, nil)
		queuedErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, p.Status().Queued)
	p.ClearQueue()

	select {
	case err := <-queuedErr:
		assert.Equal(t, "Cancelled", media.Code(err))
	case <-time.After(time.Second):
		t.Fatal("queued task was not rejected")
	}

	close(release)
	assert.NoError(t, <-busyErr)
}
