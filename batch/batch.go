// Package batch executes per-item conversions with bounded concurrency,
// ordered results and partial-failure isolation.
package batch

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"mediaconv/media"
)

const (
	DefaultMaxConcurrent = 3
	MaxConcurrentLimit   = 8
)

// Item is one unit of batch input.
type Item struct {
	Name string
	Blob *media.Blob
}

// Fn converts a single item.
type Fn func(ctx context.Context, item Item) (*media.ConversionResult, error)

// ItemResult occupies the slot matching its input index regardless of
// completion order.
type ItemResult struct {
	OK       bool                    `json:"ok"`
	Result   *media.ConversionResult `json:"result,omitempty"`
	Err      error                   `json:"-"`
	FileName string                  `json:"fileName"`
}

type Summary struct {
	Total                    int           `json:"total"`
	Successful               int           `json:"successful"`
	Failed                   int           `json:"failed"`
	TotalSourceBytes         int           `json:"totalSourceBytes"`
	TotalOutputBytes         int           `json:"totalOutputBytes"`
	Elapsed                  time.Duration `json:"elapsedMs"`
	AverageMs                float64       `json:"averageMs"`
	AggregateCompressionRatio float64      `json:"aggregateCompressionRatio"`
}

type Result struct {
	Items   []ItemResult `json:"items"`
	Summary Summary      `json:"summary"`
}

type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

type Options struct {
	MaxConcurrent   int
	ContinueOnError *bool
	OnProgress      func(Progress)
}

func (o Options) maxConcurrent() (int, error) {
	if o.MaxConcurrent == 0 {
		return DefaultMaxConcurrent, nil
	}

	if o.MaxConcurrent < 1 || o.MaxConcurrent > MaxConcurrentLimit {
		return 0, errors.Wrapf(media.ErrInvalidInput, "maxConcurrent %d is outside [1, %d]", o.MaxConcurrent, MaxConcurrentLimit)
	}

	return o.MaxConcurrent, nil
}

func (o Options) continueOnError() bool {
	if o.ContinueOnError == nil {
		return true
	}

	return *o.ContinueOnError
}

// Run pushes every item through fn with at most maxConcurrent
// conversions in flight. results[i] always pairs items[i]; only the
// order of progress callbacks is completion-dependent.
func Run(ctx context.Context, items []Item, fn Fn, opts Options) (*Result, error) {
	concurrency, err := opts.maxConcurrent()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	out := &Result{Items: make([]ItemResult, len(items))}
	if len(items) == 0 {
		return out, nil
	}

	if concurrency > len(items) {
		concurrency = len(items)
	}

	var (
		mu         sync.Mutex
		next       int
		completed  int
		successful int
		failed     int
		halted     bool
		firstErr   error
	)

	cont := opts.continueOnError()

	// pull model: each runner grabs the next unclaimed index until the
	// queue is drained or a failure halts new pulls
	pull := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if halted || next >= len(items) {
			return 0, false
		}

		i := next
		next++
		return i, true
	}

	settle := func(i int, r ItemResult) {
		mu.Lock()
		out.Items[i] = r
		completed++
		if r.OK {
			successful++
		} else {
			failed++
			if !cont {
				halted = true
				if firstErr == nil {
					firstErr = r.Err
				}
			}
		}

		// the callback runs under the lock so observers always see
		// non-decreasing completion counts
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Completed:  completed,
				Total:      len(items),
				Percentage: int(math.Round(float64(completed) / float64(len(items)) * 100)),
				Successful: successful,
				Failed:     failed,
			})
		}
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for r := 0; r < concurrency; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i, ok := pull()
				if !ok {
					return
				}

				if err := ctx.Err(); err != nil {
					settle(i, ItemResult{
						Err:      errors.Wrap(media.ErrCancelled, err.Error()),
						FileName: items[i].Name,
					})
					continue
				}

				res, err := fn(ctx, items[i])
				if err != nil {
					settle(i, ItemResult{Err: err, FileName: items[i].Name})
					continue
				}

				settle(i, ItemResult{OK: true, Result: res, FileName: items[i].Name})
			}
		}()
	}
	wg.Wait()

	if !cont && firstErr != nil {
		return nil, firstErr
	}

	summarize(out, started)

	return out, nil
}

func summarize(out *Result, started time.Time) {
	s := &out.Summary
	s.Total = len(out.Items)
	s.Elapsed = time.Since(started)

	for _, item := range out.Items {
		if !item.OK {
			s.Failed++
			continue
		}

		s.Successful++
		s.TotalSourceBytes += item.Result.Meta.SourceBytes
		s.TotalOutputBytes += item.Result.Meta.OutputBytes
	}

	if s.Total > 0 {
		s.AverageMs = float64(s.Elapsed.Milliseconds()) / float64(s.Total)
	}
	s.AggregateCompressionRatio = media.Ratio(s.TotalSourceBytes, s.TotalOutputBytes)
}
