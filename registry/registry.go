// Package registry tracks externally-allocated resources - temp files,
// open documents, worker instances - and guarantees their release on
// task completion, owner detach, age-out or process shutdown.
package registry

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var ErrUnknownHandle = errors.New("registry unknown handle")

const (
	DefaultTTL           = 60 * time.Second
	DefaultSweepInterval = 10 * time.Second
)

// Handle identifies one tracked resource.
type Handle uint64

// Info describes the resource behind a handle.
type Info struct {
	Kind      string
	Owner     string
	Size      int
	MediaType string
}

type entry struct {
	info      Info
	createdAt time.Time
	release   func()
}

type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Log           logrus.FieldLogger
}

// Registry is safe for concurrent use. Construct one per process and
// share it; Close releases everything still tracked.
type Registry struct {
	mu      sync.Mutex
	seq     Handle
	entries map[Handle]*entry
	ttl     time.Duration
	log     logrus.FieldLogger

	sweepOnce sync.Once
	interval  time.Duration
	stop      chan struct{}
	stopped   sync.Once
}

func New(cfg Config) *Registry {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	return &Registry{
		entries:  make(map[Handle]*entry),
		ttl:      cfg.TTL,
		interval: cfg.SweepInterval,
		log:      cfg.Log,
		stop:     make(chan struct{}),
	}
}

// Acquire registers a resource. The release callback runs exactly once,
// whichever of the release paths fires first. The background sweeper
// starts with the first acquisition.
func (r *Registry) Acquire(release func(), info Info) Handle {
	r.mu.Lock()
	r.seq++
	h := r.seq
	r.entries[h] = &entry{info: info, createdAt: time.Now(), release: release}
	r.mu.Unlock()

	r.sweepOnce.Do(func() { go r.sweepLoop() })

	return h
}

// Release frees one handle. Releasing an unknown or already released
// handle reports ErrUnknownHandle; the operation is otherwise idempotent.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	e, ok := r.entries[h]
	delete(r.entries, h)
	r.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "handle %d", h)
	}

	if e.release != nil {
		e.release()
	}

	return nil
}

// Replace releases every handle an owner currently holds and registers
// a new resource under the same owner.
func (r *Registry) Replace(owner string, release func(), info Info) Handle {
	info.Owner = owner
	r.Detach(owner)

	return r.Acquire(release, info)
}

// Detach releases everything associated with an owner.
func (r *Registry) Detach(owner string) int {
	if owner == "" {
		return 0
	}

	r.mu.Lock()
	var victims []*entry
	for h, e := range r.entries {
		if e.info.Owner == owner {
			victims = append(victims, e)
			delete(r.entries, h)
		}
	}
	r.mu.Unlock()

	for _, e := range victims {
		if e.release != nil {
			e.release()
		}
	}

	return len(victims)
}

// ReleaseAll frees every tracked handle.
func (r *Registry) ReleaseAll() int {
	r.mu.Lock()
	victims := make([]*entry, 0, len(r.entries))
	for h, e := range r.entries {
		victims = append(victims, e)
		delete(r.entries, h)
	}
	r.mu.Unlock()

	for _, e := range victims {
		if e.release != nil {
			e.release()
		}
	}

	return len(victims)
}

// Count reports how many handles are live.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.entries)
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if n := r.sweep(time.Now()); n > 0 {
				r.log.WithField("released", n).Debug("registry sweep released aged handles")
			}
		}
	}
}

// sweep releases handles older than the TTL.
func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	var victims []*entry
	for h, e := range r.entries {
		if now.Sub(e.createdAt) > r.ttl {
			victims = append(victims, e)
			delete(r.entries, h)
		}
	}
	r.mu.Unlock()

	for _, e := range victims {
		if e.release != nil {
			e.release()
		}
	}

	return len(victims)
}

// Close stops the sweeper and releases everything. Idempotent; the
// registry must not be used afterwards.
func (r *Registry) Close() {
	r.stopped.Do(func() { close(r.stop) })
	r.ReleaseAll()
}
