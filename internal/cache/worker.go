package cache

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arjunsahu/corekernel/internal/core"
)

// worker supervises the cache's two background goroutines: best-effort
// sequential read-ahead, and periodic write-back of dirty slots.
type worker struct {
	cache       *Cache
	cancel      context.CancelFunc
	g           *errgroup.Group
	readAheadCh chan uint32
}

func startWorker(c *Cache) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	w := &worker{
		cache:       c,
		cancel:      cancel,
		g:           g,
		readAheadCh: make(chan uint32, core.CacheSize),
	}
	g.Go(func() error { w.runReadAhead(ctx); return nil })
	g.Go(func() error { w.runPeriodicFlush(ctx); return nil })
	return w
}

func (w *worker) stop() {
	w.cancel()
	w.g.Wait() //nolint:errcheck // workers never return a non-nil error
}

// requestReadAhead enqueues sector for prefetch. The request is
// dropped if the queue is full: read-ahead is an optimization, never a
// correctness requirement.
func (w *worker) requestReadAhead(sector uint32) {
	select {
	case w.readAheadCh <- sector:
	default:
	}
}

func (w *worker) runReadAhead(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sector := <-w.readAheadCh:
			// Best effort: a failed prefetch just means the next
			// synchronous read pays the device round trip itself.
			_, _ = w.cache.fetch(sector, core.SectorKindData)
		}
	}
}

func (w *worker) runPeriodicFlush(ctx context.Context) {
	ticker := time.NewTicker(core.FlushIntervalSeconds * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = w.cache.FlushAll()
		}
	}
}
