package scanning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

var errPoolClosed = errors.New("worker pool is closed")

// worker is one checkout slot of the local engine. Its scratch directory is
// only touched by the goroutine holding it.
type worker struct {
	id  int
	dir string
}

// workerPool hands out workers through a buffered channel, so each worker has
// at most one user at a time.
type workerPool struct {
	free      chan *worker
	all       []*worker
	closed    chan struct{}
	closeOnce sync.Once
}

func newWorkerPool(size int) (*workerPool, error) {
	if size <= 0 {
		size = 1
	}
	p := &workerPool{
		free:   make(chan *worker, size),
		closed: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		dir, err := os.MkdirTemp("", "invoice-ocr-worker-*")
		if err != nil {
			p.close()
			return nil, fmt.Errorf("creating worker scratch dir: %w", err)
		}
		w := &worker{id: i, dir: dir}
		p.all = append(p.all, w)
		p.free <- w
	}
	return p, nil
}

// acquire blocks until a worker is free, ctx is done or the pool closes
func (p *workerPool) acquire(ctx context.Context) (*worker, error) {
	select {
	case <-p.closed:
		return nil, errPoolClosed
	default:
	}

	select {
	case w := <-p.free:
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, errPoolClosed
	}
}

// release returns w to the pool. The channel holds every worker, so this never blocks.
func (p *workerPool) release(w *worker) {
	p.free <- w
}

// close stops new checkouts and removes the scratch directories
func (p *workerPool) close() error {
	var errs []error
	p.closeOnce.Do(func() {
		close(p.closed)
		for _, w := range p.all {
			if err := os.RemoveAll(w.dir); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
