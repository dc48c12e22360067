package worker

import (
	"runtime"
	"sync"
	"time"

	"github.com/caesium-cloud/hera/pkg/log"
	"github.com/pkg/errors"
)

// ErrRejected is returned by Submit when the queue is full or the pool
// has been closed.
var ErrRejected = errors.New("worker pool rejected task")

const DefaultIdleTimeout = 60 * time.Second

// Pool runs submitted tasks on at most maxWorkers goroutines. Tasks
// wait in a bounded queue; a submission that finds the queue full is
// rejected rather than blocking the caller. Workers idle for longer
// than the idle timeout exit and are started again on demand.
type Pool struct {
	tasks      chan func()
	maxWorkers int
	idle       time.Duration

	mu      sync.Mutex
	workers int
	waiting int
	closed  bool

	wg sync.WaitGroup
}

// NewPool sizes the pool. maxWorkers below one means NumCPU*4.
func NewPool(maxWorkers, queueSize int, idle time.Duration) *Pool {
	if maxWorkers < 1 {
		maxWorkers = runtime.NumCPU() * 4
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Pool{
		tasks:      make(chan func(), queueSize),
		maxWorkers: maxWorkers,
		idle:       idle,
	}
}

func (p *Pool) Submit(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.Wrap(ErrRejected, "pool closed")
	}

	select {
	case p.tasks <- fn:
	default:
		return errors.Wrap(ErrRejected, "queue full")
	}

	if p.waiting == 0 && p.workers < p.maxWorkers {
		p.workers++
		p.wg.Add(1)
		go p.work()
	}
	return nil
}

// Workers reports how many worker goroutines are alive.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

func (p *Pool) work() {
	defer p.wg.Done()

	timer := time.NewTimer(p.idle)
	defer timer.Stop()

	for {
		p.mu.Lock()
		p.waiting++
		p.mu.Unlock()

		select {
		case fn, ok := <-p.tasks:
			p.mu.Lock()
			p.waiting--
			if !ok {
				p.workers--
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()

			run(fn)

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(p.idle)

		case <-timer.C:
			p.mu.Lock()
			p.waiting--
			if len(p.tasks) > 0 {
				p.mu.Unlock()
				timer.Reset(p.idle)
				continue
			}
			p.workers--
			p.mu.Unlock()
			return
		}
	}
}

func run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker task panicked", "panic", r)
		}
	}()
	fn()
}

// Close stops accepting tasks. Queued tasks still run.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
}

// Wait blocks until every worker has exited. It only returns after
// Close or once all workers have gone idle.
func (p *Pool) Wait() {
	p.wg.Wait()
}
