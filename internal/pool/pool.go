// Package pool is a fixed-size worker pool for fire-and-forget tasks. It
// knows nothing about downloads; tasks report their own outcome before
// returning, so a failing task never takes a worker down with it.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/swoopdl/swoop/internal/utils"
)

var ErrShuttingDown = errors.New("worker pool is shutting down")
var ErrQueueFull = errors.New("worker pool queue is full")

type Task func() error

type Pool struct {
	mu           sync.Mutex
	tasks        chan Task
	wg           sync.WaitGroup
	shuttingDown bool
	log          zerolog.Logger
}

func New(workers int, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < workers {
		queueSize = workers
	}
	p := &Pool{
		tasks: make(chan Task, queueSize),
		log:   utils.GetLogger("pool"),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	// Closing the task channel is the shutdown signal; range drains any
	// queued work before exiting.
	for task := range p.tasks {
		p.run(id, task)
	}
}

func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("workerId", id).Str("panic", fmt.Sprint(r)).Msg("Task panicked")
		}
	}()
	if err := task(); err != nil {
		p.log.Debug().Int("workerId", id).Err(err).Msg("Task returned error")
	}
}

// Submit enqueues a task without blocking. Submissions after Shutdown are
// rejected with ErrShuttingDown.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuttingDown {
		return ErrShuttingDown
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting work. With wait set, it blocks until the queue
// drains and all in-flight tasks finish.
func (p *Pool) Shutdown(wait bool) {
	p.mu.Lock()
	if !p.shuttingDown {
		p.shuttingDown = true
		close(p.tasks)
	}
	p.mu.Unlock()
	if wait {
		p.wg.Wait()
	}
}
