package feeds

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("feed is closed")

// Reversible is a mutation applied locally first and confirmed remotely later.
type Reversible interface {
	// Apply changes local state. It runs when the command is enqueued.
	Apply()
	// Revert undoes Apply after Execute failed or the queue closed first.
	Revert()
	Execute(ctx context.Context) error
}

// Settler is implemented by commands that need to fold their local change
// into fresh remote state once Execute succeeded.
type Settler interface {
	Settle()
}

// Queue executes reversible commands one at a time in enqueue order.
type Queue struct {
	ctx     context.Context
	cancel  context.CancelFunc
	onError func(error)

	mu      sync.Mutex
	items   []Reversible
	closed  bool
	signal  chan struct{}
	stopped chan struct{}
	pending sync.WaitGroup
}

func NewQueue(onError func(error)) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		ctx:     ctx,
		cancel:  cancel,
		onError: onError,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue applies cmd and schedules its remote execution.
func (q *Queue) Enqueue(cmd Reversible) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending.Add(1)
	cmd.Apply()
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Wait blocks until every enqueued command finished.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Close stops the worker and reverts commands that never ran.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	<-q.stopped
}

func (q *Queue) next() (Reversible, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	cmd := q.items[0]
	q.items = q.items[1:]
	return cmd, true
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		select {
		case <-q.signal:
		case <-q.ctx.Done():
			q.drain()
			return
		}

		for {
			if q.ctx.Err() != nil {
				break
			}
			cmd, ok := q.next()
			if !ok {
				break
			}
			q.execute(cmd)
		}
	}
}

func (q *Queue) execute(cmd Reversible) {
	defer q.pending.Done()

	if err := cmd.Execute(q.ctx); err != nil {
		cmd.Revert()
		log.Warn().Err(err).Msg("An error occurred when executing an optimistic command, reverted...")
		if q.onError != nil {
			q.onError(err)
		}
		return
	}
	if settler, ok := cmd.(Settler); ok {
		settler.Settle()
	}
}

func (q *Queue) drain() {
	for {
		cmd, ok := q.next()
		if !ok {
			return
		}
		cmd.Revert()
		q.pending.Done()
	}
}
