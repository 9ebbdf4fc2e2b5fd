package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Queue settings
const (
	// QueueCapacity bounds the number of commands waiting for the worker.
	QueueCapacity = 64
	// CommandTimeout caps a single persistence call plus its refetch.
	CommandTimeout = 30 * time.Second
)

// ErrQueueFull is returned when too many commands are waiting.
var ErrQueueFull = errors.New("planner: command queue full")

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("planner: command queue closed")

// Command is one optimistic mutation: how to change the board, and how to
// make the same change durable. Callers may Wait on it.
type Command struct {
	ID          uuid.UUID
	Description string

	apply      func(Board) (Board, error)
	persist    func(ctx context.Context) error
	activities []int64
	dayOp      bool

	done chan struct{}
	err  error
}

func newCommand(desc string) *Command {
	return &Command{ID: uuid.New(), Description: desc, done: make(chan struct{})}
}

// Wait blocks until the command has been persisted (or rolled back) and
// returns its outcome.
func (c *Command) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the command has finished.
func (c *Command) Done() <-chan struct{} { return c.done }

func (c *Command) finish(err error) {
	c.err = err
	close(c.done)
}

// Queue runs commands one at a time, in submission order, on a single
// background worker. Persistence calls therefore reach the server in the
// order the user made them.
type Queue struct {
	handler func(ctx context.Context, cmd *Command)
	log     *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	closed   bool
	cmds     chan *Command
	stopChan chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewQueue creates a queue and starts its worker.
func NewQueue(handler func(ctx context.Context, cmd *Command), log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		handler:  handler,
		log:      log,
		timeout:  CommandTimeout,
		cmds:     make(chan *Command, QueueCapacity),
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-q.stopChan:
				return
			case cmd := <-q.cmds:
				q.run(q.ctx, cmd)
			}
		}
	}()
}

func (q *Queue) run(parent context.Context, cmd *Command) {
	ctx, cancel := context.WithTimeout(parent, q.timeout)
	defer cancel()
	start := time.Now()
	q.handler(ctx, cmd)
	q.log.Debug("command finished",
		zap.String("id", cmd.ID.String()),
		zap.String("command", cmd.Description),
		zap.Duration("took", time.Since(start)))
}

// Submit hands a command to the worker without blocking.
func (q *Queue) Submit(cmd *Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.cmds <- cmd:
		q.log.Debug("command queued", zap.String("id", cmd.ID.String()), zap.String("command", cmd.Description))
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the worker. Commands still waiting are handed to the handler
// with a cancelled context so they roll back instead of hanging.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	close(q.stopChan)
	q.wg.Wait()

	for {
		select {
		case cmd := <-q.cmds:
			q.run(q.ctx, cmd)
		default:
			return
		}
	}
}
