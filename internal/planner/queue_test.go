package planner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestQueueRunsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var order []string
	q := NewQueue(func(_ context.Context, cmd *Command) {
		mu.Lock()
		order = append(order, cmd.Description)
		mu.Unlock()
		cmd.finish(nil)
	}, nil)

	var cmds []*Command
	for _, name := range []string{"first", "second", "third"} {
		cmd := newCommand(name)
		require.NoError(t, q.Submit(cmd))
		cmds = append(cmds, cmd)
	}
	for _, cmd := range cmds {
		require.NoError(t, wait(t, cmd))
	}
	q.Close()

	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.ErrorIs(t, q.Submit(newCommand("late")), ErrQueueClosed)
}

func TestQueueCloseCancelsRunningCommand(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	q := NewQueue(func(ctx context.Context, cmd *Command) {
		if cmd.Description == "slow" {
			close(started)
		}
		<-ctx.Done()
		cmd.finish(ctx.Err())
	}, nil)

	slow, queued := newCommand("slow"), newCommand("queued")
	require.NoError(t, q.Submit(slow))
	require.NoError(t, q.Submit(queued))
	<-started

	q.Close()
	q.Close()

	assert.ErrorIs(t, wait(t, slow), context.Canceled)
	assert.ErrorIs(t, wait(t, queued), context.Canceled)
}

func TestQueueFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	q := NewQueue(func(ctx context.Context, cmd *Command) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		cmd.finish(nil)
	}, nil)
	defer q.Close()
	defer close(release)

	var err error
	for i := 0; i < QueueCapacity+2 && err == nil; i++ {
		err = q.Submit(newCommand("fill"))
	}
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestCommandWaitHonoursContext(t *testing.T) {
	cmd := newCommand("never")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, cmd.Wait(ctx), context.DeadlineExceeded)

	select {
	case <-cmd.Done():
		t.Fatal("command should still be open")
	default:
	}
}
