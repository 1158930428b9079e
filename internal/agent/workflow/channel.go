package workflow

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"github.com/themovie-ai/server/internal/agent/model"
	logx "github.com/themovie-ai/server/pkg/logger"
)

// DefaultBufferSize is the channel capacity used when none is given.
const DefaultBufferSize = 16

// Channel carries fragments from the active node to a concurrent consumer.
//
// Contract:
//   - Send blocks while the buffer is full, so a slow consumer stalls the
//     producing node instead of dropping data or growing memory.
//   - The consumer observes fragments in Send order.
//   - The run that owns the channel closes it on exit. Later sends are
//     discarded with a warning and never panic.
//   - Abort is the consumer's way to say it is gone. The owning run turns it
//     into context cancellation for the active node.
type Channel struct {
	buf     chan model.Fragment
	closed  chan struct{}
	aborted chan struct{}

	closeOnce sync.Once
	abortOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewChannel returns a channel buffering at most size fragments.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Channel{
		buf:     make(chan model.Fragment, size),
		closed:  make(chan struct{}),
		aborted: make(chan struct{}),
	}
}

// Send appends one fragment.
func (c *Channel) Send(ctx context.Context, f model.Fragment) error {
	select {
	case <-c.closed:
		c.discard(f)
		return ErrChannelClosed
	case <-c.aborted:
		return ErrConsumerGone
	default:
	}

	select {
	case c.buf <- f:
		return nil
	case <-c.aborted:
		return ErrConsumerGone
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		c.discard(f)
		return ErrChannelClosed
	}
}

func (c *Channel) discard(f model.Fragment) {
	logx.Warn().
		Str("node", f.NodeName).
		Int("parts", len(f.Messages)).
		Msg("discarding fragment sent after channel close")
}

// Recv returns the next fragment. Once the channel is closed and drained it
// returns io.EOF after a clean run, or the run error after a failed one.
func (c *Channel) Recv(ctx context.Context) (model.Fragment, error) {
	select {
	case f := <-c.buf:
		return f, nil
	case <-c.closed:
		select {
		case f := <-c.buf:
			return f, nil
		default:
			return model.Fragment{}, c.termination()
		}
	case <-ctx.Done():
		return model.Fragment{}, ctx.Err()
	}
}

// All yields fragments until the channel is drained. A failed run yields
// one final (zero, err) pair. Breaking out of the loop aborts the producer.
// The sequence is single-use.
func (c *Channel) All(ctx context.Context) iter.Seq2[model.Fragment, error] {
	return func(yield func(model.Fragment, error) bool) {
		for {
			f, err := c.Recv(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(model.Fragment{}, err)
				return
			}
			if !yield(f, nil) {
				c.Abort()
				return
			}
		}
	}
}

// Abort signals that the consumer will not read any further.
func (c *Channel) Abort() {
	c.abortOnce.Do(func() { close(c.aborted) })
}

// Aborted is closed once the consumer aborted.
func (c *Channel) Aborted() <-chan struct{} {
	return c.aborted
}

// Done is closed once the owning run exited.
func (c *Channel) Done() <-chan struct{} {
	return c.closed
}

// Err returns the error the channel was closed with, nil while open or after
// a clean run.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// close marks the end of the run. The data buffer itself is never closed so
// that a late Send cannot panic.
func (c *Channel) close(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *Channel) termination() error {
	if err := c.Err(); err != nil {
		return err
	}
	return io.EOF
}
