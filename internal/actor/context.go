// Package actor implements the context runtime: the single-goroutine
// select loop that drives exactly one domain entity (a short-lived
// player-session handshake, a long-lived exploration, or a channel peer)
// from its own bound session handler and periodic check.
package actor

import (
	"context"
	"log/slog"

	"github.com/lowtide/hexplore/internal/session"
)

// Implementor is the capability set a domain entity exposes to its
// Context. It replaces the boxed-any dispatch of the reference design
// with a plain interface: each concrete entity type (player-session
// handshake, exploration, channel peer) implements it directly.
type Implementor interface {
	// DealMsg processes one inbound socket message. A non-nil error
	// stops the context.
	DealMsg(ctx context.Context, msg session.SocketMessage) error

	// Check runs the implementor's periodic work (timers, save
	// deadlines, trigger pumps) and blocks until there is something to
	// report or ctx is cancelled. It may return a replacement Handler;
	// when non-nil, the context supersedes its bound handler with it
	// (the old one is dropped without further notification). A non-nil
	// error stops the context.
	Check(ctx context.Context) (next *session.Handler, err error)

	// OnClose is always called exactly once when the context exits, for
	// any reason (error, shutdown, or normal completion).
	OnClose()
}

// Context owns exactly one Implementor and, optionally, one bound session
// Handler. Run drives it until the implementor or the periodic check
// returns an error, or ctx is cancelled.
type Context struct {
	name    string
	logger  *slog.Logger
	impl    Implementor
	handler *session.Handler
}

// New constructs a Context around impl. handler may be nil for
// implementors that are not yet bound to any session (the check-only
// mode described in §4.3).
func New(name string, logger *slog.Logger, impl Implementor, handler *session.Handler) *Context {
	return &Context{
		name:    name,
		logger:  logger.With(slog.String("context", name)),
		impl:    impl,
		handler: handler,
	}
}

type checkResult struct {
	next *session.Handler
	err  error
}

// Run executes the select loop until exit. OnClose always fires exactly
// once, regardless of which branch caused the exit.
func (c *Context) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer c.impl.OnClose()

	checkCh := make(chan checkResult, 1)
	go c.runCheckLoop(ctx, checkCh)

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-c.recvCh():
			if !ok {
				// The handler's Recv channel is closed: the session already
				// delivered its one Disconnect message and exited. Unbind so
				// recvCh reverts to a nil channel; otherwise this case would
				// spin, since a closed channel is always ready.
				c.handler = nil
				continue
			}
			if err := c.impl.DealMsg(ctx, msg); err != nil {
				c.logger.Warn("deal_msg returned error, stopping context", slog.String("error", err.Error()))
				return err
			}

		case res := <-checkCh:
			if res.err != nil {
				c.logger.Warn("check returned error, stopping context", slog.String("error", res.err.Error()))
				return res.err
			}
			if res.next != nil {
				c.handler = res.next
			}
		}
	}
}

// recvCh returns the bound handler's receive channel, or nil when no
// handler is bound. A nil channel blocks forever in a select, which is
// exactly the "check only" mode §4.3 describes.
func (c *Context) recvCh() <-chan session.SocketMessage {
	if c.handler == nil {
		return nil
	}
	return c.handler.Recv
}

// runCheckLoop repeatedly calls impl.Check and forwards each result,
// stopping once ctx is cancelled or Check reports an error.
func (c *Context) runCheckLoop(ctx context.Context, out chan<- checkResult) {
	for {
		next, err := c.impl.Check(ctx)
		select {
		case out <- checkResult{next: next, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil || ctx.Err() != nil {
			return
		}
	}
}
