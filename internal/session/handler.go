package session

// Handler is the paired (sender of outbound transports, receiver of
// inbound socket events) that whatever drives a session owns. The
// session itself owns the opposite halves (inbound-send, outbound-recv).
type Handler struct {
	Send *SendHandler
	Recv <-chan SocketMessage
}

// SendHandler is the send side of a Handler. It stays valid after the
// Recv channel has been consumed/dropped by whatever owned the original
// Handler, so a long-lived context can keep writing to a session whose
// receive side was only needed transiently (e.g. during handoff).
type SendHandler struct {
	ch   chan<- Transport
	done <-chan struct{}
}

// Send enqueues a transport for the session's write side. Returns
// ErrSendOnClosed if the session has already shut down.
func (h *SendHandler) Send(t Transport) error {
	select {
	case h.ch <- t:
		return nil
	case <-h.done:
		return ErrSendOnClosed
	}
}

// Clone returns an MsgSendHandler usable from any goroutine.
func (h *SendHandler) Clone() *MsgSendHandler {
	return &MsgSendHandler{ch: h.ch, done: h.done}
}

// MsgSendHandler is a send-only handle cloned from a SendHandler. Unlike
// SendHandler it carries no assumptions about ownership and is safe to
// pass to any goroutine that only needs to push transports.
type MsgSendHandler struct {
	ch   chan<- Transport
	done <-chan struct{}
}

// Send enqueues a transport. See SendHandler.Send.
func (h *MsgSendHandler) Send(t Transport) error {
	select {
	case h.ch <- t:
		return nil
	case <-h.done:
		return ErrSendOnClosed
	}
}
