// Package messaging owns the per-operator WhatsApp-style sessions.
//
// A Manager keeps one session per operator. Each session wraps a Transport
// bound to an isolated credential namespace and runs a single goroutine that
// applies the transport's lifecycle events in order, so state for one
// operator is only ever written by that operator's goroutine. The Manager is
// the only component that calls a Transport.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"plotwatch/internal/types"
)

var (
	// ErrProbeUnsupported is returned by Transport.IsRegistered when the
	// transport cannot check whether an address is reachable.
	ErrProbeUnsupported = errors.New("messaging: registration probe unsupported")

	// ErrUnknownSession is returned by HandleEvent for operators that have
	// no session.
	ErrUnknownSession = errors.New("messaging: no session for operator")

	// ErrManagerClosed is returned by Connect after Close.
	ErrManagerClosed = errors.New("messaging: manager closed")

	// ErrStaleSession is returned by HandleEvent for events tagged with a
	// session id other than the operator's current one.
	ErrStaleSession = errors.New("messaging: event for a replaced session")
)

// Transport is an opaque per-operator client able to deliver text messages.
// Implementations must honour context deadlines where they can; the Manager
// also bounds every call with its own timeout.
type Transport interface {
	// Start begins the pairing handshake. ctx bounds only the start call;
	// the transport keeps running until Close.
	Start(ctx context.Context) error
	// Send delivers body to the normalized chat id.
	Send(ctx context.Context, chatID, body string) error
	// IsRegistered reports whether chatID can receive messages. It may
	// return ErrProbeUnsupported.
	IsRegistered(ctx context.Context, chatID string) (bool, error)
	// Close releases the transport. It is safe to call more than once.
	Close(ctx context.Context) error
}

// EventSink receives lifecycle events raised by a transport. It may be
// called from any goroutine.
type EventSink func(types.SessionEvent)

// Binding identifies the session a transport is built for. Namespace is the
// operator's credential namespace and is the same across reconnects, so a
// paired device survives a restart. SessionID is fresh on every Connect;
// transports that raise events out of band echo it back so events from a
// torn-down transport can be recognised.
type Binding struct {
	OperatorID int64
	Namespace  string
	SessionID  string
}

// TransportFactory builds a transport for one session. The namespace is
// never shared between operators.
type TransportFactory interface {
	New(b Binding, sink EventSink) (Transport, error)
}

// TransportFactoryFunc adapts a function to TransportFactory.
type TransportFactoryFunc func(b Binding, sink EventSink) (Transport, error)

// New calls f.
func (f TransportFactoryFunc) New(b Binding, sink EventSink) (Transport, error) {
	return f(b, sink)
}

// SessionStore mirrors session liveness onto the operator's user row. The
// fields are written for observability and never read back.
type SessionStore interface {
	MarkSessionActive(ctx context.Context, operatorID int64, sessionID string) error
	MarkSessionInactive(ctx context.Context, operatorID int64) error
}

// Namespace returns the credential namespace for an operator.
func Namespace(operatorID int64) string {
	return fmt.Sprintf("operator_%d", operatorID)
}
