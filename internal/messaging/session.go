package messaging

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"plotwatch/internal/types"
)

// session is one operator's transport plus its lifecycle state. state and
// pairing are written only by the run goroutine (and by Connect before run
// starts); the mutex lets Status and SendAs read them from other goroutines.
type session struct {
	operatorID int64
	namespace  string
	id         string
	transport  Transport

	events  chan types.SessionEvent
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu      sync.RWMutex
	state   types.SessionState
	pairing *types.PairingArtifact
}

func newSession(operatorID int64, buffer int) *session {
	return &session{
		operatorID: operatorID,
		namespace:  Namespace(operatorID),
		id:         uuid.NewString(),
		events:     make(chan types.SessionEvent, buffer),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		state:      types.SessionAwaitingPairing,
	}
}

// enqueue is the session's EventSink. It blocks until the actor accepts the
// event or the session stops, then drops it.
func (s *session) enqueue(ev types.SessionEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// run consumes events one at a time until stop is called.
func (s *session) run(apply func(*session, types.SessionEvent)) {
	defer close(s.stopped)
	for {
		select {
		case ev := <-s.events:
			apply(s, ev)
		case <-s.done:
			return
		}
	}
}

// stop ends the actor and waits for an in-progress event to finish.
func (s *session) stop() {
	s.once.Do(func() { close(s.done) })
	<-s.stopped
}

func (s *session) binding() Binding {
	return Binding{OperatorID: s.operatorID, Namespace: s.namespace, SessionID: s.id}
}

func (s *session) currentState() types.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *session) status() types.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.SessionStatus{
		OperatorID: s.operatorID,
		State:      s.state,
		Connected:  s.state == types.SessionConnected,
		SessionID:  s.id,
	}
	if s.state == types.SessionAwaitingPairing && s.pairing != nil {
		p := *s.pairing
		st.Pairing = &p
	}
	return st
}

func (s *session) set(state types.SessionState, pairing *types.PairingArtifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.pairing = pairing
}

// shutdown stops the actor, then closes the transport. Stopping first
// means a disconnected event raised by Close is dropped rather than applied.
func (s *session) shutdown(ctx context.Context) error {
	s.stop()
	if s.transport == nil {
		return nil
	}
	return s.transport.Close(ctx)
}
