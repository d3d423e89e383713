package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"plotwatch/internal/types"
)

const (
	defaultSendTimeout  = 15 * time.Second
	probeShare          = 4
	defaultStoreTimeout = 5 * time.Second
	defaultEventBuffer  = 16
)

// Config tunes a Manager. Zero values select defaults.
type Config struct {
	// DefaultCountryCode is prefixed to bare 10-digit numbers.
	DefaultCountryCode string
	// SendTimeout bounds each transport call (start, send, close).
	SendTimeout time.Duration
	// ProbeTimeout bounds the registration probe made before a send. It
	// defaults to a quarter of SendTimeout.
	ProbeTimeout time.Duration
	// StoreTimeout bounds each SessionStore write made by an actor.
	StoreTimeout time.Duration
	// EventBuffer is the per-session inbound event queue length.
	EventBuffer int
}

// SendBudget is the longest a single SendAs can take: the probe plus the
// send. Per-channel delivery deadlines should be at least this long.
func (c Config) SendBudget() time.Duration {
	c = c.withDefaults()
	return c.ProbeTimeout + c.SendTimeout
}

func (c Config) withDefaults() Config {
	if c.DefaultCountryCode == "" {
		c.DefaultCountryCode = DefaultCountryCode
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = c.SendTimeout / probeShare
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = defaultEventBuffer
	}
	return c
}

// Manager is the registry of operator sessions.
//
// mu guards the sessions map only. Lifecycle operations for one operator
// (Connect, Disconnect) are serialized by a per-operator lock so a slow
// transport start for one operator never blocks another.
type Manager struct {
	factory TransportFactory
	store   SessionStore
	clock   types.Clock
	logger  types.Logger
	cfg     Config

	mu       sync.Mutex
	sessions map[int64]*session
	opLocks  map[int64]*sync.Mutex
	closed   bool
}

// NewManager creates a Manager. store may be nil when liveness should not be
// mirrored anywhere.
func NewManager(factory TransportFactory, store SessionStore, clock types.Clock, logger types.Logger, cfg Config) *Manager {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Manager{
		factory:  factory,
		store:    store,
		clock:    clock,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		sessions: make(map[int64]*session),
		opLocks:  make(map[int64]*sync.Mutex),
	}
}

// Connect ensures the operator has a live session. A connected session is
// returned unchanged. Otherwise any stale session is torn down and a new
// transport is started, leaving the session awaiting pairing.
func (m *Manager) Connect(ctx context.Context, operatorID int64) (types.SessionStatus, error) {
	unlock := m.lockOperator(operatorID)
	defer unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return types.SessionStatus{}, ErrManagerClosed
	}
	existing := m.sessions[operatorID]
	m.mu.Unlock()

	if existing != nil {
		if existing.currentState() == types.SessionConnected {
			return existing.status(), nil
		}
		m.remove(operatorID, existing)
		m.teardown(existing)
	}

	s := newSession(operatorID, m.cfg.EventBuffer)
	transport, err := m.factory.New(s.binding(), s.enqueue)
	if err != nil {
		return types.SessionStatus{}, types.NewAppError(
			types.ErrCodeUpstreamTransport,
			fmt.Sprintf("failed to create transport for operator %d", operatorID),
			err,
		)
	}
	s.transport = transport

	go s.run(m.apply)

	m.mu.Lock()
	m.sessions[operatorID] = s
	m.mu.Unlock()

	startErr := callWithTimeout(ctx, m.cfg.SendTimeout, transport.Start)
	if startErr != nil {
		m.remove(operatorID, s)
		m.teardown(s)
		return types.SessionStatus{}, types.NewAppError(
			types.ErrCodeUpstreamTransport,
			fmt.Sprintf("failed to start transport for operator %d", operatorID),
			startErr,
		)
	}

	m.logger.Info("messaging session started",
		"operator_id", operatorID,
		"namespace", s.namespace,
		"session_id", s.id,
	)
	return s.status(), nil
}

// Status returns the operator's session state. Unknown operators report an
// uninitialized, disconnected session.
func (m *Manager) Status(operatorID int64) types.SessionStatus {
	if s := m.get(operatorID); s != nil {
		return s.status()
	}
	return types.SessionStatus{
		OperatorID: operatorID,
		State:      types.SessionUninitialized,
	}
}

// SendAs delivers message to address through the operator's session. It
// returns false without touching the transport unless the session is
// connected, and never returns an error or panics.
func (m *Manager) SendAs(ctx context.Context, operatorID int64, address, message string) bool {
	s := m.get(operatorID)
	if s == nil || s.currentState() != types.SessionConnected {
		state := types.SessionUninitialized
		if s != nil {
			state = s.currentState()
		}
		m.logger.Warn("send skipped: session not connected",
			"operator_id", operatorID,
			"state", string(state),
		)
		return false
	}

	chatID := NormalizeAddress(address, m.cfg.DefaultCountryCode)
	if chatID == "" {
		m.logger.Warn("send skipped: address has no digits", "operator_id", operatorID)
		return false
	}

	m.probe(ctx, s, chatID)

	err := callWithTimeout(ctx, m.cfg.SendTimeout, func(cctx context.Context) error {
		return s.transport.Send(cctx, chatID, message)
	})
	if err != nil {
		m.logger.Error("whatsapp send failed",
			"operator_id", operatorID,
			"chat_id", redactChat(chatID),
			"error", err.Error(),
		)
		return false
	}

	m.logger.Info("whatsapp message sent",
		"operator_id", operatorID,
		"chat_id", redactChat(chatID),
	)
	return true
}

// probe runs the best-effort registration check. The outcome is logged only.
// It gets at most ProbeTimeout and never more than half of what is left of
// ctx, so a hung lookup always leaves time for the send.
func (m *Manager) probe(ctx context.Context, s *session, chatID string) {
	budget := m.cfg.ProbeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(deadline)/2)
	}
	if budget <= 0 {
		return
	}

	// registered may still be written by an abandoned probe after a timeout.
	var registered atomic.Bool
	err := callWithTimeout(ctx, budget, func(cctx context.Context) error {
		ok, perr := s.transport.IsRegistered(cctx, chatID)
		registered.Store(ok)
		return perr
	})
	switch {
	case errors.Is(err, ErrProbeUnsupported):
	case err != nil:
		m.logger.Warn("registration probe failed",
			"operator_id", s.operatorID,
			"chat_id", redactChat(chatID),
			"error", err.Error(),
		)
	case !registered.Load():
		m.logger.Warn("recipient not registered on whatsapp",
			"operator_id", s.operatorID,
			"chat_id", redactChat(chatID),
		)
	}
}

// Disconnect tears down the operator's session and marks it inactive.
// Unknown operators are a no-op.
func (m *Manager) Disconnect(ctx context.Context, operatorID int64) error {
	unlock := m.lockOperator(operatorID)
	defer unlock()

	s := m.get(operatorID)
	if s == nil {
		return nil
	}
	m.remove(operatorID, s)
	m.teardown(s)

	if m.store == nil {
		return nil
	}
	if err := m.store.MarkSessionInactive(ctx, operatorID); err != nil {
		return fmt.Errorf("mark session inactive: %w", err)
	}
	m.logger.Info("messaging session disconnected", "operator_id", operatorID)
	return nil
}

// HandleEvent queues an inbound transport event for the operator's session.
// Events are applied asynchronously, in arrival order, by the session's own
// goroutine. An event carrying a SessionID is only accepted by the session
// with that id; untagged events go to whichever session is current.
func (m *Manager) HandleEvent(operatorID int64, ev types.SessionEvent) error {
	s := m.get(operatorID)
	if s == nil {
		m.logger.Warn("dropping event for unknown session",
			"operator_id", operatorID,
			"event", string(ev.Type),
		)
		return ErrUnknownSession
	}
	if ev.SessionID != "" && ev.SessionID != s.id {
		m.logger.Warn("dropping event for replaced session",
			"operator_id", operatorID,
			"event", string(ev.Type),
			"event_session_id", ev.SessionID,
			"session_id", s.id,
		)
		return ErrStaleSession
	}
	s.enqueue(ev)
	return nil
}

// Close shuts down every session and refuses further connects.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	all := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range all {
		m.teardown(s)
		if m.store != nil {
			if err := m.store.MarkSessionInactive(ctx, s.operatorID); err != nil {
				errs = append(errs, fmt.Errorf("operator %d: %w", s.operatorID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// apply runs on the session's goroutine.
func (m *Manager) apply(s *session, ev types.SessionEvent) {
	from := s.currentState()
	to, ok := transition(from, ev.Type)
	if !ok {
		m.logger.Warn("ignoring invalid session event",
			"operator_id", s.operatorID,
			"state", string(from),
			"event", string(ev.Type),
		)
		return
	}

	switch ev.Type {
	case types.EventPairingCode:
		s.set(to, &types.PairingArtifact{
			Code:         ev.PairingCode,
			ImageDataURL: ev.ImageDataURL,
			IssuedAt:     m.clock.Now(),
		})
		m.logger.Info("pairing code issued", "operator_id", s.operatorID)

	case types.EventReady:
		s.set(to, nil)
		if from != to {
			m.logger.Info("messaging session connected", "operator_id", s.operatorID)
		}
		m.persist(s.operatorID, func(ctx context.Context) error {
			return m.store.MarkSessionActive(ctx, s.operatorID, s.id)
		})

	case types.EventAuthFailure:
		s.set(to, nil)
		m.logger.Error("messaging session authentication failed",
			"operator_id", s.operatorID,
			"reason", ev.Reason,
		)

	case types.EventDisconnected:
		s.set(to, nil)
		m.logger.Warn("messaging session disconnected by transport",
			"operator_id", s.operatorID,
			"reason", ev.Reason,
		)
		m.persist(s.operatorID, func(ctx context.Context) error {
			return m.store.MarkSessionInactive(ctx, s.operatorID)
		})
	}
}

func (m *Manager) persist(operatorID int64, fn func(context.Context) error) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.StoreTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		m.logger.Error("failed to persist session state",
			"operator_id", operatorID,
			"error", err.Error(),
		)
	}
}

func (m *Manager) teardown(s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SendTimeout)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		m.logger.Warn("transport close failed",
			"operator_id", s.operatorID,
			"error", err.Error(),
		)
	}
}

func (m *Manager) get(operatorID int64) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[operatorID]
}

// remove deletes the entry only if it still points at s.
func (m *Manager) remove(operatorID int64, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[operatorID] == s {
		delete(m.sessions, operatorID)
	}
}

func (m *Manager) lockOperator(operatorID int64) func() {
	m.mu.Lock()
	l, ok := m.opLocks[operatorID]
	if !ok {
		l = &sync.Mutex{}
		m.opLocks[operatorID] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// callWithTimeout runs fn under a deadline and returns as soon as the
// deadline passes, even if fn ignores its context. A panic in fn is
// returned as an error.
func callWithTimeout(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("transport panicked: %v", r)
			}
		}()
		result <- fn(cctx)
	}()

	select {
	case err := <-result:
		return err
	case <-cctx.Done():
		return types.NewAppError(types.ErrCodeDeliveryTimeout, "transport call timed out", cctx.Err())
	}
}

// redactChat keeps the last four digits of a chat id for logs.
func redactChat(chatID string) string {
	if len(chatID) <= 4+len(chatSuffix) {
		return "***"
	}
	return "***" + chatID[len(chatID)-len(chatSuffix)-4:]
}
