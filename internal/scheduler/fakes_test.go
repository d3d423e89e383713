package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// fakeAlertStore keeps alerts in memory with the same conditional MarkSent
// semantics as the SQL repository.
type fakeAlertStore struct {
	mu       sync.Mutex
	alerts   map[int64]*types.Alert
	contacts map[int64]*types.PlotContact
	marks    map[int64]int
	listErr  error
	markErr  error
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{
		alerts:   make(map[int64]*types.Alert),
		contacts: make(map[int64]*types.PlotContact),
		marks:    make(map[int64]int),
	}
}

func (s *fakeAlertStore) add(a types.Alert, c *types.PlotContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.ID] = &a
	if c != nil {
		s.contacts[a.PlotID] = c
	}
}

func (s *fakeAlertStore) ListDue(_ context.Context, now time.Time) ([]types.DueAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []types.DueAlert
	for _, a := range s.alerts {
		if a.Status != types.AlertStatusPending || a.ScheduledTime == nil || a.ScheduledTime.After(now) {
			continue
		}
		out = append(out, types.DueAlert{Alert: *a, Contact: s.contacts[a.PlotID]})
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := *out[i].Alert.ScheduledTime, *out[j].Alert.ScheduledTime
		if ti.Equal(tj) {
			return out[i].Alert.ID < out[j].Alert.ID
		}
		return ti.Before(tj)
	})
	return out, nil
}

func (s *fakeAlertStore) MarkSent(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	a, ok := s.alerts[id]
	if !ok || a.Status != types.AlertStatusPending {
		return false, nil
	}
	a.Status = types.AlertStatusSent
	s.marks[id]++
	return true, nil
}

func (s *fakeAlertStore) status(id int64) types.AlertStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts[id].Status
}

func (s *fakeAlertStore) markCount(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marks[id]
}

// fakeNotifier records every request. Channels listed in fail are reported
// as failed; all others succeed. When gate is set, Deliver blocks on it.
type fakeNotifier struct {
	mu       sync.Mutex
	requests []core.DeliveryRequest
	fail     map[types.ChannelType]bool
	gate     chan struct{}
	entered  chan struct{}
}

func (n *fakeNotifier) Deliver(_ context.Context, req core.DeliveryRequest) core.DeliveryReport {
	if n.entered != nil {
		select {
		case n.entered <- struct{}{}:
		default:
		}
	}
	if n.gate != nil {
		<-n.gate
	}
	n.mu.Lock()
	n.requests = append(n.requests, req)
	n.mu.Unlock()

	report := core.DeliveryReport{
		ReferenceID: "ref",
		Results:     make(map[types.ChannelType]core.ChannelResult),
	}
	for _, ch := range req.Channels {
		if n.fail[ch] {
			report.Results[ch] = core.ChannelResult{Attempted: true, Reason: core.ReasonFailed}
			continue
		}
		if ch == types.ChannelWhatsApp && req.OperatorID == nil {
			report.Results[ch] = core.ChannelResult{Reason: core.ReasonNoOperatorContext}
			continue
		}
		report.Results[ch] = core.ChannelResult{Attempted: true, Success: true}
	}
	return report
}

func (n *fakeNotifier) calls() []core.DeliveryRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.DeliveryRequest(nil), n.requests...)
}

// fakeReportStore filters schedules with ReportSchedule.IsDue, which the
// SQL query mirrors.
type fakeReportStore struct {
	mu        sync.Mutex
	recipient []types.ReportRecipient
	updated   map[int64]time.Time
	updateErr error
}

func (s *fakeReportStore) ListDue(_ context.Context, now time.Time) ([]types.ReportRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.ReportRecipient
	for _, r := range s.recipient {
		if r.Schedule.IsDue(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeReportStore) UpdateLastSent(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.updated == nil {
		s.updated = make(map[int64]time.Time)
	}
	s.updated[id] = at
	return nil
}

type fakePlotCounter struct {
	counts map[int64]int
	err    error
}

func (c fakePlotCounter) CountByOwner(_ context.Context, userID int64) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return c.counts[userID], nil
}

type tickMetrics struct {
	mu      sync.Mutex
	ran     map[string]int
	skipped map[string]int
}

func newTickMetrics() *tickMetrics {
	return &tickMetrics{ran: map[string]int{}, skipped: map[string]int{}}
}

func (m *tickMetrics) RecordDelivery(context.Context, types.ChannelType, core.MetricResult) {}
func (m *tickMetrics) RecordLatency(context.Context, types.ChannelType, time.Duration)     {}
func (m *tickMetrics) RecordTick(_ context.Context, kind string, skipped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if skipped {
		m.skipped[kind]++
		return
	}
	m.ran[kind]++
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var errStore = errors.New("store unavailable")
