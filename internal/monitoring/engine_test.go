package monitoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotwatch/internal/messaging"
	"plotwatch/internal/notifications/core"
	"plotwatch/internal/notifications/whatsapp"
	"plotwatch/internal/types"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return fixedNow }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- store fakes ---

type fakeStore struct {
	mu       sync.Mutex
	contacts map[int64]*types.PlotContact
	readings []types.SensorReading
	scores   []int
	alerts   []*types.Alert
	nextID   int64
	alertErr error
}

func newFakeStore(contacts ...*types.PlotContact) *fakeStore {
	s := &fakeStore{contacts: make(map[int64]*types.PlotContact)}
	for _, c := range contacts {
		s.contacts[c.Plot.ID] = c
	}
	return s
}

func (s *fakeStore) GetContact(_ context.Context, plotID int64) (*types.PlotContact, error) {
	c, ok := s.contacts[plotID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundPlot, fmt.Sprintf("plot %d not found", plotID), nil)
	}
	return c, nil
}

func (s *fakeStore) Insert(_ context.Context, r types.SensorReading, score int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	s.scores = append(s.scores, score)
	return int64(len(s.readings)), nil
}

func (s *fakeStore) Create(_ context.Context, a *types.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alertErr != nil {
		return s.alertErr
	}
	s.nextID++
	a.ID = s.nextID
	a.CreatedAt = fixedNow
	s.alerts = append(s.alerts, a)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	requests []core.DeliveryRequest
}

func (n *fakeNotifier) Deliver(_ context.Context, req core.DeliveryRequest) core.DeliveryReport {
	n.mu.Lock()
	n.requests = append(n.requests, req)
	n.mu.Unlock()
	results := make(map[types.ChannelType]core.ChannelResult)
	for _, ch := range req.Channels {
		results[ch] = core.ChannelResult{Attempted: true, Success: true}
	}
	return core.DeliveryReport{ReferenceID: "ref", Results: results}
}

func plotContact(operatorID *int64) *types.PlotContact {
	return &types.PlotContact{
		Plot:  types.Plot{ID: 10, Name: "Rice Field A", Species: "Rice", OwnerID: 20, OperatorID: operatorID},
		Owner: types.RecipientAddresses{Name: "Ravi", WhatsApp: "9876543210", Email: "ravi@example.com", Phone: "9876543210"},
	}
}

func stressedReading() types.SensorReading {
	return types.SensorReading{
		PlotID:       10,
		SoilMoisture: types.Float(25),
		Temperature:  types.Float(40),
		SoilPH:       types.Float(5.0),
		NutrientN:    types.Float(50),
		NutrientP:    types.Float(50),
		NutrientK:    types.Float(50),
	}
}

func newEngine(store *fakeStore, notifier Notifier) *Engine {
	return NewEngine(EngineConfig{
		Readings: store,
		Alerts:   store,
		Plots:    store,
		Notifier: notifier,
		Clock:    fixedClock{},
		Logger:   discardLogger(),
	})
}

// --- EvaluateReading ---

func TestEvaluateReading(t *testing.T) {
	e := newEngine(newFakeStore(), &fakeNotifier{})

	eval, err := e.EvaluateReading(stressedReading(), "rice")
	require.NoError(t, err)
	// moisture <30 (-30), temp >38 (-20), pH <=5.0 band (-10)
	assert.Equal(t, 40, eval.Health.Score)
	assert.Equal(t, types.HealthCritical, eval.Health.Status)
	require.Len(t, eval.Drafts, 3)
	assert.Equal(t, types.AlertTypeIrrigation, eval.Drafts[0].Type)
	assert.Equal(t, types.AlertTypeHeatStress, eval.Drafts[1].Type)
	assert.Equal(t, types.AlertTypeSoilCorrection, eval.Drafts[2].Type)
	assert.Contains(t, eval.Recommendation, "Rice")
}

func TestEvaluateReading_NeutralYieldsNoDrafts(t *testing.T) {
	e := newEngine(newFakeStore(), &fakeNotifier{})
	r := types.SensorReading{
		PlotID: 10, SoilMoisture: types.Float(60), Temperature: types.Float(25), SoilPH: types.Float(6.5),
		NutrientN: types.Float(50), NutrientP: types.Float(50), NutrientK: types.Float(50),
	}

	eval, err := e.EvaluateReading(r, "")
	require.NoError(t, err)
	assert.Equal(t, 100, eval.Health.Score)
	assert.NotNil(t, eval.Drafts)
	assert.Empty(t, eval.Drafts)
	assert.Empty(t, eval.Recommendation)
}

func TestEvaluateReading_RejectsMissingFields(t *testing.T) {
	e := newEngine(newFakeStore(), &fakeNotifier{})
	r := stressedReading()
	r.SoilPH = nil

	_, err := e.EvaluateReading(r, "")
	assert.True(t, types.IsCode(err, types.ErrCodeValidationMissingField))
}

// --- RecordReading ---

func TestRecordReading_PersistsAndDispatches(t *testing.T) {
	op := int64(3)
	store := newFakeStore(plotContact(&op))
	notifier := &fakeNotifier{}

	res, err := newEngine(store, notifier).RecordReading(context.Background(), stressedReading())
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.LogID)
	assert.Equal(t, []int{40}, store.scores)
	assert.Equal(t, fixedNow, store.readings[0].RecordedAt)

	require.Len(t, res.Created, 3)
	for _, a := range res.Created {
		assert.Equal(t, types.AlertStatusSent, a.Status)
		assert.Nil(t, a.CreatedBy)
	}

	require.Len(t, notifier.requests, 3)
	assert.Equal(t, "🚨 [HIGH] Rice Field A: Irrigation needed: Soil moisture is below 30%", notifier.requests[0].Message)
	assert.Equal(t, types.AllChannels, notifier.requests[0].Channels)
	assert.Equal(t, &op, notifier.requests[0].OperatorID)
}

func TestRecordReading_NoOperatorSkipsWhatsApp(t *testing.T) {
	store := newFakeStore(plotContact(nil))
	notifier := &fakeNotifier{}

	_, err := newEngine(store, notifier).RecordReading(context.Background(), stressedReading())
	require.NoError(t, err)
	require.NotEmpty(t, notifier.requests)
	for _, req := range notifier.requests {
		assert.NotContains(t, req.Channels, types.ChannelWhatsApp)
	}
}

func TestRecordReading_UnknownPlot(t *testing.T) {
	store := newFakeStore()

	_, err := newEngine(store, &fakeNotifier{}).RecordReading(context.Background(), stressedReading())
	assert.True(t, types.IsCode(err, types.ErrCodeNotFoundPlot))
	assert.Empty(t, store.readings)
}

func TestRecordReading_AlertStoreFailureDoesNotFailReading(t *testing.T) {
	store := newFakeStore(plotContact(nil))
	store.alertErr = errors.New("insert failed")
	notifier := &fakeNotifier{}

	res, err := newEngine(store, notifier).RecordReading(context.Background(), stressedReading())
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, store.readings, 1)
	assert.Empty(t, notifier.requests, "an alert that was not stored is not sent")
}

// storedCountNotifier records how many alerts were stored when each
// delivery started.
type storedCountNotifier struct {
	fakeNotifier
	store  *fakeStore
	counts []int
}

func (n *storedCountNotifier) Deliver(ctx context.Context, req core.DeliveryRequest) core.DeliveryReport {
	n.store.mu.Lock()
	n.counts = append(n.counts, len(n.store.alerts))
	n.store.mu.Unlock()
	return n.fakeNotifier.Deliver(ctx, req)
}

func TestRecordReading_StoresRuleAlertBeforeSending(t *testing.T) {
	store := newFakeStore(plotContact(nil))
	notifier := &storedCountNotifier{store: store}

	_, err := newEngine(store, notifier).RecordReading(context.Background(), stressedReading())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, notifier.counts)
}

// --- end to end through the session manager ---

type countingTransport struct {
	mu    sync.Mutex
	sends []string
}

func (t *countingTransport) Start(context.Context) error { return nil }
func (t *countingTransport) Send(_ context.Context, chatID, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends = append(t.sends, chatID)
	return nil
}
func (t *countingTransport) IsRegistered(context.Context, string) (bool, error) {
	return false, messaging.ErrProbeUnsupported
}
func (t *countingTransport) Close(context.Context) error { return nil }

func (t *countingTransport) sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sends...)
}

type okChannel struct{ ch types.ChannelType }

func (c okChannel) Type() types.ChannelType                   { return c.ch }
func (c okChannel) Deliver(context.Context, core.Delivery) error { return nil }

func TestRecordReading_EndToEndWithConnectedOperator(t *testing.T) {
	op := int64(3)
	transport := &countingTransport{}
	factory := messaging.TransportFactoryFunc(func(messaging.Binding, messaging.EventSink) (messaging.Transport, error) {
		return transport, nil
	})
	manager := messaging.NewManager(factory, nil, fixedClock{}, nil, messaging.Config{})
	t.Cleanup(func() { _ = manager.Close(context.Background()) })

	_, err := manager.Connect(context.Background(), op)
	require.NoError(t, err)
	require.NoError(t, manager.HandleEvent(op, types.SessionEvent{Type: types.EventReady}))
	require.Eventually(t, func() bool { return manager.Status(op).Connected }, time.Second, 5*time.Millisecond)

	dispatcher := core.NewDispatcher(nil, nil, time.Second,
		whatsapp.NewChannel(manager),
		okChannel{types.ChannelEmail},
		okChannel{types.ChannelSMS},
	)
	store := newFakeStore(plotContact(&op))

	res, err := newEngine(store, dispatcher).RecordReading(context.Background(), stressedReading())
	require.NoError(t, err)

	assert.Len(t, res.Drafts, 3)
	assert.Len(t, store.alerts, 3)
	sends := transport.sent()
	require.Len(t, sends, 3)
	assert.Equal(t, "919876543210@c.us", sends[0])
}
