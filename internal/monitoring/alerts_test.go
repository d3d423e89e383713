package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotwatch/internal/types"
)

func TestParseScheduledTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2026-03-10T14:30:00Z", time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC), true},
		{"2026-03-10T20:00:00+05:30", time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC), true},
		{"2026-03-10T14:30", time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC), true},
		{"  2026-03-10T14:30 ", time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC), true},
		{"10/03/2026 14:30", time.Time{}, false},
		{"tomorrow", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScheduledTime(tt.in)
			if !tt.ok {
				assert.True(t, types.IsCode(err, types.ErrCodeValidationInvalidTime))
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestCreateAlert_Scheduled(t *testing.T) {
	op := int64(3)
	store := newFakeStore(plotContact(&op))
	notifier := &fakeNotifier{}

	a, err := newEngine(store, notifier).CreateAlert(context.Background(), CreateAlertInput{
		PlotID:        10,
		Message:       "Apply fertilizer",
		ScheduledTime: "2026-03-11T06:00",
		CreatedBy:     &op,
	})
	require.NoError(t, err)

	assert.Equal(t, types.AlertStatusPending, a.Status)
	assert.Equal(t, types.AlertTypeGeneral, a.Type)
	assert.Equal(t, types.PriorityMedium, a.Priority)
	require.NotNil(t, a.ScheduledTime)
	assert.Equal(t, time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC), *a.ScheduledTime)
	assert.Empty(t, notifier.requests)
	assert.Len(t, store.alerts, 1)
}

func TestCreateAlert_ImmediateWithCreatorStoredSent(t *testing.T) {
	op := int64(3)
	store := newFakeStore(plotContact(&op))
	notifier := &fakeNotifier{}

	a, err := newEngine(store, notifier).CreateAlert(context.Background(), CreateAlertInput{
		PlotID:    10,
		Message:   "Check drip lines",
		Type:      types.AlertTypeIrrigation,
		Priority:  types.PriorityHigh,
		CreatedBy: &op,
	})
	require.NoError(t, err)

	assert.Equal(t, types.AlertStatusSent, a.Status)
	assert.Nil(t, a.ScheduledTime)
	require.Len(t, notifier.requests, 1)
	assert.Equal(t, "🌱 Alert for Rice Field A: Check drip lines", notifier.requests[0].Message)
	assert.Equal(t, types.AllChannels, notifier.requests[0].Channels)
	assert.Equal(t, &op, notifier.requests[0].OperatorID)
}

func TestCreateAlert_ImmediateWithoutCreatorStoredActive(t *testing.T) {
	store := newFakeStore(plotContact(nil))
	notifier := &fakeNotifier{}

	a, err := newEngine(store, notifier).CreateAlert(context.Background(), CreateAlertInput{
		PlotID:  10,
		Message: "Frost expected tonight",
	})
	require.NoError(t, err)

	assert.Equal(t, types.AlertStatusActive, a.Status)
	require.Len(t, notifier.requests, 1)
	assert.Equal(t, []types.ChannelType{types.ChannelEmail, types.ChannelSMS}, notifier.requests[0].Channels)
}

func TestCreateAlert_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   CreateAlertInput
		code types.ErrorCode
	}{
		{"missing message", CreateAlertInput{PlotID: 10, Message: "   "}, types.ErrCodeValidationMissingField},
		{"missing plot", CreateAlertInput{Message: "x"}, types.ErrCodeValidationMissingField},
		{"bad priority", CreateAlertInput{PlotID: 10, Message: "x", Priority: "urgent"}, types.ErrCodeValidationInvalidEnum},
		{"bad type", CreateAlertInput{PlotID: 10, Message: "x", Type: "pests"}, types.ErrCodeValidationInvalidEnum},
		{"bad time", CreateAlertInput{PlotID: 10, Message: "x", ScheduledTime: "soon"}, types.ErrCodeValidationInvalidTime},
		{"unknown plot", CreateAlertInput{PlotID: 99, Message: "x"}, types.ErrCodeNotFoundPlot},
		{"unknown plot scheduled", CreateAlertInput{PlotID: 99, Message: "x", ScheduledTime: "2026-03-11T06:00"}, types.ErrCodeNotFoundPlot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(plotContact(nil))
			notifier := &fakeNotifier{}

			_, err := newEngine(store, notifier).CreateAlert(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
			assert.Empty(t, store.alerts)
			assert.Empty(t, notifier.requests)
		})
	}
}
