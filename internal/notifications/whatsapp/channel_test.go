package whatsapp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plotwatch/internal/notifications/core"
	"plotwatch/internal/types"
)

type sendCall struct {
	operatorID       int64
	address, message string
}

type fakeSender struct {
	ok    bool
	calls []sendCall
}

func (f *fakeSender) SendAs(_ context.Context, operatorID int64, address, message string) bool {
	f.calls = append(f.calls, sendCall{operatorID, address, message})
	return f.ok
}

func TestChannel_NoOperatorContext(t *testing.T) {
	sender := &fakeSender{ok: true}
	err := NewChannel(sender).Deliver(context.Background(), core.Delivery{Address: "9876543210", Message: "hi"})

	assert.ErrorIs(t, err, core.ErrNoOperatorContext)
	assert.Empty(t, sender.calls)
}

func TestChannel_Success(t *testing.T) {
	sender := &fakeSender{ok: true}
	op := int64(42)
	ch := NewChannel(sender)

	require.NoError(t, ch.Deliver(context.Background(), core.Delivery{Address: "9876543210", Message: "hi", OperatorID: &op}))
	assert.Equal(t, types.ChannelWhatsApp, ch.Type())
	assert.Equal(t, []sendCall{{42, "9876543210", "hi"}}, sender.calls)
}

func TestChannel_SendRejected(t *testing.T) {
	sender := &fakeSender{ok: false}
	op := int64(42)

	err := NewChannel(sender).Deliver(context.Background(), core.Delivery{Address: "9876543210", Message: "hi", OperatorID: &op})

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCodeDeliveryFailed))
	assert.Len(t, sender.calls, 1)
}
