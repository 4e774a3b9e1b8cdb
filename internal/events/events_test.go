package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/require"

	"github.com/merl-labs/clob/pkg/types"
)

func TestBusPublishRoutesByEventKind(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer pubSub.Close()

	bus := NewBusWithPublisher(pubSub, "clob.events.", nil)

	messages, err := pubSub.Subscribe(context.Background(), "clob.events."+string(types.EventOrderFilled))
	require.NoError(t, err)

	trader := types.TraderKey{1}
	evt := types.Event{
		Kind:      types.EventOrderFilled,
		TraceID:   "trace-1",
		Market:    trader,
		Timestamp: time.Unix(0, 0),
		Payload:   types.OrderFilledPayload{Maker: trader, BaseFilled: 10},
	}
	require.NoError(t, bus.Publish(context.Background(), evt))

	select {
	case msg := <-messages:
		require.Equal(t, "trace-1", msg.Metadata.Get("trace_id"))
		var decoded types.Event
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		require.Equal(t, types.EventOrderFilled, decoded.Kind)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestBusCloseClosesPublisher(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	bus := NewBusWithPublisher(pubSub, "clob.events.", nil)
	require.NoError(t, bus.Close())
}
