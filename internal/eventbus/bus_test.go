package eventbus_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/VampireTeeth/chatrelay/internal/eventbus"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := eventbus.NewInMemoryBus(8)

	var connected atomic.Int32
	bus.Subscribe(eventbus.EventSessionConnected, func(event *eventbus.Event) {
		assert.Equal(t, "s1", event.SessionID)
		connected.Add(1)
	})
	bus.Subscribe(eventbus.EventRoomCreated, func(event *eventbus.Event) {
		t.Error("room handler must not see session events")
	})

	bus.Publish(eventbus.NewEvent(eventbus.EventSessionConnected, "s1", "Main"))
	assert.Equal(t, int32(1), connected.Load())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := eventbus.NewInMemoryBus(8)

	var calls atomic.Int32
	id := bus.Subscribe(eventbus.EventRoomCreated, func(*eventbus.Event) {
		calls.Add(1)
	})

	bus.Publish(eventbus.NewEvent(eventbus.EventRoomCreated, "", "lobby"))
	bus.Unsubscribe(id)
	bus.Publish(eventbus.NewEvent(eventbus.EventRoomCreated, "", "attic"))

	assert.Equal(t, int32(1), calls.Load())
}

func TestPublishAsyncProcessedByRunLoop(t *testing.T) {
	bus := eventbus.NewInMemoryBus(8)
	bus.Start(context.Background())
	defer bus.Stop()

	var calls atomic.Int32
	bus.Subscribe(eventbus.EventSessionDisconnected, func(*eventbus.Event) {
		calls.Add(1)
	})

	bus.PublishAsync(eventbus.NewEvent(eventbus.EventSessionDisconnected, "s2", "Main"))

	assert.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}
