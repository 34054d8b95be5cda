package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/mindcare-directory/internal/domain/entities"
	"github.com/zatekoja/mindcare-directory/internal/domain/providers"
	redisclient "github.com/zatekoja/mindcare-directory/internal/infrastructure/clients/redis"
)

func newTestBus(t *testing.T) *RedisEventBus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisEventBus(redisclient.NewFromRedis(rdb))
}

func receive(t *testing.T, ch <-chan *entities.DomainEvent) *entities.DomainEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed before an event arrived")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.Subscribe(ctx, providers.EventChannelBookings)
	require.NoError(t, err)

	record := &entities.BookingRecord{
		ID:         "b-1",
		ProviderID: "prov-1",
		UserID:     "user-1",
		LocationID: "loc-1",
		Date:       entities.NewCalendarDate(2024, time.March, 15),
		TimeSlot:   "09:30",
		CreatedAt:  time.Date(2024, time.March, 13, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, bus.Publish(ctx, providers.EventChannelBookings, entities.NewBookingConfirmedEvent(record)))

	ev := receive(t, events)
	assert.Equal(t, "b-1", ev.ID)
	assert.Equal(t, entities.DomainEventBookingConfirmed, ev.Type)
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, "2024-03-15", ev.Data["date"])
	assert.Equal(t, "09:30", ev.Data["time_slot"])
}

func TestRedisEventBus_SubscriberContextEnds(t *testing.T) {
	bus := newTestBus(t)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx, providers.EventChannelContacts)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel was not closed")
	}
}

func TestRedisEventBus_Close(t *testing.T) {
	bus := newTestBus(t)

	events, err := bus.Subscribe(context.Background(), providers.GetUserChannel("user-1"))
	require.NoError(t, err)

	require.NoError(t, bus.Close())

	_, ok := <-events
	assert.False(t, ok)

	_, err = bus.Subscribe(context.Background(), providers.EventChannelBookings)
	assert.Error(t, err)
}
