package liveevents

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/lgndcraft2/giving-tree/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesGlobalAndWishStreams(t *testing.T) {
	hub := NewHub()
	wishID := snowflake.ID(42)

	all, _, err := hub.Subscribe(StreamAll)
	require.NoError(t, err)
	defer all.Close()
	one, _, err := hub.Subscribe(WishStream(wishID))
	require.NoError(t, err)
	defer one.Close()
	other, _, err := hub.Subscribe(WishStream(7))
	require.NoError(t, err)
	defer other.Close()

	hub.Publish(paymentdomain.DonationEvent{WishID: wishID, Amount: "40.00"})

	assert.Equal(t, "40.00", (<-all.Events()).Amount)
	assert.Equal(t, "40.00", (<-one.Events()).Amount)
	assert.Empty(t, other.Events())
}

func TestSubscribeReturnsBacklog(t *testing.T) {
	hub := NewHub()
	first, _, err := hub.Subscribe(StreamAll)
	require.NoError(t, err)

	for i := 0; i < DefaultBufferSize+5; i++ {
		hub.Publish(paymentdomain.DonationEvent{WishID: snowflake.ID(i + 1)})
	}
	first.Close()

	second, backlog, err := hub.Subscribe(StreamAll)
	require.NoError(t, err)
	defer second.Close()
	require.Len(t, backlog, DefaultBufferSize)
	assert.Equal(t, snowflake.ID(6), backlog[0].WishID)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe(StreamAll)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultSubscriberBuffer*3; i++ {
		hub.Publish(paymentdomain.DonationEvent{WishID: 1})
	}
	assert.Len(t, sub.Events(), DefaultSubscriberBuffer)
}

func TestNilHubAndInvalidStream(t *testing.T) {
	var hub *Hub
	hub.Publish(paymentdomain.DonationEvent{})
	_, _, err := hub.Subscribe(StreamAll)
	assert.ErrorIs(t, err, ErrHubUnavailable)

	_, _, err = NewHub().Subscribe("  ")
	assert.ErrorIs(t, err, ErrInvalidStream)
}
