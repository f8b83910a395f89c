package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/maturity-engine/internal/models"
)

func TestHubFiltersByOrganization(t *testing.T) {
	hub := NewHub()
	global := hub.Subscribe("")
	orgA := hub.Subscribe("org-a")
	defer global.Close()
	defer orgA.Close()

	evtB, err := models.NewEvent(models.EventAssessmentCompleted, "org-b", "", map[string]string{"id": "1"})
	require.NoError(t, err)
	evtA, err := models.NewEvent(models.EventAssessmentCompleted, "org-a", "", map[string]string{"id": "2"})
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), evtB))
	require.NoError(t, hub.Publish(context.Background(), evtA))

	assert.Len(t, global.C, 2)
	require.Len(t, orgA.C, 1)
	got := <-orgA.C
	assert.JSONEq(t, `{"id":"2"}`, string(got.Payload))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("")
	defer sub.Close()

	evt := models.Event{Type: models.EventFrameworkCleared}
	for i := 0; i < subscriptionBuffer+5; i++ {
		require.NoError(t, hub.Publish(context.Background(), evt))
	}
	assert.Len(t, sub.C, subscriptionBuffer)
}

func TestSubscriptionCloseIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe("")
	assert.Equal(t, 1, hub.Count())

	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Count())

	_, open := <-sub.C
	assert.False(t, open)
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe("")
	b := hub.Subscribe("org-a")

	hub.Close()
	assert.Equal(t, 0, hub.Count())

	_, open := <-a.C
	assert.False(t, open)
	_, open = <-b.C
	assert.False(t, open)

	// Closing again after the hub did is harmless
	a.Close()
}
