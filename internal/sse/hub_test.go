package sse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func receive(t *testing.T, client *Client) Event {
	t.Helper()
	select {
	case msg, ok := <-client.Send:
		require.True(t, ok, "send channel closed")
		var event Event
		require.NoError(t, json.Unmarshal(msg, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHub_RegisterClient(t *testing.T) {
	hub := startHub(t)
	projectID := uuid.New()
	client := NewClient(uuid.New(), projectID)

	hub.Register(client)
	time.Sleep(10 * time.Millisecond)

	assert.True(t, hub.Subscribed(client.ID, projectID))
	assert.False(t, hub.Subscribed(client.ID, uuid.New()))
}

func TestHub_UnregisterClient_ClosesSendChannel(t *testing.T) {
	hub := startHub(t)
	client := NewClient(uuid.New(), uuid.New())

	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestHub_UnregisterNonexistentClient(t *testing.T) {
	hub := startHub(t)
	client := NewClient(uuid.New(), uuid.New())

	assert.NotPanics(t, func() {
		hub.Unregister(client)
		time.Sleep(10 * time.Millisecond)
	})
}

func TestHub_Publish_OnlyToProjectSubscribers(t *testing.T) {
	hub := startHub(t)
	projectID := uuid.New()
	subscriber := NewClient(uuid.New(), projectID)
	outsider := NewClient(uuid.New(), uuid.New())

	hub.Register(subscriber)
	hub.Register(outsider)

	hub.Publish(projectID, "invite_created", map[string]string{"tool_key": "mood_boards"})

	event := receive(t, subscriber)
	assert.Equal(t, "invite_created", event.Type)
	assert.Equal(t, "mood_boards", event.Data.(map[string]any)["tool_key"])

	select {
	case <-outsider.Send:
		t.Fatal("outsider should not receive project events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Publish_FullBufferDropped(t *testing.T) {
	hub := startHub(t)
	projectID := uuid.New()
	client := &Client{
		ID:       "slow",
		UserID:   uuid.New(),
		Projects: map[uuid.UUID]bool{projectID: true},
		Send:     make(chan []byte, 1),
	}
	hub.Register(client)

	hub.Publish(projectID, "access_granted", nil)
	hub.Publish(projectID, "access_granted", nil)
	time.Sleep(50 * time.Millisecond)

	assert.Len(t, client.Send, 1)
}

func TestHub_PublishRevocation_DropsRevokedUser(t *testing.T) {
	hub := startHub(t)
	projectID := uuid.New()
	bob := NewClient(uuid.New(), projectID)
	owner := NewClient(uuid.New(), projectID)
	hub.Register(bob)
	hub.Register(owner)

	hub.PublishRevocation(projectID, bob.UserID, "access_revoked", map[string]string{"user_id": bob.UserID.String()})

	assert.Equal(t, "access_revoked", receive(t, bob).Type)
	assert.Equal(t, "access_revoked", receive(t, owner).Type)
	assert.False(t, hub.Subscribed(bob.ID, projectID))
	assert.True(t, hub.Subscribed(owner.ID, projectID))

	hub.Publish(projectID, "invite_created", nil)
	assert.Equal(t, "invite_created", receive(t, owner).Type)
	select {
	case <-bob.Send:
		t.Fatal("revoked user should not receive further events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Stop(t *testing.T) {
	hub := NewHub()
	finished := make(chan struct{})
	go func() {
		hub.Run()
		close(finished)
	}()

	hub.Stop()
	hub.Stop()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}
