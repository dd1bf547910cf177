package threads

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/nostr-git/ngit-core/pkg/event"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

type fakeClient struct {
	ports.NostrClient

	onEvent   func(nostr.Event)
	unsubbed  []string
}

func (f *fakeClient) Subscribe(ctx context.Context, filter nostr.Filter, onEvent func(nostr.Event)) (string, error) {
	f.onEvent = onEvent
	return "sub1", nil
}

func (f *fakeClient) Unsubscribe(ctx context.Context, subID string) error {
	f.unsubbed = append(f.unsubbed, subID)
	return nil
}

func TestSubscribeFiltersByAddressSuffix(t *testing.T) {
	kinds := event.DefaultKinds()
	client := &fakeClient{}
	s := New(client, nil, kinds)

	var received []nostr.Event
	_, err := s.Subscribe(context.Background(), "30617:aa:demo", func(evt nostr.Event) {
		received = append(received, evt)
	})
	require.NoError(t, err)
	require.NotNil(t, client.onEvent)

	client.onEvent(nostr.Event{Kind: kinds.Patch, Tags: nostr.Tags{{"a", "30617:bb:demo"}}})
	client.onEvent(nostr.Event{Kind: kinds.Patch, Tags: nostr.Tags{{"a", "30617:aa:other"}}})
	require.Len(t, received, 1)
}

func TestCollectParticipantsGathersPubkeysAndPTags(t *testing.T) {
	kinds := event.DefaultKinds()
	client := &fakeClient{}
	s := New(client, nil, kinds)

	go func() {
		// Allow Subscribe to register onEvent before firing test events.
		for client.onEvent == nil {
			time.Sleep(time.Millisecond)
		}
		client.onEvent(nostr.Event{
			Kind:   kinds.Patch,
			PubKey: "alice",
			Tags:   nostr.Tags{{"a", "30617:aa:demo"}, {"e", "root1"}, {"p", "bob"}},
		})
	}()

	participants, err := s.CollectParticipants(context.Background(), "30617:aa:demo", "root1", 50*time.Millisecond)
	require.NoError(t, err)
	require.Contains(t, participants, "alice")
	require.Contains(t, participants, "bob")
}

func TestRepoIDFromAddress(t *testing.T) {
	require.Equal(t, "demo", repoIDFromAddress("30617:aa:demo"))
}
