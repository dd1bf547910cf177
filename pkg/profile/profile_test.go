package profile

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/nostr-git/ngit-core/pkg/event"
)

func TestMintForGeneratesSignedProfile(t *testing.T) {
	m := New(event.DefaultKinds())

	minted, err := m.MintFor("github", "alice", nostr.Now())
	require.NoError(t, err)
	require.NotEmpty(t, minted.Pubkey)
	require.NotEmpty(t, minted.Event.Sig)
	require.Equal(t, event.DefaultKinds().Profile, minted.Event.Kind)

	parsed := event.ParseProfile(minted.Event)
	require.Contains(t, parsed.Content.Name, "alice")
	require.Contains(t, parsed.Content.Name, "github")
	require.True(t, parsed.Imported)
}

func TestMintForMemoizesPerPlatformUsername(t *testing.T) {
	m := New(event.DefaultKinds())

	first, err := m.MintFor("github", "alice", nostr.Now())
	require.NoError(t, err)
	second, err := m.MintFor("github", "alice", nostr.Now())
	require.NoError(t, err)

	require.Equal(t, first.Pubkey, second.Pubkey)

	other, err := m.MintFor("gitlab", "alice", nostr.Now())
	require.NoError(t, err)
	require.NotEqual(t, first.Pubkey, other.Pubkey)
}

func TestLookupReturnsFalseBeforeMint(t *testing.T) {
	m := New(event.DefaultKinds())
	_, ok := m.Lookup("github", "bob")
	require.False(t, ok)
}
