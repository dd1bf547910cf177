package gitprovider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nostr-git/ngit-core/pkg/ports"
)

// fakeProvider counts calls so tests can assert cache hit/miss behavior
// without a real Git repository.
type fakeProvider struct {
	ports.GitProvider // embed nil: only the methods under test are implemented

	listRefsCalls int
	refs          []ports.RefEntry

	writeRefCalls int
}

func (f *fakeProvider) ListRefs(ctx context.Context, dir string) ([]ports.RefEntry, error) {
	f.listRefsCalls++
	return f.refs, nil
}

func (f *fakeProvider) WriteRef(ctx context.Context, dir, name, value string) error {
	f.writeRefCalls++
	return nil
}

func TestCachedListRefsHitsOnceWithinTTL(t *testing.T) {
	fake := &fakeProvider{refs: []ports.RefEntry{{Name: "refs/heads/main", OID: "abc"}}}
	c := New(fake, Options{CacheMaxAgeMs: 60_000})

	_, err := c.ListRefs(context.Background(), "/repo")
	require.NoError(t, err)
	_, err = c.ListRefs(context.Background(), "/repo")
	require.NoError(t, err)

	require.Equal(t, 1, fake.listRefsCalls)
}

func TestCachedWriteInvalidatesEntry(t *testing.T) {
	fake := &fakeProvider{refs: []ports.RefEntry{{Name: "refs/heads/main", OID: "abc"}}}
	c := New(fake, Options{CacheMaxAgeMs: 60_000})

	_, _ = c.ListRefs(context.Background(), "/repo")
	require.NoError(t, c.WriteRef(context.Background(), "/repo", "refs/heads/main", "def"))
	_, _ = c.ListRefs(context.Background(), "/repo")

	require.Equal(t, 2, fake.listRefsCalls)
	require.Equal(t, 1, fake.writeRefCalls)
}

func TestCachedModeOffBypassesCache(t *testing.T) {
	fake := &fakeProvider{refs: []ports.RefEntry{{Name: "refs/heads/main", OID: "abc"}}}
	c := New(fake, Options{Mode: ModeOff})

	_, _ = c.ListRefs(context.Background(), "/repo")
	_, _ = c.ListRefs(context.Background(), "/repo")

	require.Equal(t, 2, fake.listRefsCalls)
}

func TestCachedEntryExpiresAfterTTL(t *testing.T) {
	fake := &fakeProvider{refs: []ports.RefEntry{{Name: "refs/heads/main", OID: "abc"}}}
	c := New(fake, Options{CacheMaxAgeMs: 1})

	_, _ = c.ListRefs(context.Background(), "/repo")
	time.Sleep(5 * time.Millisecond)
	_, _ = c.ListRefs(context.Background(), "/repo")

	require.Equal(t, 2, fake.listRefsCalls)
}
