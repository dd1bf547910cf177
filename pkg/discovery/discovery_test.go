package discovery

import (
	"context"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/event"
)

type fakeRepoKey struct {
	addr, name string
}

func (k fakeRepoKey) Address() string { return k.addr }
func (k fakeRepoKey) Name() string    { return k.name }

type fakeEventIO struct {
	byFilter map[string][]nostr.Event // keyed by "d:"+d or "a:"+a
}

func (f *fakeEventIO) FetchEvents(ctx context.Context, filters []nostr.Filter) ([]nostr.Event, error) {
	for _, filt := range filters {
		if ds, ok := filt.Tags["d"]; ok && len(ds) > 0 {
			return f.byFilter["d:"+ds[0]], nil
		}
		if as, ok := filt.Tags["a"]; ok && len(as) > 0 {
			return f.byFilter["a:"+as[0]], nil
		}
	}
	return nil, nil
}
func (f *fakeEventIO) PublishEvent(ctx context.Context, tmpl nostr.Event) (bool, error) {
	return true, nil
}
func (f *fakeEventIO) SignEvent(ctx context.Context, tmpl nostr.Event) (nostr.Event, error) {
	return tmpl, nil
}
func (f *fakeEventIO) GetCurrentPubkey(ctx context.Context) (string, bool) { return "", false }

func TestDiscoverRepoMergesAnnouncementAndState(t *testing.T) {
	kinds := event.DefaultKinds()
	addr := "30617:aa:demo"

	annTmpl, err := event.BuildAnnouncement(kinds, event.Announcement{
		D:     "demo",
		Clone: []event.CloneEntry{{PrimaryURL: "https://example.com/demo.git"}},
	}, nostr.Now())
	require.NoError(t, err)
	annTmpl.PubKey = "aa"

	stateTmpl := event.BuildState(kinds, "demo", map[string]string{
		"refs/heads/main": "1",
	}, nostr.Now())
	stateTmpl.PubKey = "aa"

	io := &fakeEventIO{byFilter: map[string][]nostr.Event{
		"d:demo": {annTmpl},
		"a:" + addr: {stateTmpl},
	}}

	r := New(io, kinds)
	res, err := r.DiscoverRepo(context.Background(), fakeRepoKey{addr: addr, name: "demo"}, Options{})
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/demo.git"}, res.URLs)
	require.Equal(t, []string{"main"}, res.Branches)

	branch, ok := r.DefaultBranch(addr)
	require.True(t, ok)
	require.Equal(t, "refs/heads/main", branch)
}

func TestDiscoverRepoNotFoundWhenBothMissing(t *testing.T) {
	kinds := event.DefaultKinds()
	io := &fakeEventIO{byFilter: map[string][]nostr.Event{}}
	r := New(io, kinds)

	_, err := r.DiscoverRepo(context.Background(), fakeRepoKey{addr: "30617:aa:demo", name: "demo"}, Options{TimeoutMs: 100})
	require.Error(t, err)
	require.Equal(t, errs.NotFound, errs.CodeOf(err))
}
