package pushrouter

import (
	"context"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/event"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

type fakeProvider struct {
	ports.GitProvider

	pushCalls []string // joined refspecs per call
	pushErrs  []error  // consumed in order, nil = success

	pushToURLCalls []string         // urls passed to PushToURL, in order
	pushToURLErrs  map[string]error // per-url error; absent/nil = success

	commits   map[string]ports.CommitInfo
	resolveOK map[string]string // ref -> oid
}

func (f *fakeProvider) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	if oid, ok := f.resolveOK[ref]; ok {
		return oid, nil
	}
	return "", errs.New(errs.BranchNotFound, "not found")
}

func (f *fakeProvider) ReadCommit(ctx context.Context, dir, oid string) (ports.CommitInfo, error) {
	if c, ok := f.commits[oid]; ok {
		return c, nil
	}
	return ports.CommitInfo{}, errs.New(errs.ObjectUnreach, "missing commit")
}

func (f *fakeProvider) Push(ctx context.Context, dir string, refspecs []string, opts ports.NetOpts) error {
	idx := len(f.pushCalls)
	f.pushCalls = append(f.pushCalls, refspecs[0])
	if idx < len(f.pushErrs) {
		return f.pushErrs[idx]
	}
	return nil
}

// PushToURL records the url it was asked to target so tests can assert the
// alternate-mirror retry actually targets that url, rather than silently
// repeating the primary push.
func (f *fakeProvider) PushToURL(ctx context.Context, dir, url string, refspecs []string, opts ports.NetOpts) error {
	f.pushToURLCalls = append(f.pushToURLCalls, url)
	if err, ok := f.pushToURLErrs[url]; ok {
		return err
	}
	return nil
}

type fakeEventIO struct {
	signed    []nostr.Event
	published []nostr.Event
}

func (f *fakeEventIO) FetchEvents(ctx context.Context, filters []nostr.Filter) ([]nostr.Event, error) {
	return nil, nil
}
func (f *fakeEventIO) PublishEvent(ctx context.Context, tmpl nostr.Event) (bool, error) {
	f.published = append(f.published, tmpl)
	return true, nil
}
func (f *fakeEventIO) SignEvent(ctx context.Context, tmpl nostr.Event) (nostr.Event, error) {
	f.signed = append(f.signed, tmpl)
	return tmpl, nil
}
func (f *fakeEventIO) GetCurrentPubkey(ctx context.Context) (string, bool) { return "aa", true }

func TestPushPartitionsPRAndNormalRefs(t *testing.T) {
	kinds := event.DefaultKinds()
	provider := &fakeProvider{
		resolveOK: map[string]string{"refs/heads/pr/feature-x": "c0ffee"},
		commits: map[string]ports.CommitInfo{
			"c0ffee": {OID: "c0ffee", TreeOID: "", ParentOIDs: nil, CommitterName: "alice", CommitterEmail: "a@example.com"},
		},
	}
	io := &fakeEventIO{}
	r := New(provider, io, kinds)

	res, err := r.Push(context.Background(), Options{
		Dir:      "/tmp/repo",
		RepoAddr: "30617:aa:demo",
		Branch:   "main",
		Refspecs: []string{
			"refs/heads/pr/feature-x:refs/heads/pr/feature-x",
			"refs/heads/main:refs/heads/main",
		},
		GetPatchContent: func(ctx context.Context, dir, oid, parentOID string) (string, error) {
			return "diff --git a/x b/x\n", nil
		},
	}, nostr.Now())
	require.NoError(t, err)

	require.Len(t, res.PatchEvents, 1)
	require.Equal(t, "30617:aa:demo", firstTag(res.PatchEvents[0], "a"))
	require.Equal(t, "base:main", firstTag(res.PatchEvents[0], "t"))
	require.Equal(t, "c0ffee", firstTag(res.PatchEvents[0], "commit"))

	require.Equal(t, []string{"refs/heads/main:refs/heads/main"}, res.NormalPushed)
	require.Len(t, io.published, 1)
}

func TestPushNormalRefFallsBackToAlternateMirror(t *testing.T) {
	kinds := event.DefaultKinds()
	provider := &fakeProvider{
		pushErrs: []error{errs.New(errs.NetworkError, "boom")},
	}
	io := &fakeEventIO{}
	r := New(provider, io, kinds)

	res, err := r.Push(context.Background(), Options{
		Dir:                "/tmp/repo",
		RepoAddr:           "30617:aa:demo",
		RepoID:             "demo",
		Refspecs:           []string{"refs/heads/main:refs/heads/main"},
		AlternateCloneURLs: []string{"https://mirror.example/demo.git"},
	}, nostr.Now())
	require.NoError(t, err)
	require.Equal(t, "https://mirror.example/demo.git", res.UsedURL)
	require.Len(t, provider.pushCalls, 1)
	require.Equal(t, []string{"https://mirror.example/demo.git"}, provider.pushToURLCalls)
}

func TestPushNormalRefAlternateMirrorFailureSurfacesNetworkError(t *testing.T) {
	kinds := event.DefaultKinds()
	provider := &fakeProvider{
		pushErrs:      []error{errs.New(errs.NetworkError, "boom")},
		pushToURLErrs: map[string]error{"https://mirror.example/demo.git": errs.New(errs.NetworkError, "mirror also down")},
	}
	io := &fakeEventIO{}
	r := New(provider, io, kinds)

	_, err := r.Push(context.Background(), Options{
		Dir:                "/tmp/repo",
		RepoAddr:           "30617:aa:demo",
		RepoID:             "demo",
		Refspecs:           []string{"refs/heads/main:refs/heads/main"},
		AlternateCloneURLs: []string{"https://mirror.example/demo.git"},
	}, nostr.Now())
	require.Error(t, err)
	require.Equal(t, errs.NetworkError, errs.CodeOf(err))
	require.Equal(t, []string{"https://mirror.example/demo.git"}, provider.pushToURLCalls)
}

func TestPushWithVendorPullRequestOpensOnSuccess(t *testing.T) {
	kinds := event.DefaultKinds()
	provider := &fakeProvider{}
	io := &fakeEventIO{}
	r := New(provider, io, kinds)

	pr := &fakeVendorPR{}
	res, err := r.Push(context.Background(), Options{
		Dir:          "/tmp/repo",
		RepoAddr:     "30617:aa:demo",
		Refspecs:     []string{"refs/heads/main:refs/heads/main"},
		PullRequests: pr,
		VendorPR: GenericPullRequestSpec{
			MainBranch:  "main",
			MergeBranch: "feature-x",
		},
	}, nostr.Now())
	require.NoError(t, err)
	require.Empty(t, res.Warnings)
	require.Len(t, pr.specs, 1)
	require.Equal(t, "main", pr.specs[0].GetMainBranch())
	require.Equal(t, "feature-x", pr.specs[0].GetMergeBranch())
}

type fakeVendorPR struct {
	specs []PullRequestSpec
	err   error
}

func (f *fakeVendorPR) CreatePullRequest(ctx context.Context, spec PullRequestSpec) error {
	f.specs = append(f.specs, spec)
	return f.err
}

func TestPushStatusEmissionIsBestEffortOnly(t *testing.T) {
	kinds := event.DefaultKinds()
	provider := &fakeProvider{
		resolveOK: map[string]string{"refs/heads/main": "1"},
	}
	io := &fakeEventIO{}
	r := New(provider, io, kinds)

	res, err := r.Push(context.Background(), Options{
		Dir:               "/tmp/repo",
		RepoAddr:          "30617:aa:demo",
		Refspecs:          []string{"refs/heads/main:refs/heads/main"},
		EmitStatus:        true,
		RootThreadID:      "root1",
		ParticipantWindow: time.Millisecond,
	}, nostr.Now())
	require.NoError(t, err)
	require.NotNil(t, res.StatusEvent)
	require.Empty(t, res.Warnings)
}

func firstTag(evt nostr.Event, name string) string {
	for _, t := range evt.Tags {
		if len(t) >= 2 && t[0] == name {
			return t[1]
		}
	}
	return ""
}
