package patchengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nostr-git/ngit-core/internal/gitplumbing"
	"github.com/nostr-git/ngit-core/internal/memfs"
	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/event"
	"github.com/nostr-git/ngit-core/pkg/materializer"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

// fakeProvider is a minimal in-memory GitProvider backing trees, blobs and
// commits by OID, sufficient for patch-engine unit tests without a real
// on-disk repository.
type fakeProvider struct {
	ports.GitProvider

	trees   map[string][]ports.TreeEntry
	blobs   map[string][]byte
	commits map[string]ports.CommitInfo
	refs    map[string]string

	addCalls    [][]string
	removeCalls [][]string
	commitLog   []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		trees:   map[string][]ports.TreeEntry{},
		blobs:   map[string][]byte{},
		commits: map[string]ports.CommitInfo{},
		refs:    map[string]string{},
	}
}

func (f *fakeProvider) ReadTree(ctx context.Context, dir, oid string) ([]ports.TreeEntry, error) {
	if oid == "" || oid == gitplumbing.EmptyTreeOID {
		return nil, nil
	}
	e, ok := f.trees[oid]
	if !ok {
		return nil, errs.New(errs.ObjectUnreach, "tree not found")
	}
	return e, nil
}

func (f *fakeProvider) Walk(ctx context.Context, dir, treeOID string, fn func(ports.TreeEntry) error) error {
	entries, err := f.ReadTree(ctx, dir, treeOID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeProvider) ReadBlob(ctx context.Context, dir, oid string) ([]byte, error) {
	b, ok := f.blobs[oid]
	if !ok {
		return nil, errs.New(errs.ObjectUnreach, "blob not found")
	}
	return b, nil
}

func (f *fakeProvider) ReadCommit(ctx context.Context, dir, oid string) (ports.CommitInfo, error) {
	c, ok := f.commits[oid]
	if !ok {
		return ports.CommitInfo{}, errs.New(errs.ObjectUnreach, "commit not found")
	}
	return c, nil
}

func (f *fakeProvider) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	oid, ok := f.refs[ref]
	if !ok {
		return "", errs.New(errs.BranchNotFound, "ref not found")
	}
	return oid, nil
}

func (f *fakeProvider) ShallowFetchDepth(ctx context.Context, dir, url, branch string, depth int, opts ports.NetOpts) error {
	return nil
}

func (f *fakeProvider) Checkout(ctx context.Context, dir, ref string, create bool) error {
	return nil
}

func (f *fakeProvider) Add(ctx context.Context, dir string, paths []string) error {
	f.addCalls = append(f.addCalls, paths)
	return nil
}

func (f *fakeProvider) Remove(ctx context.Context, dir string, paths []string) error {
	f.removeCalls = append(f.removeCalls, paths)
	return nil
}

func (f *fakeProvider) Commit(ctx context.Context, dir, message, authorName, authorEmail string) (string, error) {
	f.commitLog = append(f.commitLog, message)
	return "committed-oid", nil
}

func TestComputeFileChangesDetectsAddRemoveModify(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()

	fp.blobs["blob-a-old"] = []byte("old readme\n")
	fp.blobs["blob-a-new"] = []byte("new readme\n")
	fp.blobs["blob-gone"] = []byte("bye\n")
	fp.blobs["blob-new-file"] = []byte("hello\n")

	fp.trees["treeA"] = []ports.TreeEntry{
		{Path: "README.md", OID: "blob-a-old"},
		{Path: "old.txt", OID: "blob-gone"},
	}
	fp.trees["treeB"] = []ports.TreeEntry{
		{Path: "README.md", OID: "blob-a-new"},
		{Path: "new.txt", OID: "blob-new-file"},
	}

	changes, err := ComputeFileChanges(ctx, fp, "/repo", "treeA", "treeB")
	require.NoError(t, err)
	require.Len(t, changes, 3)

	byPath := map[string]FileChange{}
	for _, c := range changes {
		byPath[c.Path] = c
	}
	require.Equal(t, ChangeModify, byPath["README.md"].Type)
	require.Equal(t, ChangeRemove, byPath["old.txt"].Type)
	require.Equal(t, ChangeAdd, byPath["new.txt"].Type)
}

func TestComputeFileChangesEmptyTreeIsAllAdds(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.blobs["b1"] = []byte("x\n")
	fp.trees["treeB"] = []ports.TreeEntry{{Path: "a.txt", OID: "b1"}}

	changes, err := ComputeFileChanges(ctx, fp, "/repo", "", "treeB")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, ChangeAdd, changes[0].Type)
}

func TestFilePatchModifyProducesUnifiedDiff(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.blobs["old"] = []byte("line1\nline2\nline3\n")
	fp.blobs["new"] = []byte("line1\nCHANGED\nline3\n")

	patch, err := FilePatch(ctx, fp, "/repo", FileChange{Path: "f.txt", Type: ChangeModify, AOid: "old", BOid: "new"})
	require.NoError(t, err)
	require.Contains(t, patch, "diff --git a/f.txt b/f.txt")
	require.Contains(t, patch, "-line2")
	require.Contains(t, patch, "+CHANGED")
}

func TestFilePatchNoChangeIsEmpty(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.blobs["same"] = []byte("unchanged\n")

	patch, err := FilePatch(ctx, fp, "/repo", FileChange{Path: "f.txt", Type: ChangeModify, AOid: "same", BOid: "same"})
	require.NoError(t, err)
	require.Empty(t, patch)
}

func TestDiffAnchorRoundTrip(t *testing.T) {
	changes := []FileChange{{Path: "a/b.txt"}, {Path: "c.txt"}}
	anchor := DiffAnchor("c.txt")
	require.True(t, len(anchor) > len("diff-"))

	match, ok := ResolveDiffAnchor(changes, anchor)
	require.True(t, ok)
	require.Equal(t, "c.txt", match.Path)
}

func TestApplyPatchSingleHunkRoundTrip(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.blobs["old"] = []byte("alpha\nbeta\ngamma\n")
	fp.blobs["new"] = []byte("alpha\nBETA\ngamma\n")

	diff, err := FilePatch(ctx, fp, "/repo", FileChange{Path: "f.txt", Type: ChangeModify, AOid: "old", BOid: "new"})
	require.NoError(t, err)
	require.NotEmpty(t, diff)

	fs := memfs.NewMemory()
	require.NoError(t, fs.MkdirAll(ctx, "/repo", 0o755))
	require.NoError(t, fs.WriteFile(ctx, "/repo/f.txt", fp.blobs["old"], 0o644))

	commit, err := ApplyPatch(ctx, fp, fs, "/repo", diff, "apply patch", "Tester", "tester@example.com")
	require.NoError(t, err)
	require.Equal(t, "committed-oid", commit)

	out, err := fs.ReadFile(ctx, "/repo/f.txt")
	require.NoError(t, err)
	require.Equal(t, "alpha\nBETA\ngamma\n", string(out))
	require.Len(t, fp.addCalls, 1)
	require.Equal(t, []string{"f.txt"}, fp.addCalls[0])
}

func TestApplyPatchConflictLeavesFileUntouched(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.blobs["old"] = []byte("alpha\nbeta\ngamma\n")
	fp.blobs["new"] = []byte("alpha\nBETA\ngamma\n")

	diff, err := FilePatch(ctx, fp, "/repo", FileChange{Path: "f.txt", Type: ChangeModify, AOid: "old", BOid: "new"})
	require.NoError(t, err)

	fs := memfs.NewMemory()
	require.NoError(t, fs.MkdirAll(ctx, "/repo", 0o755))
	// Working tree has drifted: the pre-image no longer matches.
	require.NoError(t, fs.WriteFile(ctx, "/repo/f.txt", []byte("alpha\nDRIFTED\ngamma\n"), 0o644))

	_, err = ApplyPatch(ctx, fp, fs, "/repo", diff, "apply patch", "Tester", "tester@example.com")
	require.Error(t, err)
	require.Equal(t, errs.MergeConflict, errs.CodeOf(err))

	out, readErr := fs.ReadFile(ctx, "/repo/f.txt")
	require.NoError(t, readErr)
	require.Equal(t, "alpha\nDRIFTED\ngamma\n", string(out))
}

func TestApplyPatchEmptyDiffIsNoOpCommitFreeSuccess(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fs := memfs.NewMemory()
	require.NoError(t, fs.MkdirAll(ctx, "/repo", 0o755))

	commit, err := ApplyPatch(ctx, fp, fs, "/repo", "", "apply patch", "Tester", "tester@example.com")
	require.NoError(t, err)
	require.Empty(t, commit)
	require.Empty(t, fp.commitLog)
	require.Empty(t, fp.addCalls)
	require.Empty(t, fp.removeCalls)
}

func TestAnalyzeMergeFastForward(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.refs["main"] = "head-oid"
	fp.commits["head-oid"] = ports.CommitInfo{OID: "head-oid", TreeOID: "treeHead"}
	fp.trees["treeHead"] = nil

	m := materializer.New(fp)
	patch := &event.Patch{RepoAddr: "30617:aa:demo", Commit: "new-oid", ParentCommit: "head-oid"}

	result, err := AnalyzeMerge(ctx, m, fp, "/repo", "https://example.com/demo.git", "main", patch)
	require.NoError(t, err)
	require.True(t, result.FastForward)
	require.True(t, result.CanMerge)
	require.Equal(t, AnalysisFF, result.Analysis)
}

func TestAnalyzeMergeUpToDate(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.refs["main"] = "head-oid"
	fp.commits["head-oid"] = ports.CommitInfo{OID: "head-oid", TreeOID: "treeHead"}

	m := materializer.New(fp)
	patch := &event.Patch{RepoAddr: "30617:aa:demo", Commit: "head-oid"}

	result, err := AnalyzeMerge(ctx, m, fp, "/repo", "https://example.com/demo.git", "main", patch)
	require.NoError(t, err)
	require.True(t, result.UpToDate)
	require.Equal(t, AnalysisClean, result.Analysis)
}

func TestAnalyzeMergeConflict(t *testing.T) {
	ctx := context.Background()
	fp := newFakeProvider()
	fp.refs["main"] = "head-oid"
	fp.blobs["parent-blob"] = []byte("alpha\nbeta\ngamma\n")
	fp.blobs["drifted-blob"] = []byte("alpha\nDRIFTED\ngamma\n")
	fp.blobs["new-blob"] = []byte("alpha\nBETA\ngamma\n")

	fp.commits["parent-oid"] = ports.CommitInfo{OID: "parent-oid", TreeOID: "parent-tree"}
	fp.commits["head-oid"] = ports.CommitInfo{OID: "head-oid", TreeOID: "head-tree"}
	fp.trees["head-tree"] = []ports.TreeEntry{{Path: "f.txt", OID: "drifted-blob"}}

	diff, err := FilePatch(ctx, fp, "/repo", FileChange{Path: "f.txt", Type: ChangeModify, AOid: "parent-blob", BOid: "new-blob"})
	require.NoError(t, err)

	m := materializer.New(fp)
	patch := &event.Patch{RepoAddr: "30617:aa:demo", Commit: "incoming-oid", ParentCommit: "parent-oid", Diff: diff}

	result, err := AnalyzeMerge(ctx, m, fp, "/repo", "https://example.com/demo.git", "main", patch)
	require.NoError(t, err)
	require.True(t, result.HasConflicts)
	require.Equal(t, AnalysisConflict, result.Analysis)
	require.Equal(t, []string{"f.txt"}, result.ConflictFiles)
}
