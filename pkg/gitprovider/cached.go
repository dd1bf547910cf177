// Package gitprovider wraps a ports.GitProvider with a per-directory,
// TTL-expiring read cache, per spec §4.3. The wrapper owns the cache value;
// the provider underneath never knows it exists, matching the DESIGN NOTES
// guidance against cyclic ownership around caches.
//
// Structurally this mirrors the teacher's GitDirectoryOptions.Default()
// pattern (pkg/gitdir/gitdir.go) for option defaulting and its mutex-guarded
// struct shape for serializing access to shared directory state.
package gitprovider

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nostr-git/ngit-core/pkg/ports"
)

// Mode selects whether the cache is active.
type Mode string

const (
	ModeOn  Mode = "on"
	ModeOff Mode = "off"
)

// Options configures the Cached provider. Default() mirrors
// GitDirectoryOptions.Default() from the teacher's gitdir package.
type Options struct {
	Mode          Mode
	CacheMaxAgeMs int64
}

func (o *Options) Default() {
	if o.Mode == "" {
		o.Mode = ModeOn
	}
	if o.CacheMaxAgeMs == 0 {
		o.CacheMaxAgeMs = 30_000
	}
}

// entry holds memoized read results for one directory. A zero value means
// "nothing cached yet" for every field; readers only trust a field once
// they've set it themselves.
type entry struct {
	updatedAt time.Time

	haveRefs     bool
	refs         []ports.RefEntry
	haveBranches bool
	branches     []string
	haveTags     bool
	tags         []string
	haveStatus   bool
	statusClean  bool
}

func (e *entry) expired(maxAge time.Duration) bool {
	return time.Since(e.updatedAt) > maxAge
}

// Cached wraps a ports.GitProvider with the directory-keyed cache described
// in spec §4.3: reads populate/consult a per-directory entry, writes
// invalidate it, and entries idle past CacheMaxAgeMs are treated as absent.
type Cached struct {
	inner ports.GitProvider
	opts  Options

	mu      sync.Mutex
	entries map[string]*entry
}

func New(inner ports.GitProvider, opts Options) *Cached {
	opts.Default()
	return &Cached{inner: inner, opts: opts, entries: map[string]*entry{}}
}

func (c *Cached) maxAge() time.Duration {
	return time.Duration(c.opts.CacheMaxAgeMs) * time.Millisecond
}

// liveEntry returns the entry for dir, replacing it with a fresh one if
// caching is off, absent, or expired. The bool reports whether the
// returned entry was already live (so its cached fields can be trusted).
func (c *Cached) liveEntry(dir string) (*entry, bool) {
	if c.opts.Mode == ModeOff {
		return &entry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[dir]
	if !ok || e.expired(c.maxAge()) {
		e = &entry{updatedAt: time.Now()}
		c.entries[dir] = e
		return e, false
	}
	return e, true
}

// invalidate drops dir's cache entry. Called after every write operation.
func (c *Cached) invalidate(dir string) {
	if c.opts.Mode == ModeOff {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, dir)
	log.WithField("dir", dir).Debug("gitprovider: cache invalidated")
}

// --- reads: consult/populate the per-directory entry ---

func (c *Cached) ListRefs(ctx context.Context, dir string) ([]ports.RefEntry, error) {
	e, hit := c.liveEntry(dir)
	if hit && e.haveRefs {
		return e.refs, nil
	}
	refs, err := c.inner.ListRefs(ctx, dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	e.refs, e.haveRefs, e.updatedAt = refs, true, time.Now()
	c.mu.Unlock()
	return refs, nil
}

func (c *Cached) ListBranches(ctx context.Context, dir string) ([]string, error) {
	e, hit := c.liveEntry(dir)
	if hit && e.haveBranches {
		return e.branches, nil
	}
	branches, err := c.inner.ListBranches(ctx, dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	e.branches, e.haveBranches, e.updatedAt = branches, true, time.Now()
	c.mu.Unlock()
	return branches, nil
}

func (c *Cached) ListTags(ctx context.Context, dir string) ([]string, error) {
	e, hit := c.liveEntry(dir)
	if hit && e.haveTags {
		return e.tags, nil
	}
	tags, err := c.inner.ListTags(ctx, dir)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	e.tags, e.haveTags, e.updatedAt = tags, true, time.Now()
	c.mu.Unlock()
	return tags, nil
}

func (c *Cached) Status(ctx context.Context, dir string) (bool, error) {
	e, hit := c.liveEntry(dir)
	if hit && e.haveStatus {
		return e.statusClean, nil
	}
	clean, err := c.inner.Status(ctx, dir)
	if err != nil {
		return false, err
	}
	c.mu.Lock()
	e.statusClean, e.haveStatus, e.updatedAt = clean, true, time.Now()
	c.mu.Unlock()
	return clean, nil
}

// ResolveRef, ReadBlob, ReadCommit, ReadTree, Log, Walk, ListRemotes pass
// through uncached: they're keyed by oid/path rather than directory state,
// and go-git's own object store already memoizes loose-object reads, so a
// second cache layer on top would only add staleness risk for no benefit.

func (c *Cached) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	return c.inner.ResolveRef(ctx, dir, ref)
}
func (c *Cached) ReadBlob(ctx context.Context, dir, oid string) ([]byte, error) {
	return c.inner.ReadBlob(ctx, dir, oid)
}
func (c *Cached) ReadCommit(ctx context.Context, dir, oid string) (ports.CommitInfo, error) {
	return c.inner.ReadCommit(ctx, dir, oid)
}
func (c *Cached) ReadTree(ctx context.Context, dir, oid string) ([]ports.TreeEntry, error) {
	return c.inner.ReadTree(ctx, dir, oid)
}
func (c *Cached) Log(ctx context.Context, dir, from string, limit int) ([]ports.CommitInfo, error) {
	return c.inner.Log(ctx, dir, from, limit)
}
func (c *Cached) Walk(ctx context.Context, dir, treeOID string, fn func(ports.TreeEntry) error) error {
	return c.inner.Walk(ctx, dir, treeOID, fn)
}
func (c *Cached) ListRemotes(ctx context.Context, dir string) (map[string]string, error) {
	return c.inner.ListRemotes(ctx, dir)
}

// --- writes: delegate, then invalidate ---

func (c *Cached) Clone(ctx context.Context, dir, url string, opts ports.NetOpts) error {
	if err := c.inner.Clone(ctx, dir, url, opts); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) Fetch(ctx context.Context, dir string, refspecs []string, opts ports.NetOpts) error {
	if err := c.inner.Fetch(ctx, dir, refspecs, opts); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) Push(ctx context.Context, dir string, refspecs []string, opts ports.NetOpts) error {
	if err := c.inner.Push(ctx, dir, refspecs, opts); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) PushToURL(ctx context.Context, dir, url string, refspecs []string, opts ports.NetOpts) error {
	if err := c.inner.PushToURL(ctx, dir, url, refspecs, opts); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) Pull(ctx context.Context, dir string, opts ports.NetOpts) error {
	if err := c.inner.Pull(ctx, dir, opts); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) Init(ctx context.Context, dir string) error {
	if err := c.inner.Init(ctx, dir); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) Commit(ctx context.Context, dir, message, authorName, authorEmail string) (string, error) {
	oid, err := c.inner.Commit(ctx, dir, message, authorName, authorEmail)
	if err != nil {
		return "", err
	}
	c.invalidate(dir)
	return oid, nil
}

func (c *Cached) WriteRef(ctx context.Context, dir, name, value string) error {
	if err := c.inner.WriteRef(ctx, dir, name, value); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) DeleteRef(ctx context.Context, dir, name string) error {
	if err := c.inner.DeleteRef(ctx, dir, name); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) Add(ctx context.Context, dir string, paths []string) error {
	if err := c.inner.Add(ctx, dir, paths); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) Remove(ctx context.Context, dir string, paths []string) error {
	if err := c.inner.Remove(ctx, dir, paths); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) Checkout(ctx context.Context, dir, ref string, create bool) error {
	if err := c.inner.Checkout(ctx, dir, ref, create); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) ShallowFetchDepth(ctx context.Context, dir, url, branch string, depth int, opts ports.NetOpts) error {
	if err := c.inner.ShallowFetchDepth(ctx, dir, url, branch, depth, opts); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

func (c *Cached) FetchTags(ctx context.Context, dir, url string, opts ports.NetOpts) error {
	if err := c.inner.FetchTags(ctx, dir, url, opts); err != nil {
		return err
	}
	c.invalidate(dir)
	return nil
}

var _ ports.GitProvider = (*Cached)(nil)
