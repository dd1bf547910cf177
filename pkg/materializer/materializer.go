// Package materializer drives a local clone through the readiness ladder
// spec §4.5 describes (refs → shallow → full), grounded on the teacher's
// pkg/gitdir/gitdir.go clone/pull loop: same hard-deadline clone, same
// branch fallback instinct, generalized to progressive depth escalation and
// multi-mirror fallback rather than a single long-lived checkout.
package materializer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fluxcd/go-git-providers/gitprovider"
	log "github.com/sirupsen/logrus"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

// Level is one of the three readiness levels from spec §4.5.
type Level string

const (
	LevelRefs    Level = "refs"
	LevelShallow Level = "shallow"
	LevelFull    Level = "full"
)

func (l Level) atLeast(other Level) bool {
	rank := map[Level]int{LevelRefs: 0, LevelShallow: 1, LevelFull: 2}
	return rank[l] >= rank[other]
}

// robustBranchFallbacks is the ordered cascade spec §4.5 names.
var robustBranchFallbacks = []string{"main", "master", "develop", "dev"}

// depthLadder is the escalation sequence spec §4.5 names for OBJECT_UNREACHABLE recovery.
var depthLadder = []int{10, 100, 500, 1000}

// cacheEntry is the persistent, address-keyed cache record from spec §4.5.
type cacheEntry struct {
	lastUpdated time.Time
	headCommit  string
	dataLevel   Level
	branches    []string
	cloneURLs   []string
}

func (e *cacheEntry) expired(ttl time.Duration) bool {
	return ttl > 0 && time.Since(e.lastUpdated) > ttl
}

// Materializer owns zero local state beyond the address-keyed cache; the
// directory itself is whatever the caller passes to every call (normally
// one directory per RepoKey.address, chosen by the caller).
type Materializer struct {
	Provider ports.GitProvider

	CloneDeadline time.Duration
	CacheTTL      time.Duration

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

func New(provider ports.GitProvider) *Materializer {
	return &Materializer{
		Provider:      provider,
		CloneDeadline: 60 * time.Second,
		CacheTTL:      5 * time.Minute,
		cache:         map[string]*cacheEntry{},
	}
}

// cloneURLViaProvider asks go-git-providers to parse each candidate as a
// hosted org/repository URL (GitHub, GitLab, ...) and, on the first one it
// recognizes, returns that RepositoryRef's clone URL for transport. This is
// the same ParseOrgRepositoryURL/GetCloneURL(TransportType) pair the
// teacher's pkg/gitdir uses to turn a parsed ref back into a clone URL
// (gitdir.go's d.repoRef.GetCloneURL(d.AuthMethod.TransportType())).
func cloneURLViaProvider(urls []string, transport gitprovider.TransportType) (string, bool) {
	for _, u := range urls {
		ref, err := gitprovider.ParseOrgRepositoryURL(u)
		if err != nil {
			continue
		}
		if cloneURL := ref.GetCloneURL(transport); cloneURL != "" {
			return cloneURL, true
		}
	}
	return "", false
}

// ChooseCloneURL picks a URL by caller preference, else the SSH-transport
// clone URL of the first hosted-provider-parseable candidate, else its
// HTTPS-transport clone URL, else a bare-prefix heuristic for URLs
// go-git-providers can't parse (relay/GRASP endpoints aren't hosted
// org/repository URLs), per spec §4.5.
func ChooseCloneURL(preferred string, urls []string) (string, error) {
	if preferred != "" {
		return preferred, nil
	}
	if u, ok := cloneURLViaProvider(urls, gitprovider.TransportTypeGit); ok {
		return u, nil
	}
	if u, ok := cloneURLViaProvider(urls, gitprovider.TransportTypeHTTPS); ok {
		return u, nil
	}
	for _, u := range urls {
		if strings.HasPrefix(u, "ssh://") || strings.HasPrefix(u, "git@") {
			return u, nil
		}
	}
	for _, u := range urls {
		if strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") {
			return u, nil
		}
	}
	if len(urls) > 0 {
		return urls[0], nil
	}
	return "", errs.New(errs.NotFound, "no clone URLs available").With("operation", "chooseCloneURL")
}

// EnsureRefs clones via the provider's Clone (which takes no depth) if the
// cache has nothing yet, or confirms an existing cached entry.
func (m *Materializer) EnsureRefs(ctx context.Context, address, dir string, urls []string, preferredURL string) (Level, error) {
	if e, ok := m.liveCache(address); ok && e.dataLevel.atLeast(LevelRefs) {
		return e.dataLevel, nil
	}

	url, err := ChooseCloneURL(preferredURL, urls)
	if err != nil {
		return "", err
	}

	cloneCtx, cancel := context.WithTimeout(ctx, m.CloneDeadline)
	defer cancel()

	var lastErr error
	tried := []string{url}
	if err := m.Provider.Clone(cloneCtx, dir, url, ports.NetOpts{Signal: ctx}); err != nil {
		lastErr = err
		log.WithError(err).WithField("url", url).Warn("materializer: clone failed, trying alternate mirrors")
		for _, alt := range urls {
			if alt == url {
				continue
			}
			tried = append(tried, alt)
			if err := m.Provider.Clone(cloneCtx, dir, alt, ports.NetOpts{Signal: ctx}); err == nil {
				lastErr = nil
				url = alt
				break
			} else {
				lastErr = err
			}
		}
	}
	if lastErr != nil {
		return "", errs.Wrap(errs.NetworkError, "clone failed against every known mirror", lastErr).
			With("operation", "ensureRefs").With("urls", tried)
	}

	m.rememberLevel(address, LevelRefs, urls, "")
	return LevelRefs, nil
}

// EnsureShallow deepens to a one-deep checkout of branch, resolving branch
// robustly per spec §4.5's fallback cascade.
func (m *Materializer) EnsureShallow(ctx context.Context, address, dir, url, branch string) (string, Level, error) {
	if e, ok := m.liveCache(address); ok && e.dataLevel.atLeast(LevelShallow) {
		return branch, e.dataLevel, nil
	}

	resolved, err := m.resolveBranchRobustly(ctx, dir, url, branch)
	if err != nil {
		return "", "", err
	}

	if err := m.Provider.ShallowFetchDepth(ctx, dir, url, resolved, 1, ports.NetOpts{Signal: ctx}); err != nil {
		return "", "", errs.Wrap(errs.NetworkError, "shallow fetch failed", err).
			With("operation", "ensureShallow").With("branch", resolved)
	}
	if err := m.Provider.Checkout(ctx, dir, resolved, false); err != nil {
		return "", "", errs.Wrap(errs.BranchNotFound, "checkout failed after shallow fetch", err).
			With("operation", "ensureShallow").With("branch", resolved)
	}

	m.rememberLevel(address, LevelShallow, nil, resolved)
	return resolved, LevelShallow, nil
}

// EnsureFull deepens branch to depth (<=0 means unbounded/"full").
func (m *Materializer) EnsureFull(ctx context.Context, address, dir, url, branch string, depth int) (Level, error) {
	if e, ok := m.liveCache(address); ok && e.dataLevel == LevelFull {
		return LevelFull, nil
	}
	if err := m.Provider.ShallowFetchDepth(ctx, dir, url, branch, depth, ports.NetOpts{Signal: ctx}); err != nil {
		return "", errs.Wrap(errs.NetworkError, "full deepening failed", err).
			With("operation", "ensureFull").With("branch", branch).With("depth", depth)
	}
	m.rememberLevel(address, LevelFull, nil, branch)
	return LevelFull, nil
}

// resolveBranchRobustly implements spec §4.5's cascade: requested branch,
// then main/master/develop/dev, then refs/remotes/origin/<branch>; finally a
// targeted fetch of the named branch before giving up with BRANCH_NOT_FOUND.
func (m *Materializer) resolveBranchRobustly(ctx context.Context, dir, url, branch string) (string, error) {
	candidates := []string{branch}
	candidates = append(candidates, robustBranchFallbacks...)

	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, err := m.Provider.ResolveRef(ctx, dir, c); err == nil {
			return c, nil
		} else {
			lastErr = err
		}
	}
	remote := "refs/remotes/origin/" + branch
	if _, err := m.Provider.ResolveRef(ctx, dir, remote); err == nil {
		return remote, nil
	} else {
		lastErr = err
	}

	// Last resort: a targeted fetch of the named branch.
	if err := m.Provider.Fetch(ctx, dir, []string{"+refs/heads/" + branch + ":refs/remotes/origin/" + branch}, ports.NetOpts{Signal: ctx}); err != nil {
		return "", errs.Wrap(errs.BranchNotFound, "branch could not be resolved or fetched", err).
			With("operation", "resolveBranchRobustly").With("branch", branch)
	}
	if _, err := m.Provider.ResolveRef(ctx, dir, remote); err == nil {
		return remote, nil
	}
	return "", errs.Wrap(errs.BranchNotFound, "branch could not be resolved after targeted fetch", lastErr).
		With("operation", "resolveBranchRobustly").With("branch", branch)
}

// ReadCommitWithEscalation wraps Provider.ReadCommit with the depth-escalation
// retry ladder from spec §4.5: on miss, deepen further and retry, finally
// surfacing OBJECT_UNREACHABLE with (commit, branch, path) context.
func (m *Materializer) ReadCommitWithEscalation(ctx context.Context, dir, url, branch, oid string) (ports.CommitInfo, error) {
	info, err := m.Provider.ReadCommit(ctx, dir, oid)
	if err == nil {
		return info, nil
	}
	for _, depth := range depthLadder {
		if escErr := m.Provider.ShallowFetchDepth(ctx, dir, url, branch, depth, ports.NetOpts{Signal: ctx}); escErr != nil {
			continue
		}
		if info, err = m.Provider.ReadCommit(ctx, dir, oid); err == nil {
			return info, nil
		}
	}
	_ = m.Provider.FetchTags(ctx, dir, url, ports.NetOpts{Signal: ctx})
	if info, err = m.Provider.ReadCommit(ctx, dir, oid); err == nil {
		return info, nil
	}
	return ports.CommitInfo{}, errs.New(errs.ObjectUnreach, "commit unreachable after depth escalation").
		With("operation", "readCommit").With("commit", oid).With("branch", branch)
}

// ReadTreeWithEscalation mirrors ReadCommitWithEscalation for tree reads.
func (m *Materializer) ReadTreeWithEscalation(ctx context.Context, dir, url, branch, oid string) ([]ports.TreeEntry, error) {
	entries, err := m.Provider.ReadTree(ctx, dir, oid)
	if err == nil {
		return entries, nil
	}
	for _, depth := range depthLadder {
		if escErr := m.Provider.ShallowFetchDepth(ctx, dir, url, branch, depth, ports.NetOpts{Signal: ctx}); escErr != nil {
			continue
		}
		if entries, err = m.Provider.ReadTree(ctx, dir, oid); err == nil {
			return entries, nil
		}
	}
	return nil, errs.New(errs.ObjectUnreach, "tree unreachable after depth escalation").
		With("operation", "readTree").With("commit", oid).With("branch", branch)
}

// ReadBlobWithEscalation mirrors ReadCommitWithEscalation for blob reads,
// surfacing the failing path in its error context per spec §4.5.
func (m *Materializer) ReadBlobWithEscalation(ctx context.Context, dir, url, branch, oid, path string) ([]byte, error) {
	data, err := m.Provider.ReadBlob(ctx, dir, oid)
	if err == nil {
		return data, nil
	}
	for _, depth := range depthLadder {
		if escErr := m.Provider.ShallowFetchDepth(ctx, dir, url, branch, depth, ports.NetOpts{Signal: ctx}); escErr != nil {
			continue
		}
		if data, err = m.Provider.ReadBlob(ctx, dir, oid); err == nil {
			return data, nil
		}
	}
	return nil, errs.New(errs.ObjectUnreach, "blob unreachable after depth escalation").
		With("operation", "readBlob").With("commit", oid).With("branch", branch).With("path", path)
}

func (m *Materializer) liveCache(address string) (*cacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[address]
	if !ok || e.expired(m.CacheTTL) {
		return nil, false
	}
	return e, true
}

// SetBranches records the known branch list for address, populating the
// cache entry's branches[] field from spec §4.5's cache shape.
func (m *Materializer) SetBranches(address string, branches []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[address]
	if !ok {
		e = &cacheEntry{}
		m.cache[address] = e
	}
	e.branches = branches
}

func (m *Materializer) rememberLevel(address string, level Level, urls []string, headCommit string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[address]
	if !ok {
		e = &cacheEntry{}
		m.cache[address] = e
	}
	e.lastUpdated = time.Now()
	e.dataLevel = level
	if len(urls) > 0 {
		e.cloneURLs = urls
	}
	if headCommit != "" {
		e.headCommit = headCommit
	}
}
