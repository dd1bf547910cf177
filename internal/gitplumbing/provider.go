// Package gitplumbing is the reference ports.GitProvider implementation over
// go-git/v5, grounded on the teacher's pkg/gitdir/gitdir.go: the same
// clone/pull/checkout/commit shapes, the same contextWithTimeout wrapping
// pattern, and the same logrus logging style, generalized from a single
// long-lived clone directory to the directory-keyed, stateless-per-call
// surface spec §4.3 describes.
package gitplumbing

import (
	"context"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	log "github.com/sirupsen/logrus"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

// EmptyTreeOID is the Git constant for the empty tree object, used by the
// Patch Engine (spec §4.6) when a change has no parent tree to diff against.
const EmptyTreeOID = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// Provider implements ports.GitProvider by opening the repository at dir on
// every call. It holds no per-directory state itself; pkg/gitprovider.Cached
// is the layer that adds memoization.
type Provider struct {
	// DefaultTimeout bounds every network-bearing call absent a caller
	// deadline, mirroring GitDirectoryOptions.Timeout.
	DefaultTimeout time.Duration
}

func New() *Provider {
	return &Provider{DefaultTimeout: 60 * time.Second}
}

func (p *Provider) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	timeout := p.DefaultTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fnErr := fn(ctx)
	if ctx.Err() != nil {
		log.WithError(ctx.Err()).Debug("gitplumbing: operation context ended")
		return ctx.Err()
	}
	return fnErr
}

func authTransport(opts ports.NetOpts) transport.AuthMethod {
	if creds, ok := opts.HTTP.(*githttp.BasicAuth); ok {
		return creds
	}
	return nil
}

func (p *Provider) Clone(ctx context.Context, dir, url string, opts ports.NetOpts) error {
	log.WithField("dir", dir).WithField("url", url).Info("gitplumbing: cloning repository")
	err := p.withTimeout(ctx, func(inner context.Context) error {
		_, err := git.PlainCloneContext(inner, dir, false, &git.CloneOptions{
			URL:  url,
			Auth: authTransport(opts),
			Tags: git.AllTags,
		})
		return err
	})
	return translateNetErr(err, "clone", dir)
}

func (p *Provider) Fetch(ctx context.Context, dir string, refspecs []string, opts ports.NetOpts) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	specs := make([]config.RefSpec, 0, len(refspecs))
	for _, rs := range refspecs {
		specs = append(specs, config.RefSpec(rs))
	}
	err = p.withTimeout(ctx, func(inner context.Context) error {
		fo := &git.FetchOptions{Auth: authTransport(opts), Tags: git.AllTags}
		if len(specs) > 0 {
			fo.RefSpecs = specs
		}
		err := repo.FetchContext(inner, fo)
		if err == git.NoErrAlreadyUpToDate {
			return nil
		}
		return err
	})
	return translateNetErr(err, "fetch", dir)
}

func (p *Provider) Push(ctx context.Context, dir string, refspecs []string, opts ports.NetOpts) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	specs := make([]config.RefSpec, 0, len(refspecs))
	for _, rs := range refspecs {
		specs = append(specs, config.RefSpec(rs))
	}
	err = p.withTimeout(ctx, func(inner context.Context) error {
		po := &git.PushOptions{Auth: authTransport(opts)}
		if len(specs) > 0 {
			po.RefSpecs = specs
		}
		err := repo.PushContext(inner, po)
		if err == git.NoErrAlreadyUpToDate {
			return nil
		}
		return err
	})
	return translateNetErr(err, "push", dir)
}

// PushToURL pushes refspecs against url directly via an anonymous,
// unregistered go-git remote (git.NewRemote), rather than dir's configured
// "origin". This is how go-git itself recommends pushing/fetching against a
// URL that was never added as a named remote.
func (p *Provider) PushToURL(ctx context.Context, dir, url string, refspecs []string, opts ports.NetOpts) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	specs := make([]config.RefSpec, 0, len(refspecs))
	for _, rs := range refspecs {
		specs = append(specs, config.RefSpec(rs))
	}
	remote := git.NewRemote(repo.Storer, &config.RemoteConfig{Name: "ngit-alternate", URLs: []string{url}})
	err = p.withTimeout(ctx, func(inner context.Context) error {
		po := &git.PushOptions{Auth: authTransport(opts)}
		if len(specs) > 0 {
			po.RefSpecs = specs
		}
		err := remote.PushContext(inner, po)
		if err == git.NoErrAlreadyUpToDate {
			return nil
		}
		return err
	})
	return translateNetErr(err, "push", dir)
}

func (p *Provider) Pull(ctx context.Context, dir string, opts ports.NetOpts) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errs.Wrap(errs.Internal, "could not open worktree", err).With("operation", "pull")
	}
	err = p.withTimeout(ctx, func(inner context.Context) error {
		err := wt.PullContext(inner, &git.PullOptions{Auth: authTransport(opts), SingleBranch: true})
		if err == git.NoErrAlreadyUpToDate {
			return nil
		}
		return err
	})
	return translateNetErr(err, "pull", dir)
}

func (p *Provider) Init(ctx context.Context, dir string) error {
	_, err := git.PlainInit(dir, false)
	if err != nil {
		return errs.Wrap(errs.Internal, "git init failed", err).With("operation", "init").With("dir", dir)
	}
	return nil
}

func (p *Provider) Commit(ctx context.Context, dir, message, authorName, authorEmail string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", translateOpenErr(err, dir)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", errs.Wrap(errs.Internal, "could not open worktree", err).With("operation", "commit")
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		All: true,
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", errs.Wrap(errs.Internal, "git commit failed", err).With("operation", "commit").With("dir", dir)
	}
	return hash.String(), nil
}

func (p *Provider) Log(ctx context.Context, dir, from string, limit int) ([]ports.CommitInfo, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, translateOpenErr(err, dir)
	}
	var hash plumbing.Hash
	if from == "" {
		head, err := repo.Head()
		if err != nil {
			return nil, errs.Wrap(errs.NotFound, "no HEAD to log from", err).With("operation", "log")
		}
		hash = head.Hash()
	} else {
		hash = plumbing.NewHash(from)
	}
	iter, err := repo.Log(&git.LogOptions{From: hash})
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, "could not walk commit history", err).With("operation", "log").With("from", from)
	}
	defer iter.Close()

	var out []ports.CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if limit > 0 && len(out) >= limit {
			return storerErrStop
		}
		out = append(out, commitInfoOf(c))
		return nil
	})
	if err != nil && err != storerErrStop {
		return nil, errs.Wrap(errs.Internal, "log iteration failed", err).With("operation", "log")
	}
	return out, nil
}

func (p *Provider) Status(ctx context.Context, dir string) (bool, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return false, translateOpenErr(err, dir)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, errs.Wrap(errs.Internal, "could not open worktree", err).With("operation", "status")
	}
	st, err := wt.Status()
	if err != nil {
		return false, errs.Wrap(errs.Internal, "git status failed", err).With("operation", "status")
	}
	return st.IsClean(), nil
}

func (p *Provider) Walk(ctx context.Context, dir, treeOID string, fn func(ports.TreeEntry) error) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	tree, err := repo.TreeObject(plumbing.NewHash(treeOID))
	if err != nil {
		return errs.Wrap(errs.ObjectUnreach, "tree not found", err).With("operation", "walk").With("oid", treeOID)
	}
	return tree.Files().ForEach(func(f *object.File) error {
		return fn(ports.TreeEntry{Path: f.Name, OID: f.Hash.String(), IsDir: false})
	})
}

func (p *Provider) ReadBlob(ctx context.Context, dir, oid string) ([]byte, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, translateOpenErr(err, dir)
	}
	blob, err := repo.BlobObject(plumbing.NewHash(oid))
	if err != nil {
		return nil, errs.Wrap(errs.ObjectUnreach, "blob not found", err).With("operation", "readBlob").With("oid", oid)
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "could not open blob reader", err).With("operation", "readBlob")
	}
	defer reader.Close()
	buf := make([]byte, blob.Size)
	if _, err := readFull(reader, buf); err != nil {
		return nil, errs.Wrap(errs.Internal, "could not read blob contents", err).With("operation", "readBlob")
	}
	return buf, nil
}

func (p *Provider) ReadCommit(ctx context.Context, dir, oid string) (ports.CommitInfo, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return ports.CommitInfo{}, translateOpenErr(err, dir)
	}
	c, err := repo.CommitObject(plumbing.NewHash(oid))
	if err != nil {
		return ports.CommitInfo{}, errs.Wrap(errs.ObjectUnreach, "commit not found", err).
			With("operation", "readCommit").With("oid", oid)
	}
	return commitInfoOf(c), nil
}

func (p *Provider) ReadTree(ctx context.Context, dir, oid string) ([]ports.TreeEntry, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, translateOpenErr(err, dir)
	}
	tree, err := repo.TreeObject(plumbing.NewHash(oid))
	if err != nil {
		return nil, errs.Wrap(errs.ObjectUnreach, "tree not found", err).With("operation", "readTree").With("oid", oid)
	}
	out := make([]ports.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		out = append(out, ports.TreeEntry{
			Path:  e.Name,
			OID:   e.Hash.String(),
			IsDir: e.Mode == filemodeDir,
		})
	}
	return out, nil
}

func (p *Provider) WriteRef(ctx context.Context, dir, name, value string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	ref := plumbing.NewHashReference(plumbing.ReferenceName(name), plumbing.NewHash(value))
	if err := repo.Storer.SetReference(ref); err != nil {
		return errs.Wrap(errs.Internal, "could not write ref", err).With("operation", "writeRef").With("ref", name)
	}
	return nil
}

func (p *Provider) DeleteRef(ctx context.Context, dir, name string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	if err := repo.Storer.RemoveReference(plumbing.ReferenceName(name)); err != nil {
		return errs.Wrap(errs.Internal, "could not delete ref", err).With("operation", "deleteRef").With("ref", name)
	}
	return nil
}

func (p *Provider) ListRefs(ctx context.Context, dir string) ([]ports.RefEntry, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, translateOpenErr(err, dir)
	}
	iter, err := repo.References()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "could not list refs", err).With("operation", "listRefs")
	}
	defer iter.Close()
	var out []ports.RefEntry
	err = iter.ForEach(func(r *plumbing.Reference) error {
		if r.Type() != plumbing.HashReference {
			return nil
		}
		out = append(out, ports.RefEntry{Name: r.Name().String(), OID: r.Hash().String()})
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "ref iteration failed", err).With("operation", "listRefs")
	}
	return out, nil
}

func (p *Provider) ListBranches(ctx context.Context, dir string) ([]string, error) {
	refs, err := p.ListRefs(ctx, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range refs {
		if name := plumbing.ReferenceName(r.Name); name.IsBranch() {
			out = append(out, name.Short())
		}
	}
	return out, nil
}

func (p *Provider) ListTags(ctx context.Context, dir string) ([]string, error) {
	refs, err := p.ListRefs(ctx, dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range refs {
		name := plumbing.ReferenceName(r.Name)
		if name.IsTag() {
			out = append(out, name.Short())
		}
	}
	return out, nil
}

func (p *Provider) ResolveRef(ctx context.Context, dir, ref string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", translateOpenErr(err, dir)
	}
	h, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", errs.Wrap(errs.BranchNotFound, "could not resolve ref", err).
			With("operation", "resolveRef").With("ref", ref)
	}
	return h.String(), nil
}

func (p *Provider) ListRemotes(ctx context.Context, dir string) (map[string]string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return nil, translateOpenErr(err, dir)
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "could not list remotes", err).With("operation", "listRemotes")
	}
	out := map[string]string{}
	for _, r := range remotes {
		cfg := r.Config()
		if len(cfg.URLs) > 0 {
			out[cfg.Name] = cfg.URLs[0]
		}
	}
	return out, nil
}

func (p *Provider) Add(ctx context.Context, dir string, paths []string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errs.Wrap(errs.Internal, "could not open worktree", err).With("operation", "add")
	}
	if len(paths) == 0 {
		return wt.AddWithOptions(&git.AddOptions{All: true})
	}
	for _, path := range paths {
		if _, err := wt.Add(path); err != nil {
			return errs.Wrap(errs.Internal, "git add failed", err).With("operation", "add").With("path", path)
		}
	}
	return nil
}

func (p *Provider) Remove(ctx context.Context, dir string, paths []string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errs.Wrap(errs.Internal, "could not open worktree", err).With("operation", "remove")
	}
	for _, path := range paths {
		if _, err := wt.Remove(path); err != nil {
			return errs.Wrap(errs.Internal, "git rm failed", err).With("operation", "remove").With("path", path)
		}
	}
	return nil
}

func (p *Provider) Checkout(ctx context.Context, dir, ref string, create bool) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errs.Wrap(errs.Internal, "could not open worktree", err).With("operation", "checkout")
	}
	opts := &git.CheckoutOptions{Create: create}
	if h := plumbing.NewHash(ref); !h.IsZero() && len(ref) == 40 {
		opts.Hash = h
	} else {
		opts.Branch = plumbing.NewBranchReferenceName(ref)
	}
	if err := wt.Checkout(opts); err != nil {
		return errs.Wrap(errs.BranchNotFound, "checkout failed", err).With("operation", "checkout").With("ref", ref)
	}
	return nil
}

func (p *Provider) ShallowFetchDepth(ctx context.Context, dir, url, branch string, depth int, opts ports.NetOpts) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	err = p.withTimeout(ctx, func(inner context.Context) error {
		fo := &git.FetchOptions{
			Auth:  authTransport(opts),
			Depth: depth,
		}
		if branch != "" {
			fo.RefSpecs = []config.RefSpec{
				config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch)),
			}
		}
		err := repo.FetchContext(inner, fo)
		if err == git.NoErrAlreadyUpToDate {
			return nil
		}
		return err
	})
	return translateNetErr(err, "shallowFetchDepth", dir)
}

func (p *Provider) FetchTags(ctx context.Context, dir, url string, opts ports.NetOpts) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return translateOpenErr(err, dir)
	}
	err = p.withTimeout(ctx, func(inner context.Context) error {
		err := repo.FetchContext(inner, &git.FetchOptions{Auth: authTransport(opts), Tags: git.AllTags})
		if err == git.NoErrAlreadyUpToDate {
			return nil
		}
		return err
	})
	return translateNetErr(err, "fetchTags", dir)
}

var _ ports.GitProvider = (*Provider)(nil)
