// Package pushrouter implements spec §4.7's Push Router: push partitions its
// refspecs into PR-class refs (signed Patch events) and normal refs
// (ordinary provider push), with optional mirror upload and state
// publication afterward. The partition-then-delegate shape is grounded on
// the teacher's pkg/storage/transaction/pullrequest.go, which already models
// "commit to a branch, then hand off to a PR-creating provider" — here the
// "PR" is a signed Nostr Patch event rather than a vendor API call.
package pushrouter

import (
	"context"
	"strings"
	"time"

	"github.com/fluxcd/go-git-providers/gitprovider"
	log "github.com/sirupsen/logrus"

	"github.com/nbd-wtf/go-nostr"

	"github.com/nostr-git/ngit-core/internal/gitplumbing"
	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/event"
	"github.com/nostr-git/ngit-core/pkg/patchengine"
	"github.com/nostr-git/ngit-core/pkg/ports"
	"github.com/nostr-git/ngit-core/pkg/threads"
)

// defaultPatchContent is spec §4.7's fallback "full file patch vs parent":
// diff oid's tree against parentOID's tree (or the empty tree when there is
// no parent) and concatenate the per-file unified diffs, per §4.6 steps 1-3.
func defaultPatchContent(ctx context.Context, provider ports.GitProvider, dir, oid, parentOID string) (string, error) {
	commit, err := provider.ReadCommit(ctx, dir, oid)
	if err != nil {
		return "", errs.Wrap(errs.ObjectUnreach, "could not read commit for default patch content", err).
			With("operation", "defaultPatchContent").With("commit", oid)
	}

	parentTree := gitplumbing.EmptyTreeOID
	if parentOID != "" {
		parentCommit, err := provider.ReadCommit(ctx, dir, parentOID)
		if err != nil {
			return "", errs.Wrap(errs.ObjectUnreach, "could not read parent commit for default patch content", err).
				With("operation", "defaultPatchContent").With("commit", parentOID)
		}
		parentTree = parentCommit.TreeOID
	}

	changes, err := patchengine.ComputeFileChanges(ctx, provider, dir, parentTree, commit.TreeOID)
	if err != nil {
		return "", err
	}
	return patchengine.MultiFilePatch(ctx, provider, dir, changes)
}

// prRefPrefix identifies PR-class refspecs per spec §4.7.
const prRefPrefix = "refs/heads/pr/"

// PullRequestSpec is the messaging interface between the router and a
// PullRequestProvider, mirroring the teacher's
// pkg/storage/transaction/pullrequest.go PullRequestSpec: everything a
// vendor-hosted (GitHub/GitLab/...) repository needs to open a PR once a
// normal-class push has landed a merge branch, for repos that are PR-hosted
// rather than fully Nostr-native.
type PullRequestSpec interface {
	GetMainBranch() string
	GetMergeBranch() string
	GetRepositoryRef() gitprovider.RepositoryRef
	GetLabels() []string
	GetAssignees() []string
	GetMilestone() string
}

// GenericPullRequestSpec implements PullRequestSpec, mirroring the
// teacher's GenericPullRequestSpec.
type GenericPullRequestSpec struct {
	MainBranch    string
	MergeBranch   string
	RepositoryRef gitprovider.RepositoryRef
	Labels        []string
	Assignees     []string
	Milestone     string
}

func (s GenericPullRequestSpec) GetMainBranch() string                       { return s.MainBranch }
func (s GenericPullRequestSpec) GetMergeBranch() string                      { return s.MergeBranch }
func (s GenericPullRequestSpec) GetRepositoryRef() gitprovider.RepositoryRef { return s.RepositoryRef }
func (s GenericPullRequestSpec) GetLabels() []string                         { return s.Labels }
func (s GenericPullRequestSpec) GetAssignees() []string                      { return s.Assignees }
func (s GenericPullRequestSpec) GetMilestone() string                        { return s.Milestone }

// PullRequestProvider opens a pull request against a vendor-hosted
// repository, mirroring the teacher's PullRequestProvider interface
// (CreatePullRequest(ctx, spec) error) exactly. It is optional: a push
// with no Options.VendorPR set never touches this path.
type PullRequestProvider interface {
	CreatePullRequest(ctx context.Context, spec PullRequestSpec) error
}

// inMemoryProtocolStore is the default ports.ProtocolPreferenceStore: an
// append-latest-wins in-process map, per spec §4.7/§5 ("injectable
// {get,set} store (default in-memory)").
type inMemoryProtocolStore struct {
	m map[string]string
}

func NewInMemoryProtocolStore() ports.ProtocolPreferenceStore {
	return &inMemoryProtocolStore{m: map[string]string{}}
}

func (s *inMemoryProtocolStore) Get(repoID string) (string, bool) {
	v, ok := s.m[repoID]
	return v, ok
}

func (s *inMemoryProtocolStore) Set(repoID, url string) {
	s.m[repoID] = url
}

// GetPatchContent composes the diff content for one PR-class push. Options
// may override it; the package's defaultPatchContent is used otherwise.
type GetPatchContent func(ctx context.Context, dir, oid, parentOID string) (string, error)

// Options configures one Push call.
type Options struct {
	Dir      string
	RepoAddr string
	RepoID   string // repoId (the "d" segment); used for protocol preference, alternate-mirror lookup, and state-event publication
	Refspecs []string
	Branch   string // BaseBranch for PR-class patch events (spec §4.7 "t base:<branch>")

	NetOpts ports.NetOpts

	// GetPatchContent overrides the default per-commit diff composition.
	GetPatchContent GetPatchContent

	// Recipients are additional p-tag targets (announcement owner +
	// maintainers) merged with thread-enrichment participants.
	Recipients []string

	// PostPush options (spec §4.7 "Post-push options").
	EmitStatus        bool
	StatusKind        *event.StatusKind // nil = StatusApplied default
	RootThreadID      string
	ParticipantWindow time.Duration // default 200ms, per C8

	// FS optionally provides the mirror-upload extension (ports.BlossomPusher);
	// PublishMirror is a no-op when FS is nil or doesn't implement it.
	FS             ports.FS
	PublishMirror  bool
	MirrorEndpoint string
	MirrorProgress ports.BlossomProgress

	PublishState bool
	StateRefs    map[string]string

	// AlternateCloneURLs is consulted when the normal-class provider push
	// fails and RepoID is set; the router tries exactly one
	// alternate per spec §4.7.
	AlternateCloneURLs []string

	// PullRequests and VendorPR wire the vendor-fallback path for
	// PR-hosted (non-Nostr-native) repositories: once the normal-class push
	// lands, if both are set the router asks PullRequests to open a PR
	// described by VendorPR. Either left nil skips this step entirely.
	PullRequests PullRequestProvider
	VendorPR     PullRequestSpec
}

// Result reports what the router actually did.
type Result struct {
	PatchEvents  []nostr.Event
	NormalPushed []string
	UsedURL      string
	Warnings     []string // partial-failure semantics, spec §7
	StatusEvent  *nostr.Event
	StateEvent   *nostr.Event
}

// Router partitions and executes pushes per spec §4.7.
type Router struct {
	Provider ports.GitProvider
	Events   ports.EventIO
	Kinds    event.Kinds
	Threads  *threads.Subscriber // may be nil if participant enrichment is unused
	Protocol ports.ProtocolPreferenceStore
}

func New(provider ports.GitProvider, events ports.EventIO, kinds event.Kinds) *Router {
	return &Router{
		Provider: provider,
		Events:   events,
		Kinds:    kinds,
		Protocol: NewInMemoryProtocolStore(),
	}
}

// Push partitions opts.Refspecs per spec §4.7 and executes both classes.
func (r *Router) Push(ctx context.Context, opts Options, now nostr.Timestamp) (Result, error) {
	prSpecs, normalSpecs := partition(opts.Refspecs)

	var res Result

	for _, spec := range prSpecs {
		evt, err := r.pushPRRef(ctx, opts, spec, now)
		if err != nil {
			return res, err
		}
		res.PatchEvents = append(res.PatchEvents, evt)
	}

	if len(normalSpecs) > 0 {
		url, err := r.pushNormalRefs(ctx, opts, normalSpecs)
		if err != nil {
			return res, err
		}
		res.NormalPushed = normalSpecs
		res.UsedURL = url
		if opts.RepoID != "" && url != "" && r.Protocol != nil {
			r.Protocol.Set(opts.RepoID, url)
		}
	}

	r.postPush(ctx, opts, &res, now)

	return res, nil
}

// partition splits refspecs into PR-class (refs/heads/pr/*) and normal
// classes per spec §4.7.
func partition(refspecs []string) (pr, normal []string) {
	for _, spec := range refspecs {
		local := spec
		if i := strings.Index(spec, ":"); i >= 0 {
			local = spec[:i]
		}
		if strings.HasPrefix(local, prRefPrefix) {
			pr = append(pr, spec)
		} else {
			normal = append(normal, spec)
		}
	}
	return pr, normal
}

// pushPRRef resolves one PR-class refspec's local ref to an oid, reads its
// commit metadata, composes patch content, and emits a signed Patch event.
func (r *Router) pushPRRef(ctx context.Context, opts Options, spec string, now nostr.Timestamp) (nostr.Event, error) {
	localRef := spec
	if i := strings.Index(spec, ":"); i >= 0 {
		localRef = spec[:i]
	}

	oid, err := r.Provider.ResolveRef(ctx, opts.Dir, localRef)
	if err != nil {
		return nostr.Event{}, errs.Wrap(errs.BranchNotFound, "could not resolve PR ref for push", err).
			With("operation", "pushPRRef").With("ref", localRef)
	}

	commit, err := r.Provider.ReadCommit(ctx, opts.Dir, oid)
	if err != nil {
		return nostr.Event{}, errs.Wrap(errs.ObjectUnreach, "could not read PR ref commit", err).
			With("operation", "pushPRRef").With("ref", localRef)
	}
	var parentOID string
	if len(commit.ParentOIDs) > 0 {
		parentOID = commit.ParentOIDs[0]
	}

	content, err := r.composePatchContent(ctx, opts, oid, parentOID)
	if err != nil {
		return nostr.Event{}, err
	}

	recipients := append([]string{}, opts.Recipients...)
	if r.Threads != nil && opts.RootThreadID != "" {
		window := opts.ParticipantWindow
		if window <= 0 {
			window = threads.DefaultParticipantWindow
		}
		participants, err := r.Threads.CollectParticipants(ctx, opts.RepoAddr, opts.RootThreadID, window)
		if err != nil {
			log.WithError(err).Warn("pushrouter: participant enrichment failed, continuing without it")
		} else {
			recipients = append(recipients, participants...)
		}
	}

	tmpl, err := event.BuildPatch(r.Kinds, event.PatchBuildOptions{
		RepoAddr:     opts.RepoAddr,
		Diff:         content,
		Commit:       oid,
		ParentCommit: parentOID,
		Committer: &event.Committer{
			Name:     commit.CommitterName,
			Email:    commit.CommitterEmail,
			UnixTime: commit.CommitterWhen.Unix(),
		},
		BaseBranch: opts.Branch,
		Recipients: dedupStrings(recipients),
	}, now)
	if err != nil {
		return nostr.Event{}, err
	}

	signed, err := r.Events.SignEvent(ctx, tmpl)
	if err != nil {
		return nostr.Event{}, errs.Wrap(errs.Internal, "could not sign patch event", err).
			With("operation", "pushPRRef")
	}
	if ok, err := r.Events.PublishEvent(ctx, signed); err != nil || !ok {
		return nostr.Event{}, errs.Wrap(errs.NetworkError, "could not publish patch event", err).
			With("operation", "pushPRRef").With("ref", localRef)
	}
	return signed, nil
}

func (r *Router) composePatchContent(ctx context.Context, opts Options, oid, parentOID string) (string, error) {
	if opts.GetPatchContent != nil {
		return opts.GetPatchContent(ctx, opts.Dir, oid, parentOID)
	}
	return defaultPatchContent(ctx, r.Provider, opts.Dir, oid, parentOID)
}

// pushNormalRefs delegates to the provider port, then on failure retries
// once against a single alternate clone URL from discovery, per spec §4.7.
func (r *Router) pushNormalRefs(ctx context.Context, opts Options, specs []string) (string, error) {
	err := r.Provider.Push(ctx, opts.Dir, specs, opts.NetOpts)
	if err == nil {
		if url, ok := preferredURL(r.Protocol, opts); ok {
			return url, nil
		}
		return "", nil
	}

	log.WithError(err).WithField("repoId", opts.RepoID).Warn("pushrouter: normal push failed, trying one alternate mirror")

	if opts.RepoID == "" || len(opts.AlternateCloneURLs) == 0 {
		return "", errs.Wrap(errs.NetworkError, "push failed and no alternate mirror is known", err).
			With("operation", "pushNormalRefs")
	}

	alt := opts.AlternateCloneURLs[0]
	if altErr := r.Provider.PushToURL(ctx, opts.Dir, alt, specs, opts.NetOpts); altErr == nil {
		return alt, nil
	}
	return "", errs.Wrap(errs.NetworkError, "push failed against primary and alternate mirror", err).
		With("operation", "pushNormalRefs")
}

func preferredURL(store ports.ProtocolPreferenceStore, opts Options) (string, bool) {
	if store == nil || opts.RepoID == "" {
		return "", false
	}
	return store.Get(opts.RepoID)
}

// postPush runs the four optional post-push steps (status, mirror upload,
// vendor pull request, state); each is best-effort per
// spec §4.7/§7's partial-failure semantics: failures are recorded as
// warnings and never fail the overall push.
func (r *Router) postPush(ctx context.Context, opts Options, res *Result, now nostr.Timestamp) {
	if opts.EmitStatus {
		kind := event.StatusApplied
		if opts.StatusKind != nil {
			kind = *opts.StatusKind
		}
		recipients := append([]string{}, opts.Recipients...)
		if r.Threads != nil && opts.RootThreadID != "" {
			window := opts.ParticipantWindow
			if window <= 0 {
				window = threads.DefaultParticipantWindow
			}
			if participants, err := r.Threads.CollectParticipants(ctx, opts.RepoAddr, opts.RootThreadID, window); err == nil {
				recipients = append(recipients, participants...)
			}
		}
		tmpl, err := event.BuildStatus(r.Kinds, event.StatusBuildOptions{
			Kind:       kind,
			RootID:     opts.RootThreadID,
			Recipients: dedupStrings(recipients),
		}, now)
		if err != nil {
			res.Warnings = append(res.Warnings, "status: "+err.Error())
		} else if signed, err := r.Events.SignEvent(ctx, tmpl); err != nil {
			res.Warnings = append(res.Warnings, "status sign: "+err.Error())
		} else if ok, err := r.Events.PublishEvent(ctx, signed); err != nil || !ok {
			res.Warnings = append(res.Warnings, "status publish failed")
		} else {
			res.StatusEvent = &signed
		}
	}

	if opts.PublishMirror {
		if pusher, ok := opts.FS.(ports.BlossomPusher); ok {
			if err := pusher.PushToBlossom(ctx, opts.Dir, opts.MirrorEndpoint, opts.MirrorProgress); err != nil {
				res.Warnings = append(res.Warnings, "mirror upload: "+err.Error())
			}
		}
	}

	if opts.PullRequests != nil && opts.VendorPR != nil {
		if err := opts.PullRequests.CreatePullRequest(ctx, opts.VendorPR); err != nil {
			res.Warnings = append(res.Warnings, "vendor pull request: "+err.Error())
		}
	}

	if opts.PublishState {
		tmpl := event.BuildState(r.Kinds, opts.RepoID, opts.StateRefs, now)
		if signed, err := r.Events.SignEvent(ctx, tmpl); err != nil {
			res.Warnings = append(res.Warnings, "state sign: "+err.Error())
		} else if ok, err := r.Events.PublishEvent(ctx, signed); err != nil || !ok {
			res.Warnings = append(res.Warnings, "state publish failed")
		} else {
			res.StateEvent = &signed
		}
	}
}

func dedupStrings(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
