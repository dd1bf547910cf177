// Package ports defines every external collaborator the core consumes, per
// spec §1 and §6. The core never reaches for a concrete Git library, relay
// client, filesystem, or signer directly — it is handed implementations of
// these interfaces. internal/gitplumbing and internal/memfs ship reference
// implementations of GitProvider and FS (over go-git and afero respectively);
// memfs is used in this module's own tests, and gitplumbing is the
// reference GitProvider-shaped implementation over go-git, the way the teacher's gitdir
// package is the reference GitProvider-shaped implementation over go-git.
package ports

import (
	"context"
	"os"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// NetOpts are accepted by every network-bearing GitProvider method (spec §4.3).
type NetOpts struct {
	// CorsProxy overrides the default CORS proxy; nil disables it entirely.
	CorsProxy *string
	// HTTP is an opaque transport override (e.g. an outer NIP-98 signer),
	// passed along to every network-bearing method.
	HTTP   any
	Signal context.Context
}

// RefEntry is one row of a ref listing (branch, tag, or HEAD).
type RefEntry struct {
	Name string
	OID  string
}

// CommitInfo is the subset of commit metadata the core needs.
type CommitInfo struct {
	OID            string
	TreeOID        string
	ParentOIDs     []string
	AuthorName     string
	AuthorEmail    string
	AuthorWhen     time.Time
	CommitterName  string
	CommitterEmail string
	CommitterWhen  time.Time
	Message        string
}

// TreeEntry is one entry of a resolved tree (file or subdirectory).
type TreeEntry struct {
	Path  string
	OID   string
	IsDir bool
}

// GitProvider is the narrow-but-complete plumbing surface from spec §4.3.
type GitProvider interface {
	Clone(ctx context.Context, dir, url string, opts NetOpts) error
	Fetch(ctx context.Context, dir string, refspecs []string, opts NetOpts) error
	Push(ctx context.Context, dir string, refspecs []string, opts NetOpts) error
	// PushToURL pushes refspecs to url directly, bypassing whatever remote
	// dir has configured. The Push Router (spec §4.7) uses this for its
	// single alternate-mirror retry: without a URL-targeting primitive,
	// retrying Push again would just resend the identical failing push to
	// dir's configured remote.
	PushToURL(ctx context.Context, dir, url string, refspecs []string, opts NetOpts) error
	Pull(ctx context.Context, dir string, opts NetOpts) error
	Init(ctx context.Context, dir string) error
	Commit(ctx context.Context, dir, message, authorName, authorEmail string) (string, error)
	Log(ctx context.Context, dir, from string, limit int) ([]CommitInfo, error)
	Status(ctx context.Context, dir string) (clean bool, err error)

	Walk(ctx context.Context, dir, treeOID string, fn func(TreeEntry) error) error
	ReadBlob(ctx context.Context, dir, oid string) ([]byte, error)
	ReadCommit(ctx context.Context, dir, oid string) (CommitInfo, error)
	ReadTree(ctx context.Context, dir, oid string) ([]TreeEntry, error)

	WriteRef(ctx context.Context, dir, name, value string) error
	DeleteRef(ctx context.Context, dir, name string) error
	ListRefs(ctx context.Context, dir string) ([]RefEntry, error)
	ListBranches(ctx context.Context, dir string) ([]string, error)
	ListTags(ctx context.Context, dir string) ([]string, error)
	ResolveRef(ctx context.Context, dir, ref string) (string, error)
	ListRemotes(ctx context.Context, dir string) (map[string]string, error)

	Add(ctx context.Context, dir string, paths []string) error
	Remove(ctx context.Context, dir string, paths []string) error
	Checkout(ctx context.Context, dir, ref string, create bool) error

	// ShallowFetchDepth deepens a single branch's history to depth. Depth <= 0
	// means unbounded ("full").
	ShallowFetchDepth(ctx context.Context, dir, url, branch string, depth int, opts NetOpts) error
	// FetchTags fetches annotated/lightweight tags without altering branch depth.
	FetchTags(ctx context.Context, dir, url string, opts NetOpts) error
}

// EventIO is the relay-facing port used by C2/C4/C7 (spec §6).
type EventIO interface {
	FetchEvents(ctx context.Context, filters []nostr.Filter) ([]nostr.Event, error)
	PublishEvent(ctx context.Context, tmpl nostr.Event) (ok bool, err error)
	SignEvent(ctx context.Context, tmpl nostr.Event) (nostr.Event, error)
	GetCurrentPubkey(ctx context.Context) (string, bool)
}

// NostrClient is the lower-level relay port used by the thread subsystem (C8).
type NostrClient interface {
	Subscribe(ctx context.Context, filter nostr.Filter, onEvent func(nostr.Event)) (subID string, err error)
	Unsubscribe(ctx context.Context, subID string) error
	Publish(ctx context.Context, evt nostr.Event) (eventID string, err error)
}

// FS is the Unix-like filesystem port from spec §6. BlossomPusher is an
// optional extension interface: if an FS implementation also implements it,
// C7's optional mirror upload is enabled.
type FS interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte, perm os.FileMode) error
	MkdirAll(ctx context.Context, path string, perm os.FileMode) error
	ReadDir(ctx context.Context, path string) ([]os.FileInfo, error)
	Stat(ctx context.Context, path string) (os.FileInfo, error)
	Remove(ctx context.Context, path string) error
}

// BlossomProgress reports bytes uploaded so far during a mirror push.
type BlossomProgress func(uploaded, total int64)

// BlossomPusher is an optional FS extension enabling C7's content-addressed
// mirror upload.
type BlossomPusher interface {
	PushToBlossom(ctx context.Context, dir, endpoint string, onProgress BlossomProgress) error
}

// Signer is the signing capability, normally embedded in EventIO (spec §9:
// "model signing as a single signEvent capability").
type Signer interface {
	SignEvent(ctx context.Context, tmpl nostr.Event) (nostr.Event, error)
	GetPublicKey(ctx context.Context) (string, error)
}

// NIP05Resolver resolves a NIP-05 identifier to a pubkey. The core treats it
// as an injected port (like EventIO) rather than dialing HTTP itself.
type NIP05Resolver interface {
	Resolve(ctx context.Context, identifier string) (pubkey string, err error)
}

// ProtocolPreferenceStore is the pluggable "last successful URL per repoId"
// store used by the Push Router (spec §4.7).
type ProtocolPreferenceStore interface {
	Get(repoID string) (url string, ok bool)
	Set(repoID, url string)
}
