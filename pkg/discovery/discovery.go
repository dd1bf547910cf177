// Package discovery resolves a repokey.RepoKey to clone endpoints and ref
// state by querying relays for the announcement and state events, per spec
// §4.4. The parallel-subscription fan-out is grounded on the teacher pack's
// rohankatakam-coderisk/internal/github/extractor.go ExtractRepository,
// which uses golang.org/x/sync/errgroup to run independent fetches
// concurrently and merge their results afterward.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/event"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

// Options configures one discoverRepo call.
type Options struct {
	TimeoutMs      int64
	AllowedPubkeys []string // empty = no whitelist
	Relays         []string
}

func (o *Options) Default() {
	if o.TimeoutMs == 0 {
		o.TimeoutMs = 8000
	}
}

// Result is discoverRepo's return value, per spec §4.4.
type Result struct {
	URLs         []string
	Branches     []string
	Tags         []string
	Announcement *event.Announcement
	State        *event.State
}

// Resolver discovers repo endpoints/state over relays and memoizes the
// resolved default branch per address, per spec §4.4's "Auto-HEAD and
// default-branch cache".
type Resolver struct {
	Events ports.EventIO
	Kinds  event.Kinds
	Codec  *event.Codec

	mu            sync.Mutex
	defaultBranch map[string]string
}

func New(events ports.EventIO, kinds event.Kinds) *Resolver {
	return &Resolver{
		Events:        events,
		Kinds:         kinds,
		Codec:         event.NewCodec(kinds),
		defaultBranch: map[string]string{},
	}
}

// DiscoverRepo opens parallel announcement/state subscriptions and merges
// the newest valid result of each, per spec §4.4.
func (r *Resolver) DiscoverRepo(ctx context.Context, key RepoKeyLike, opts Options) (Result, error) {
	opts.Default()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
	defer cancel()

	allowed := map[string]struct{}{}
	for _, pk := range opts.AllowedPubkeys {
		allowed[pk] = struct{}{}
	}

	var ann *event.Announcement
	var st *event.State

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		evts, err := r.Events.FetchEvents(gctx, []nostr.Filter{{
			Kinds: []int{r.Kinds.Announcement},
			Tags:  nostr.TagMap{"d": {key.Name()}},
		}})
		if err != nil {
			return nil // treated as "not found via this subscription"; the other may still succeed
		}
		ann = newestAnnouncement(r.Codec, evts, allowed)
		return nil
	})

	g.Go(func() error {
		evts, err := r.Events.FetchEvents(gctx, []nostr.Filter{{
			Kinds: []int{r.Kinds.State},
			Tags:  nostr.TagMap{"a": {key.Address()}},
		}})
		if err != nil {
			return nil
		}
		st = newestState(r.Codec, evts, allowed)
		return nil
	})

	_ = g.Wait() // errors are swallowed per-branch above; only the final nil-result check matters

	if ann == nil && st == nil {
		return Result{}, errs.New(errs.NotFound, "neither announcement nor state arrived before timeout").
			With("operation", "discoverRepo").With("address", key.Address())
	}

	res := Result{Announcement: ann, State: st}
	if ann != nil {
		for _, c := range ann.Clone {
			res.URLs = append(res.URLs, c.PrimaryURL)
		}
	}
	if st != nil {
		res.Branches = st.Branches()
		res.Tags = st.Tags()
		r.rememberDefaultBranch(key.Address(), event.AutoHead(st))
	}
	return res, nil
}

// DefaultBranch returns the memoized default branch for address, if any
// detection has succeeded for it before.
func (r *Resolver) DefaultBranch(address string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.defaultBranch[address]
	return b, ok
}

func (r *Resolver) rememberDefaultBranch(address, head string) {
	if head == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defaultBranch[address]; !ok {
		r.defaultBranch[address] = head
	}
}

// RepoKeyLike is the minimal surface discovery needs from a repokey.RepoKey,
// kept local so this package doesn't import pkg/repokey just for two fields.
type RepoKeyLike interface {
	Address() string
	Name() string
}

func newestAnnouncement(codec *event.Codec, evts []nostr.Event, allowed map[string]struct{}) *event.Announcement {
	var best *event.Announcement
	var bestAt nostr.Timestamp
	for _, evt := range evts {
		if !pubkeyAllowed(evt.PubKey, allowed) {
			continue
		}
		if _, err := codec.ParseAndValidate(evt); err != nil && event.ShouldValidateEvents() {
			continue
		}
		a := event.ParseAnnouncement(evt)
		if best == nil || evt.CreatedAt > bestAt {
			best, bestAt = a, evt.CreatedAt
		}
	}
	return best
}

func newestState(codec *event.Codec, evts []nostr.Event, allowed map[string]struct{}) *event.State {
	var best *event.State
	var bestAt nostr.Timestamp
	for _, evt := range evts {
		if !pubkeyAllowed(evt.PubKey, allowed) {
			continue
		}
		if _, err := codec.ParseAndValidate(evt); err != nil && event.ShouldValidateEvents() {
			continue
		}
		s := event.ParseState(evt)
		if best == nil || evt.CreatedAt > bestAt {
			best, bestAt = s, evt.CreatedAt
		}
	}
	return best
}

func pubkeyAllowed(pubkey string, allowed map[string]struct{}) bool {
	if len(allowed) == 0 {
		return true
	}
	_, ok := allowed[pubkey]
	return ok
}
