// Package threads implements spec §4.8's Collaboration Threads: subscribing
// to the patch/issue/status stream for a repo address and enriching
// participant sets for outbound events. Participant fan-out is grounded on
// pkg/discovery's errgroup-based parallel-subscription pattern (itself
// grounded on rohankatakam-coderisk/internal/github/extractor.go), applied
// here to a bounded collection window instead of a single best-of-two race.
package threads

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	"github.com/nostr-git/ngit-core/pkg/event"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

// DefaultParticipantWindow is the bounded collection window spec §4.8
// names ("default 200 ms").
const DefaultParticipantWindow = 200 * time.Millisecond

// Subscriber subscribes to the patch/issue/status stream for a repo address
// and collects thread participants, per spec §4.8.
type Subscriber struct {
	Client ports.NostrClient
	Events ports.EventIO
	Kinds  event.Kinds
	Codec  *event.Codec
}

func New(client ports.NostrClient, ev ports.EventIO, kinds event.Kinds) *Subscriber {
	return &Subscriber{Client: client, Events: ev, Kinds: kinds, Codec: event.NewCodec(kinds)}
}

// filterKinds is the set of kinds spec §4.8's coarse filter covers:
// "{patch, issue, status{open,applied,closed,draft}}".
func (s *Subscriber) filterKinds() []int {
	kinds := []int{s.Kinds.Patch, s.Kinds.Issue}
	kinds = append(kinds, s.Kinds.StatusKinds()...)
	return kinds
}

// Subscribe opens a coarse-kind relay subscription and forwards every event
// whose "a" tag suffix matches ":<repoId>" for address, post-filtering out
// invalid events when validation is on, per spec §4.8.
func (s *Subscriber) Subscribe(ctx context.Context, address string, onEvent func(nostr.Event)) (string, error) {
	suffix := addressSuffix(address)
	filter := nostr.Filter{Kinds: s.filterKinds()}

	return s.Client.Subscribe(ctx, filter, func(evt nostr.Event) {
		if !hasAddressSuffix(evt, suffix) {
			return
		}
		if event.ShouldValidateEvents() {
			if _, err := s.Codec.ParseAndValidate(evt); err != nil {
				return
			}
		}
		onEvent(evt)
	})
}

// Unsubscribe tears down a subscription started with Subscribe.
func (s *Subscriber) Unsubscribe(ctx context.Context, subID string) error {
	return s.Client.Unsubscribe(ctx, subID)
}

// CollectParticipants gathers the best-effort union of every "pubkey" and
// "p"-tag value observed on events anchored at rootID under address, within
// timeout, per spec §4.8.
func (s *Subscriber) CollectParticipants(ctx context.Context, address, rootID string, timeout time.Duration) ([]string, error) {
	if timeout <= 0 {
		timeout = DefaultParticipantWindow
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	seen := map[string]struct{}{}
	add := func(pk string) {
		if pk == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		seen[pk] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subID, err := s.Subscribe(gctx, address, func(evt nostr.Event) {
			if !anchoredAt(evt, rootID) {
				return
			}
			add(evt.PubKey)
			for _, p := range allPTagValues(evt) {
				add(p)
			}
		})
		if err != nil {
			return err
		}
		<-gctx.Done()
		return s.Unsubscribe(context.Background(), subID)
	})

	_ = g.Wait() // timeout/cancellation is the expected terminal condition, not an error

	out := make([]string, 0, len(seen))
	for pk := range seen {
		out = append(out, pk)
	}
	return out, nil
}

func addressSuffix(address string) string {
	return ":" + repoIDFromAddress(address)
}

// repoIDFromAddress extracts the trailing "d" segment (repoId) from an
// "<kind>:<pubkey>:<d>" address, per spec §4.8's "a tag suffix :<repoId>".
func repoIDFromAddress(address string) string {
	parts := strings.SplitN(address, ":", 3)
	if len(parts) < 3 {
		return address
	}
	return parts[2]
}

func hasAddressSuffix(evt nostr.Event, suffix string) bool {
	for _, t := range evt.Tags {
		if len(t) >= 2 && t[0] == "a" && strings.HasSuffix(t[1], suffix) {
			return true
		}
	}
	return false
}

func anchoredAt(evt nostr.Event, rootID string) bool {
	if rootID == "" {
		return true
	}
	for _, t := range evt.Tags {
		if len(t) >= 2 && t[0] == "e" && t[1] == rootID {
			return true
		}
	}
	return evt.ID == rootID
}

func allPTagValues(evt nostr.Event) []string {
	var out []string
	for _, t := range evt.Tags {
		if len(t) >= 2 && t[0] == "p" {
			out = append(out, t[1])
		}
	}
	return out
}
