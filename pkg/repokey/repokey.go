// Package repokey normalizes any accepted repo-id form (naddr, npub+name,
// hex+name, NIP-05+name, bare pubkey) into a canonical RepoKey, per spec
// §4.1. It is grounded on the nip19/nip05 sub-packages of
// github.com/nbd-wtf/go-nostr, the same library two repos in the retrieval
// pack depend on for this exact concern.
package repokey

import (
	"context"
	"regexp"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/event"
)

// Parts is the decomposed form of a RepoKey, per spec §3.
type Parts struct {
	Pubkey string // 64 lowercase hex chars
	Name   string
	Npub   string
	Nip05  string // only set if the input was a NIP-05 identifier
}

// RepoKey is the normalized handle from spec §3.
type RepoKey struct {
	Address string
	Parts   Parts
}

var hex64 = regexp.MustCompile(`^[0-9a-f]{64}$`)

// deprecatedShape matches legacy "<kind>.<64hex>" addresses, e.g.
// "30617.aaaa...".
var deprecatedShape = regexp.MustCompile(`^\d+\.[0-9a-f]{64}$`)

// Normalizer normalizes repo-id strings into RepoKeys. It owns a
// deprecation registry (spec §4.10) and an injected NIP-05 resolver port,
// consistent with the core never dialing HTTP directly (spec §1).
type Normalizer struct {
	Kinds        event.Kinds
	Deprecations *errs.DeprecationRegistry
	NIP05        NIP05Resolver
}

// NIP05Resolver resolves "name@domain" to a hex pubkey. The concrete
// implementation (HTTP GET to /.well-known/nostr.json) lives outside the
// core; this mirrors ports.NIP05Resolver but is scoped locally so this
// package has no dependency on pkg/ports.
type NIP05Resolver interface {
	Resolve(ctx context.Context, identifier string) (pubkey string, err error)
}

func NewNormalizer(kinds event.Kinds, resolver NIP05Resolver) *Normalizer {
	return &Normalizer{
		Kinds:        kinds,
		Deprecations: errs.NewDeprecationRegistry(),
		NIP05:        resolver,
	}
}

// Normalize accepts every input form from spec §4.1, resolving NIP-05
// identifiers asynchronously via the injected resolver.
func (n *Normalizer) Normalize(ctx context.Context, input string) (RepoKey, error) {
	owner, name, hadSep, err := n.split(input)
	if err != nil {
		return RepoKey{}, err
	}
	return n.normalizeParts(ctx, owner, name, hadSep, true)
}

// NormalizeSync rejects NIP-05 inputs with REQUIRES_ASYNC (spec §4.1).
func (n *Normalizer) NormalizeSync(input string) (RepoKey, error) {
	owner, name, hadSep, err := n.split(input)
	if err != nil {
		return RepoKey{}, err
	}
	return n.normalizeParts(context.Background(), owner, name, hadSep, false)
}

// split separates the owner portion from the name portion, honoring "only
// the first / or : separates owner from name" (spec §4.1).
func (n *Normalizer) split(input string) (owner, name string, hadSep bool, err error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", "", false, errs.New(errs.InvalidKey, "input is empty").With("operation", "normalize")
	}

	n.checkDeprecated(trimmed)

	sepIdx := -1
	for i, r := range trimmed {
		if r == '/' || r == ':' {
			sepIdx = i
			break
		}
	}
	if sepIdx < 0 {
		return trimmed, "", false, nil
	}
	owner = trimmed[:sepIdx]
	name = trimmed[sepIdx+1:]
	if owner == "" {
		return "", "", false, errs.New(errs.InvalidKey, "empty owner before separator").With("operation", "normalize")
	}
	if strings.TrimSpace(name) == "" {
		return "", "", false, errs.New(errs.InvalidKey, "empty name after separator").With("operation", "normalize")
	}
	return owner, name, true, nil
}

func (n *Normalizer) checkDeprecated(input string) {
	if n.Deprecations == nil {
		return
	}
	if deprecatedShape.MatchString(input) {
		n.Deprecations.Warn("deprecated-shape:"+input,
			"repokey: \""+input+"\" uses the deprecated \"<kind>.<pubkey>\" address shape; use \"<kind>:<pubkey>:<name>\" instead")
	}
}

// normalizeParts dispatches owner to the correct resolution strategy
// (naddr / npub / hex64 / nip05 / bare pubkey) and builds the canonical
// RepoKey.
func (n *Normalizer) normalizeParts(ctx context.Context, owner, name string, hadSep, allowAsync bool) (RepoKey, error) {
	name = canonicalizeName(name)

	switch {
	case strings.HasPrefix(owner, "naddr1"):
		return n.fromNaddr(owner)

	case strings.HasPrefix(owner, "npub1"):
		pk, err := decodeNpub(owner)
		if err != nil {
			return RepoKey{}, err
		}
		return n.build(pk, owner, name, ""), nil

	case hex64.MatchString(owner):
		if !hadSep {
			// A bare 64-hex string with no separator is indistinguishable
			// from an event id; spec §4.1 rejects this shape outright.
			return RepoKey{}, errs.New(errs.InvalidKey, "bare 64-hex input resembles an event id, not a pubkey").
				With("operation", "normalize").With("input", owner)
		}
		npub, _ := nip19.EncodePublicKey(owner)
		return n.build(owner, npub, name, ""), nil

	case looksLikeNip05(owner):
		if !allowAsync {
			return RepoKey{}, errs.New(errs.RequiresAsync, "NIP-05 input requires normalize(), not normalizeSync()").
				With("operation", "normalizeSync").With("input", owner)
		}
		if n.NIP05 == nil {
			return RepoKey{}, errs.New(errs.InvalidKey, "no NIP-05 resolver configured").With("operation", "normalize")
		}
		pk, err := n.NIP05.Resolve(ctx, owner)
		if err != nil || pk == "" {
			return RepoKey{}, errs.Wrap(errs.InvalidKey, "could not resolve NIP-05 identifier", err).
				With("operation", "normalize").With("input", owner)
		}
		npub, _ := nip19.EncodePublicKey(pk)
		return n.build(pk, npub, name, owner), nil

	default:
		return RepoKey{}, errs.New(errs.InvalidKey, "unrecognized repo key form").
			With("operation", "normalize").With("input", owner)
	}
}

func (n *Normalizer) build(pubkey, npub, name, nip05 string) RepoKey {
	addr := itoa(n.Kinds.Announcement) + ":" + pubkey + ":" + name
	return RepoKey{
		Address: addr,
		Parts: Parts{
			Pubkey: pubkey,
			Name:   name,
			Npub:   npub,
			Nip05:  nip05,
		},
	}
}

func (n *Normalizer) fromNaddr(naddr string) (RepoKey, error) {
	prefix, data, err := nip19.Decode(naddr)
	if err != nil || prefix != "naddr" {
		return RepoKey{}, errs.Wrap(errs.InvalidKey, "invalid naddr", err).With("operation", "normalize")
	}
	ep, ok := data.(nip19.EntityPointer)
	if !ok {
		return RepoKey{}, errs.New(errs.InvalidKey, "naddr did not decode to an entity pointer").With("operation", "normalize")
	}
	if ep.Kind != n.Kinds.Announcement {
		return RepoKey{}, errs.New(errs.InvalidKey, "naddr kind does not match the announcement kind").
			With("operation", "normalize").With("kind", ep.Kind)
	}
	npub, _ := nip19.EncodePublicKey(ep.PublicKey)
	return n.build(ep.PublicKey, npub, canonicalizeName(ep.Identifier), ""), nil
}

func decodeNpub(npub string) (string, error) {
	prefix, data, err := nip19.Decode(npub)
	if err != nil || prefix != "npub" {
		return "", errs.Wrap(errs.InvalidKey, "invalid npub", err).With("operation", "normalize")
	}
	pk, ok := data.(string)
	if !ok {
		return "", errs.New(errs.InvalidKey, "npub did not decode to a pubkey string").With("operation", "normalize")
	}
	return pk, nil
}

// canonicalizeName trims whitespace and collapses inner whitespace to
// hyphens, per spec §4.1.
func canonicalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	fields := strings.Fields(name)
	return strings.Join(fields, "-")
}

var nip05Shape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func looksLikeNip05(s string) bool {
	return nip05Shape.MatchString(s)
}

func itoa(i int) string {
	// local copy to avoid importing strconv just for this one call site
	// elsewhere in the package where a method receiver style reads cleaner.
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
