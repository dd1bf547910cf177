// Package profile implements spec §4.11's Profile Mint: a fresh,
// never-persisted keypair per (platform, username) pair encountered during
// an import, each signing its own kind-0 metadata event in-process.
package profile

import (
	"sync"

	"github.com/nbd-wtf/go-nostr"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/event"
)

const defaultAvatarURL = "https://nostr.build/default-avatar.png"

// Minted is one generated profile: the signed event plus the pubkey it was
// signed with (the private key is discarded immediately after signing and
// never exposed).
type Minted struct {
	Pubkey string
	Event  nostr.Event
}

// Mint generates and signs a fresh Profile per unique "<platform>:<username>"
// key, memoizing results so a platform/username pair encountered twice
// during one import reuses the same minted identity.
type Mint struct {
	Kinds event.Kinds

	mu     sync.Mutex
	minted map[string]Minted
}

func New(kinds event.Kinds) *Mint {
	return &Mint{Kinds: kinds, minted: map[string]Minted{}}
}

// key is the "<platform>:<username>" memoization key spec §4.11 names.
func key(platform, username string) string {
	return platform + ":" + username
}

// MintFor returns the minted profile for (platform, username), generating
// and signing one on first encounter and reusing it thereafter.
func (m *Mint) MintFor(platform, username string, now nostr.Timestamp) (Minted, error) {
	k := key(platform, username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.minted[k]; ok {
		return existing, nil
	}

	sk := nostr.GeneratePrivateKey()
	pub, err := nostr.GetPublicKey(sk)
	if err != nil {
		return Minted{}, errs.Wrap(errs.Internal, "could not derive public key for minted profile", err).
			With("operation", "mintProfile").With("platform", platform).With("username", username)
	}

	tmpl, err := event.BuildProfile(m.Kinds, event.ProfileBuildOptions{
		Name:     username + " (mirrored user from " + platform + ")",
		Picture:  defaultAvatarURL,
		Imported: true,
	}, now)
	if err != nil {
		return Minted{}, errs.Wrap(errs.Internal, "could not build profile template", err).
			With("operation", "mintProfile")
	}

	tmpl.PubKey = pub
	if err := tmpl.Sign(sk); err != nil {
		return Minted{}, errs.Wrap(errs.Internal, "could not sign minted profile", err).
			With("operation", "mintProfile")
	}

	minted := Minted{Pubkey: pub, Event: tmpl}
	m.minted[k] = minted
	return minted, nil
}

// Lookup returns the previously minted profile for (platform, username)
// without generating a new one.
func (m *Mint) Lookup(platform, username string) (Minted, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.minted[key(platform, username)]
	return v, ok
}
