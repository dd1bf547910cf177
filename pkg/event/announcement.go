package event

import (
	"strconv"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nostr-git/ngit-core/pkg/errs"
)

// CloneEntry is one entry of RepoAnnouncement.Clone: a primary URL plus
// optional alias relay hints trailing it in the same tag (spec §3: "clone[]
// (ordered preference, each entry is (primary_url, alias_relays…))").
type CloneEntry struct {
	PrimaryURL   string
	AliasRelays  []string
}

// Announcement is the parsed RepoAnnouncement entity from spec §3.
type Announcement struct {
	base

	D                  string
	Name               string
	Description        string
	Web                []string
	Clone              []CloneEntry
	Relays             []string
	Maintainers        []string
	Hashtags           []string
	EarliestUniqueCommit string
}

// Address reconstructs the <kind>:<pubkey>:<d> coordinate for this
// announcement, per spec §3's address form.
func (a *Announcement) Address() string {
	return strconv.Itoa(a.Raw.Kind) + ":" + a.Raw.PubKey + ":" + a.D
}

// BuildAnnouncement produces an unsigned template for a RepoAnnouncement.
// d must be non-empty per spec §3 ("Invariant: d present").
func BuildAnnouncement(kinds Kinds, a Announcement, now nostr.Timestamp) (nostr.Event, error) {
	if a.D == "" {
		return nostr.Event{}, errs.New(errs.InvalidInput, "announcement: missing required tag d").With("operation", "buildAnnouncement")
	}
	var tags nostr.Tags
	tags = append(tags, nostr.Tag{"d", a.D})
	if a.Name != "" {
		tags = append(tags, nostr.Tag{"name", a.Name})
	}
	if a.Description != "" {
		tags = append(tags, nostr.Tag{"description", a.Description})
	}
	for _, w := range a.Web {
		tags = append(tags, nostr.Tag{"web", w})
	}
	for _, c := range a.Clone {
		entry := append(nostr.Tag{"clone", c.PrimaryURL}, c.AliasRelays...)
		tags = append(tags, entry)
	}
	for _, r := range dedupRelays(a.Relays) {
		tags = append(tags, nostr.Tag{"relays", r})
	}
	for _, m := range a.Maintainers {
		tags = append(tags, nostr.Tag{"maintainers", m})
	}
	for _, h := range a.Hashtags {
		tags = append(tags, nostr.Tag{"t", h})
	}
	if a.EarliestUniqueCommit != "" {
		tags = append(tags, nostr.Tag{"r", a.EarliestUniqueCommit, "euc"})
	}
	return BuildTemplate(kinds.Announcement, tags, "", now), nil
}

// ParseAnnouncement parses a signed event into an Announcement record.
func ParseAnnouncement(evt nostr.Event) *Announcement {
	a := &Announcement{base: base{Raw: evt}}
	a.D = firstTagValue(evt.Tags, "d")
	a.Name = firstTagValue(evt.Tags, "name")
	a.Description = firstTagValue(evt.Tags, "description")
	a.Web = allTagValues(evt.Tags, "web")
	a.Maintainers = allTagValues(evt.Tags, "maintainers")
	a.Hashtags = allTagValues(evt.Tags, "t")

	for _, t := range evt.Tags {
		if len(t) >= 2 && t[0] == "clone" {
			entry := CloneEntry{PrimaryURL: t[1]}
			if len(t) > 2 {
				entry.AliasRelays = append([]string{}, t[2:]...)
			}
			a.Clone = append(a.Clone, entry)
		}
		if len(t) >= 3 && t[0] == "r" && t[2] == "euc" {
			a.EarliestUniqueCommit = t[1]
		}
	}
	a.Relays = dedupRelays(allTagValues(evt.Tags, "relays"))
	return a
}

// ValidateAnnouncement implements the Validator contract for Announcement.
func ValidateAnnouncement(r Record) []ValidationIssue {
	a, ok := r.(*Announcement)
	if !ok {
		return []ValidationIssue{{Path: "$", Message: "not an Announcement"}}
	}
	var issues []ValidationIssue
	if a.D == "" {
		issues = append(issues, ValidationIssue{Path: "$.tags.d", Message: "d tag is required"})
	}
	for i, rl := range a.Relays {
		if !isValidRelayURL(rl) {
			issues = append(issues, ValidationIssue{Path: pathIndex("$.tags.relays", i), Message: "relay must be ws:// or wss://"})
		}
	}
	return issues
}

func pathIndex(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

