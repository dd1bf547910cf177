package event

import (
	"github.com/nbd-wtf/go-nostr"
)

// Committer is the (name,email,unix-ts,tz-minutes) quintuple from spec §3.
type Committer struct {
	Name     string
	Email    string
	UnixTime int64
	TZOffset int // minutes
}

// Patch is the parsed Patch entity from spec §3.
type Patch struct {
	base

	RepoAddr      string
	Diff          string // the event's content: one unified-diff payload
	Commit        string
	ParentCommit  string
	Committer     *Committer
	PGPSig        string
	InReplyTo     string
	SeriesBase    string // from "t base:<branch>"
}

func (p *Patch) Address() string { return p.RepoAddr }

// PatchBuildOptions configures BuildPatch.
type PatchBuildOptions struct {
	RepoAddr     string
	Diff         string
	Commit       string
	ParentCommit string
	Committer    *Committer
	PGPSig       string
	InReplyTo    string
	BaseBranch   string
	Recipients   []string // p tags: announcement owner + maintainers, best-effort
}

// BuildPatch produces an unsigned Patch template. a (the "a" tag) is
// required by spec §4.2.
func BuildPatch(kinds Kinds, o PatchBuildOptions, now nostr.Timestamp) (nostr.Event, error) {
	if o.RepoAddr == "" {
		return nostr.Event{}, requireTag("a")
	}
	var tags nostr.Tags
	tags = append(tags, nostr.Tag{"a", o.RepoAddr})
	if o.Commit != "" {
		tags = append(tags, nostr.Tag{"commit", o.Commit})
	}
	if o.ParentCommit != "" {
		tags = append(tags, nostr.Tag{"parent-commit", o.ParentCommit})
	}
	if o.Committer != nil {
		tags = append(tags, nostr.Tag{"committer", o.Committer.Name, o.Committer.Email,
			itoa64(o.Committer.UnixTime), itoa(o.Committer.TZOffset)})
	}
	if o.PGPSig != "" {
		tags = append(tags, nostr.Tag{"pgp-sig", o.PGPSig})
	}
	if o.InReplyTo != "" {
		tags = append(tags, nostr.Tag{"in-reply-to", o.InReplyTo})
	}
	if o.BaseBranch != "" {
		tags = append(tags, nostr.Tag{"t", "base:" + o.BaseBranch})
	}
	for _, r := range o.Recipients {
		tags = append(tags, nostr.Tag{"p", r})
	}
	return BuildTemplate(kinds.Patch, tags, o.Diff, now), nil
}

// ParsePatch parses a signed event into a Patch record.
func ParsePatch(evt nostr.Event) *Patch {
	p := &Patch{base: base{Raw: evt}}
	p.RepoAddr = firstTagValue(evt.Tags, "a")
	p.Diff = evt.Content
	p.Commit = firstTagValue(evt.Tags, "commit")
	p.ParentCommit = firstTagValue(evt.Tags, "parent-commit")
	p.PGPSig = firstTagValue(evt.Tags, "pgp-sig")
	p.InReplyTo = firstTagValue(evt.Tags, "in-reply-to")

	if c := evt.Tags.GetFirst("committer"); c != nil && len(*c) >= 5 {
		tag := *c
		p.Committer = &Committer{
			Name:     tag[1],
			Email:    tag[2],
			UnixTime: atoi64(tag[3]),
			TZOffset: atoi(tag[4]),
		}
	}
	for _, branch := range allTagValues(evt.Tags, "t") {
		if len(branch) > 5 && branch[:5] == "base:" {
			p.SeriesBase = branch[5:]
		}
	}
	return p
}

// ValidatePatch enforces spec §4.2's "Patch requires a".
func ValidatePatch(r Record) []ValidationIssue {
	p, ok := r.(*Patch)
	if !ok {
		return []ValidationIssue{{Path: "$", Message: "not a Patch"}}
	}
	if p.RepoAddr == "" {
		return []ValidationIssue{{Path: "$.tags.a", Message: "a tag is required"}}
	}
	return nil
}
