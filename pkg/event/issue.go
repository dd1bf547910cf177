package event

import "github.com/nbd-wtf/go-nostr"

// Issue is the parsed Issue entity from spec §3.
type Issue struct {
	base

	RepoAddr   string
	Subject    string
	Labels     []string // from "t", or NIP-32 "L"/"l"
	Recipients []string // "p" tags
}

func (i *Issue) Address() string { return i.RepoAddr }

type IssueBuildOptions struct {
	RepoAddr   string
	Subject    string
	Body       string
	Labels     []string
	Recipients []string
}

// BuildIssue produces an unsigned Issue template. a is required.
func BuildIssue(kinds Kinds, o IssueBuildOptions, now nostr.Timestamp) (nostr.Event, error) {
	if o.RepoAddr == "" {
		return nostr.Event{}, requireTag("a")
	}
	var tags nostr.Tags
	tags = append(tags, nostr.Tag{"a", o.RepoAddr})
	if o.Subject != "" {
		tags = append(tags, nostr.Tag{"subject", o.Subject})
	}
	for _, l := range o.Labels {
		tags = append(tags, nostr.Tag{"t", l})
	}
	for _, r := range o.Recipients {
		tags = append(tags, nostr.Tag{"p", r})
	}
	return BuildTemplate(kinds.Issue, tags, o.Body, now), nil
}

// ParseIssue parses a signed event into an Issue record.
func ParseIssue(evt nostr.Event) *Issue {
	return &Issue{
		base:       base{Raw: evt},
		RepoAddr:   firstTagValue(evt.Tags, "a"),
		Subject:    firstTagValue(evt.Tags, "subject"),
		Labels:     allTagValues(evt.Tags, "t"),
		Recipients: allTagValues(evt.Tags, "p"),
	}
}

// ValidateIssue enforces spec §4.2's "Issue requires a".
func ValidateIssue(r Record) []ValidationIssue {
	i, ok := r.(*Issue)
	if !ok {
		return []ValidationIssue{{Path: "$", Message: "not an Issue"}}
	}
	if i.RepoAddr == "" {
		return []ValidationIssue{{Path: "$.tags.a", Message: "a tag is required"}}
	}
	return nil
}
