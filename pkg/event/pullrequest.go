package event

import "github.com/nbd-wtf/go-nostr"

// PullRequest is the parsed PullRequest/PRUpdate entity from spec §3.
type PullRequest struct {
	base

	RepoAddr   string
	Commits    []string // "c" tags
	Clone      []string
	BranchName string
	MergeBase  string
	IsUpdate   bool
}

func (p *PullRequest) Address() string { return p.RepoAddr }

type PullRequestBuildOptions struct {
	RepoAddr   string
	Commits    []string
	Clone      []string
	BranchName string
	MergeBase  string
	IsUpdate   bool
	Body       string
}

// BuildPullRequest produces an unsigned PullRequest/PRUpdate template. a is
// required per spec §4.2.
func BuildPullRequest(kinds Kinds, o PullRequestBuildOptions, now nostr.Timestamp) (nostr.Event, error) {
	if o.RepoAddr == "" {
		return nostr.Event{}, requireTag("a")
	}
	var tags nostr.Tags
	tags = append(tags, nostr.Tag{"a", o.RepoAddr})
	for _, c := range o.Commits {
		tags = append(tags, nostr.Tag{"c", c})
	}
	for _, c := range o.Clone {
		tags = append(tags, nostr.Tag{"clone", c})
	}
	if o.BranchName != "" {
		tags = append(tags, nostr.Tag{"branch-name", o.BranchName})
	}
	if o.MergeBase != "" {
		tags = append(tags, nostr.Tag{"merge-base", o.MergeBase})
	}
	kind := kinds.PullRequest
	if o.IsUpdate {
		kind = kinds.PullRequestUpdate
	}
	return BuildTemplate(kind, tags, o.Body, now), nil
}

// ParsePullRequest parses a signed event into a PullRequest record.
func ParsePullRequest(kinds Kinds, evt nostr.Event) *PullRequest {
	return &PullRequest{
		base:       base{Raw: evt},
		RepoAddr:   firstTagValue(evt.Tags, "a"),
		Commits:    allTagValues(evt.Tags, "c"),
		Clone:      allTagValues(evt.Tags, "clone"),
		BranchName: firstTagValue(evt.Tags, "branch-name"),
		MergeBase:  firstTagValue(evt.Tags, "merge-base"),
		IsUpdate:   evt.Kind == kinds.PullRequestUpdate,
	}
}

// ValidatePullRequest enforces spec §4.2's "PullRequest/PRUpdate require a".
func ValidatePullRequest(r Record) []ValidationIssue {
	p, ok := r.(*PullRequest)
	if !ok {
		return []ValidationIssue{{Path: "$", Message: "not a PullRequest"}}
	}
	if p.RepoAddr == "" {
		return []ValidationIssue{{Path: "$.tags.a", Message: "a tag is required"}}
	}
	return nil
}
