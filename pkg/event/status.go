package event

import "github.com/nbd-wtf/go-nostr"

// StatusKind enumerates the four status states from spec §3.
type StatusKind int

const (
	StatusOpen StatusKind = iota
	StatusApplied
	StatusClosed
	StatusDraft
)

// Status is the parsed Status entity from spec §3.
type Status struct {
	base

	Kind            StatusKind
	RootID          string // "e root"
	ReplyID         string // "e reply"
	Recipients      []string
	MergeCommit     string
	AppliedAsCommits []string
}

func (s *Status) Address() string { return s.RootID }

func kindFor(kinds Kinds, k StatusKind) int {
	switch k {
	case StatusOpen:
		return kinds.StatusOpen
	case StatusApplied:
		return kinds.StatusApplied
	case StatusClosed:
		return kinds.StatusClosed
	default:
		return kinds.StatusDraft
	}
}

func statusKindOf(kinds Kinds, raw int) (StatusKind, bool) {
	switch raw {
	case kinds.StatusOpen:
		return StatusOpen, true
	case kinds.StatusApplied:
		return StatusApplied, true
	case kinds.StatusClosed:
		return StatusClosed, true
	case kinds.StatusDraft:
		return StatusDraft, true
	default:
		return 0, false
	}
}

// StatusBuildOptions configures BuildStatus.
type StatusBuildOptions struct {
	Kind             StatusKind
	RootID           string
	ReplyID          string
	Recipients       []string
	MergeCommit      string
	AppliedAsCommits []string
}

// BuildStatus produces an unsigned Status template. At least one e tag is
// required per spec §4.2; p tags "should" be included but aren't enforced.
func BuildStatus(kinds Kinds, o StatusBuildOptions, now nostr.Timestamp) (nostr.Event, error) {
	if o.RootID == "" && o.ReplyID == "" {
		return nostr.Event{}, requireTag("e")
	}
	var tags nostr.Tags
	if o.RootID != "" {
		tags = append(tags, nostr.Tag{"e", o.RootID, "", "root"})
	}
	if o.ReplyID != "" {
		tags = append(tags, nostr.Tag{"e", o.ReplyID, "", "reply"})
	}
	for _, p := range o.Recipients {
		tags = append(tags, nostr.Tag{"p", p})
	}
	if o.MergeCommit != "" {
		tags = append(tags, nostr.Tag{"merge-commit", o.MergeCommit})
	}
	for _, c := range o.AppliedAsCommits {
		tags = append(tags, nostr.Tag{"applied-as-commits", c})
	}
	return BuildTemplate(kindFor(kinds, o.Kind), tags, "", now), nil
}

// ParseStatus parses a signed event into a Status record. ok is false if the
// event's kind isn't one of the four status kinds.
func ParseStatus(kinds Kinds, evt nostr.Event) (*Status, bool) {
	k, ok := statusKindOf(kinds, evt.Kind)
	if !ok {
		return nil, false
	}
	s := &Status{base: base{Raw: evt}, Kind: k}
	for _, t := range evt.Tags {
		if len(t) < 2 || t[0] != "e" {
			continue
		}
		marker := ""
		if len(t) >= 4 {
			marker = t[3]
		}
		switch marker {
		case "root":
			s.RootID = t[1]
		case "reply":
			s.ReplyID = t[1]
		default:
			if s.RootID == "" {
				s.RootID = t[1]
			}
		}
	}
	s.Recipients = allTagValues(evt.Tags, "p")
	s.MergeCommit = firstTagValue(evt.Tags, "merge-commit")
	s.AppliedAsCommits = allTagValues(evt.Tags, "applied-as-commits")
	return s, true
}

// ValidateStatus enforces spec §4.2's "Status kinds require at least one e".
func ValidateStatus(r Record) []ValidationIssue {
	s, ok := r.(*Status)
	if !ok {
		return []ValidationIssue{{Path: "$", Message: "not a Status"}}
	}
	if s.RootID == "" && s.ReplyID == "" {
		return []ValidationIssue{{Path: "$.tags.e", Message: "at least one e tag is required"}}
	}
	// p tags are recommended but not required (spec: "should include p").
	return nil
}
