package event

import "github.com/nbd-wtf/go-nostr"

// MergeResult is the outcome of a merge analysis, per spec §3/§4.6.
type MergeResult string

const (
	ResultClean    MergeResult = "clean"
	ResultFastFwd  MergeResult = "ff"
	ResultConflict MergeResult = "conflict"
)

// ConflictEntry is one per-file conflict record. Spec §9 flags this shape as
// an Open Question; we pin it to {path, ours, theirs, base} tuples per the
// implementer guidance there.
type ConflictEntry struct {
	Path   string
	Ours   string
	Theirs string
	Base   string
}

// MergeMetadata is the parsed MergeMetadata/ConflictMetadata entity from
// spec §3. IsConflict distinguishes which of the two addressable kinds the
// event was built/parsed as.
type MergeMetadata struct {
	base

	RepoAddr     string
	RootID       string // root "e"
	BaseBranch   string
	TargetBranch string
	Result       MergeResult
	Conflicts    []ConflictEntry
	IsConflict   bool
}

func (m *MergeMetadata) Address() string { return m.RepoAddr }

type MergeMetadataBuildOptions struct {
	RepoAddr     string
	RootID       string
	BaseBranch   string
	TargetBranch string
	Result       MergeResult
	Conflicts    []ConflictEntry
	IsConflict   bool
}

// BuildMergeMetadata produces an unsigned MergeMetadata/ConflictMetadata
// template. a and root e are required per spec §4.2.
func BuildMergeMetadata(kinds Kinds, o MergeMetadataBuildOptions, now nostr.Timestamp) (nostr.Event, error) {
	if o.RepoAddr == "" {
		return nostr.Event{}, requireTag("a")
	}
	if o.RootID == "" {
		return nostr.Event{}, requireTag("e")
	}
	var tags nostr.Tags
	tags = append(tags, nostr.Tag{"a", o.RepoAddr})
	tags = append(tags, nostr.Tag{"e", o.RootID, "", "root"})
	if o.BaseBranch != "" {
		tags = append(tags, nostr.Tag{"base-branch", o.BaseBranch})
	}
	if o.TargetBranch != "" {
		tags = append(tags, nostr.Tag{"target-branch", o.TargetBranch})
	}
	if o.Result != "" {
		tags = append(tags, nostr.Tag{"result", string(o.Result)})
	}
	for _, c := range o.Conflicts {
		tags = append(tags, nostr.Tag{"conflict", c.Path, c.Ours, c.Theirs, c.Base})
	}
	kind := kinds.MergeMetadata
	if o.IsConflict {
		kind = kinds.ConflictMetadata
	}
	return BuildTemplate(kind, tags, "", now), nil
}

// ParseMergeMetadata parses a signed event into a MergeMetadata record.
func ParseMergeMetadata(kinds Kinds, evt nostr.Event) *MergeMetadata {
	m := &MergeMetadata{
		base:         base{Raw: evt},
		RepoAddr:     firstTagValue(evt.Tags, "a"),
		BaseBranch:   firstTagValue(evt.Tags, "base-branch"),
		TargetBranch: firstTagValue(evt.Tags, "target-branch"),
		Result:       MergeResult(firstTagValue(evt.Tags, "result")),
		IsConflict:   evt.Kind == kinds.ConflictMetadata,
	}
	for _, t := range evt.Tags {
		if len(t) >= 4 && t[0] == "e" && t[3] == "root" {
			m.RootID = t[1]
		}
		if len(t) >= 5 && t[0] == "conflict" {
			m.Conflicts = append(m.Conflicts, ConflictEntry{Path: t[1], Ours: t[2], Theirs: t[3], Base: t[4]})
		}
	}
	return m
}

// ValidateMergeMetadata enforces spec §4.2's "MergeMetadata/ConflictMetadata
// require a and root e".
func ValidateMergeMetadata(r Record) []ValidationIssue {
	m, ok := r.(*MergeMetadata)
	if !ok {
		return []ValidationIssue{{Path: "$", Message: "not a MergeMetadata"}}
	}
	var issues []ValidationIssue
	if m.RepoAddr == "" {
		issues = append(issues, ValidationIssue{Path: "$.tags.a", Message: "a tag is required"})
	}
	if m.RootID == "" {
		issues = append(issues, ValidationIssue{Path: "$.tags.e", Message: "root e tag is required"})
	}
	return issues
}
