package event

import (
	"github.com/nbd-wtf/go-nostr"
)

// Codec builds and parses every collaboration event kind for a fixed Kinds
// configuration, per spec §4.2. It is stateless beyond that configuration.
type Codec struct {
	Kinds Kinds
}

func NewCodec(kinds Kinds) *Codec {
	return &Codec{Kinds: kinds}
}

// ParseAny dispatches evt.Kind to the matching ParseX function and returns
// the resulting Record, or nil if the kind isn't one this codec recognizes.
func (c *Codec) ParseAny(evt nostr.Event) Record {
	k := c.Kinds
	switch evt.Kind {
	case k.Announcement:
		return ParseAnnouncement(evt)
	case k.State:
		return ParseState(evt)
	case k.Patch:
		return ParsePatch(evt)
	case k.Issue:
		return ParseIssue(evt)
	case k.PullRequest, k.PullRequestUpdate:
		return ParsePullRequest(k, evt)
	case k.MergeMetadata, k.ConflictMetadata:
		return ParseMergeMetadata(k, evt)
	case k.Label:
		return ParseLabel(evt)
	default:
		if s, ok := ParseStatus(k, evt); ok {
			return s
		}
		return nil
	}
}

// Validator returns the Validator function appropriate for evt.Kind, or nil.
func (c *Codec) Validator(evt nostr.Event) Validator {
	k := c.Kinds
	switch evt.Kind {
	case k.Announcement:
		return ValidateAnnouncement
	case k.State:
		return ValidateState
	case k.Patch:
		return ValidatePatch
	case k.Issue:
		return ValidateIssue
	case k.PullRequest, k.PullRequestUpdate:
		return ValidatePullRequest
	case k.MergeMetadata, k.ConflictMetadata:
		return ValidateMergeMetadata
	case k.Label:
		return ValidateLabel
	default:
		for _, sk := range k.StatusKinds() {
			if sk == evt.Kind {
				return ValidateStatus
			}
		}
		return nil
	}
}

// ParseAndValidate parses evt and, if ShouldValidateEvents() is true,
// asserts it. It returns (nil, err) if validation fails. For an unrecognized
// kind it returns (nil, nil), not an error, so pass-through consumers (like
// thread subscriptions) aren't broken by forward-compatible kinds; treating
// an unknown kind as EVENT_INVALID is left to the caller.
func (c *Codec) ParseAndValidate(evt nostr.Event) (Record, error) {
	r := c.ParseAny(evt)
	if r == nil {
		return nil, nil
	}
	if v := c.Validator(evt); v != nil {
		kindName := kindName(c.Kinds, evt.Kind)
		if err := AssertEvent(kindName, r, v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func kindName(k Kinds, kind int) string {
	switch kind {
	case k.Announcement:
		return "announcement"
	case k.State:
		return "state"
	case k.Patch:
		return "patch"
	case k.Issue:
		return "issue"
	case k.PullRequest:
		return "pull_request"
	case k.PullRequestUpdate:
		return "pull_request_update"
	case k.MergeMetadata:
		return "merge_metadata"
	case k.ConflictMetadata:
		return "conflict_metadata"
	case k.Label:
		return "label"
	case k.StatusOpen:
		return "status_open"
	case k.StatusApplied:
		return "status_applied"
	case k.StatusClosed:
		return "status_closed"
	case k.StatusDraft:
		return "status_draft"
	default:
		return "unknown"
	}
}
