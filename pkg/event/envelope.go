package event

import (
	"encoding/json"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
)

// rawEnvelope mirrors the normative wire envelope from spec §6 but keeps
// created_at untyped so DecodeEnvelope can coerce either an int or a numeric
// string into a nostr.Timestamp, per spec §4.2.
type rawEnvelope struct {
	ID        string          `json:"id"`
	PubKey    string          `json:"pubkey"`
	CreatedAt json.RawMessage `json:"created_at"`
	Kind      int             `json:"kind"`
	Tags      nostr.Tags      `json:"tags"`
	Content   string          `json:"content"`
	Sig       string          `json:"sig"`
}

// DecodeEnvelope parses a wire event, coercing created_at from either a JSON
// number or a numeric string, and substituting now() when the field is
// absent entirely (spec §4.2's "documented degradation").
func DecodeEnvelope(raw []byte, now nostr.Timestamp) (nostr.Event, error) {
	var re rawEnvelope
	if err := json.Unmarshal(raw, &re); err != nil {
		return nostr.Event{}, fmt.Errorf("decode event envelope: %w", err)
	}

	var createdAtStr string
	if len(re.CreatedAt) > 0 {
		var asInt int64
		if err := json.Unmarshal(re.CreatedAt, &asInt); err == nil {
			createdAtStr = fmt.Sprintf("%d", asInt)
		} else {
			var asStr string
			if err := json.Unmarshal(re.CreatedAt, &asStr); err == nil {
				createdAtStr = asStr
			}
		}
	}

	return nostr.Event{
		ID:        re.ID,
		PubKey:    re.PubKey,
		CreatedAt: parseCreatedAt(createdAtStr, now),
		Kind:      re.Kind,
		Tags:      re.Tags,
		Content:   re.Content,
		Sig:       re.Sig,
	}, nil
}

// Record is implemented by every domain entity the codec builds/parses
// (Announcement, State, Patch, Issue, Status, PullRequest, MergeMetadata,
// ConflictMetadata, Label). It exposes the raw tags shadow spec §4.2 requires
// ("unknown tags survive on a raw.tags shadow").
type Record interface {
	// Address returns the repo address this record is scoped to, or "" if
	// the record doesn't carry one (e.g. a bare Label). A Status returns its
	// root event id instead.
	Address() string
	// RawTags is the full original tag list, including tags the codec didn't
	// promote to typed fields.
	RawTags() nostr.Tags
}

// base is embedded by every concrete Record to provide RawTags().
type base struct {
	Raw nostr.Event
}

func (b base) RawTags() nostr.Tags { return b.Raw.Tags }

// BuildTemplate returns an unsigned event template (no id/pubkey/sig; those
// are filled in by EventIO.SignEvent) with the given kind, tags, and
// content, stamped with now.
func BuildTemplate(kind int, tags nostr.Tags, content string, now nostr.Timestamp) nostr.Event {
	return nostr.Event{
		CreatedAt: now,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
}
