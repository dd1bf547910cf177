package event

import (
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"
)

// ProfileContent is the kind-0 metadata payload (NIP-01), serialized as the
// event's content field.
type ProfileContent struct {
	Name    string `json:"name"`
	About   string `json:"about,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Profile is the parsed Profile entity from spec §4.11.
type Profile struct {
	base
	Content ProfileContent
	Imported bool
}

func (p *Profile) Address() string { return "" }

// ProfileBuildOptions configures BuildProfile.
type ProfileBuildOptions struct {
	Name    string
	About   string
	Picture string
	// Imported marks the profile with the ["imported", ""] tag spec §4.11
	// names for mirrored accounts.
	Imported bool
}

// BuildProfile produces an unsigned kind-0 Profile template.
func BuildProfile(kinds Kinds, o ProfileBuildOptions, now nostr.Timestamp) (nostr.Event, error) {
	content, err := json.Marshal(ProfileContent{Name: o.Name, About: o.About, Picture: o.Picture})
	if err != nil {
		return nostr.Event{}, err
	}
	var tags nostr.Tags
	if o.Imported {
		tags = append(tags, nostr.Tag{"imported", ""})
	}
	return BuildTemplate(kinds.Profile, tags, string(content), now), nil
}

// ParseProfile parses a signed event into a Profile record.
func ParseProfile(evt nostr.Event) *Profile {
	p := &Profile{base: base{Raw: evt}}
	_ = json.Unmarshal([]byte(evt.Content), &p.Content)
	for _, t := range evt.Tags {
		if len(t) >= 1 && t[0] == "imported" {
			p.Imported = true
		}
	}
	return p
}
