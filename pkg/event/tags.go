package event

import (
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// sanitizeRelay trims surrounding whitespace and strips a trailing slash for
// equality (letter case is left as given), per spec §3 ("relays[] (deduped, trailing-slash-stripped,
// validated ws/wss)") and §4.2 ("Relay values are stripped of trailing '/'
// on parse for equality").
func sanitizeRelay(raw string) string {
	return strings.TrimSuffix(strings.TrimSpace(raw), "/")
}

// isValidRelayURL reports whether raw looks like a ws:// or wss:// URL.
func isValidRelayURL(raw string) bool {
	return strings.HasPrefix(raw, "ws://") || strings.HasPrefix(raw, "wss://")
}

// dedupRelays sanitizes and deduplicates a relay list while preserving
// first-seen order.
func dedupRelays(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		s := sanitizeRelay(r)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// firstTagValue returns the first value (tag[1]) of the first tag whose
// name (tag[0]) equals key, or "" if none exists.
func firstTagValue(tags nostr.Tags, key string) string {
	t := tags.GetFirst(key)
	if t == nil || len(*t) < 2 {
		return ""
	}
	return (*t)[1]
}

// allTagValues returns tag[1] for every tag named key, in order.
func allTagValues(tags nostr.Tags, key string) []string {
	var out []string
	for _, t := range tags {
		if len(t) >= 2 && t[0] == key {
			out = append(out, t[1])
		}
	}
	return out
}

// hasTag reports whether any tag named key exists.
func hasTag(tags nostr.Tags, key string) bool {
	return tags.GetFirst(key) != nil
}

// parseCreatedAt coerces created_at from either an int64 seconds value or a
// numeric string, per spec §4.2. now is substituted when raw is empty,
// documenting the degradation spec calls out.
func parseCreatedAt(raw string, now nostr.Timestamp) nostr.Timestamp {
	if raw == "" {
		return now
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return now
	}
	return nostr.Timestamp(n)
}
