package event

import "github.com/nbd-wtf/go-nostr"

// DefaultNamespace is the fallback NIP-32 namespace for marks with an
// unrecognized namespace, per spec §4.2 ("falls back to ugc").
const DefaultNamespace = "ugc"

// Label is one parsed NIP-32 label entity: namespace (L) + value (l), plus
// its targets.
type Label struct {
	base

	Namespace string
	Value     string
	Mark      string
	TargetE   []string
	TargetA   []string
	TargetP   []string
	TargetR   []string
	TargetT   []string
}

func (l *Label) Address() string {
	if len(l.TargetA) > 0 {
		return l.TargetA[0]
	}
	return ""
}

// BuildLabel produces an unsigned Label template targeting any mix of
// e/a/p/r/t per spec §3.
func BuildLabel(kinds Kinds, namespace, value, mark string, targetE, targetA, targetP, targetR, targetT []string, now nostr.Timestamp) nostr.Event {
	var tags nostr.Tags
	ltag := nostr.Tag{"l", value}
	if mark != "" {
		ltag = append(ltag, mark, namespace)
	} else if namespace != "" {
		ltag = append(ltag, "", namespace)
	}
	tags = append(tags, ltag)
	if namespace != "" {
		tags = append(tags, nostr.Tag{"L", namespace})
	}
	for _, e := range targetE {
		tags = append(tags, nostr.Tag{"e", e})
	}
	for _, a := range targetA {
		tags = append(tags, nostr.Tag{"a", a})
	}
	for _, p := range targetP {
		tags = append(tags, nostr.Tag{"p", p})
	}
	for _, r := range targetR {
		tags = append(tags, nostr.Tag{"r", r})
	}
	for _, t := range targetT {
		tags = append(tags, nostr.Tag{"t", t})
	}
	return BuildTemplate(kinds.Label, tags, "", now)
}

// ParseLabel parses a signed event into a Label record. Targets are taken
// only from the event's own e/a/p/r/t tags; nothing is derived from the
// carrier event's id or kind, so a label with no target tags has no targets.
func ParseLabel(evt nostr.Event) *Label {
	l := &Label{base: base{Raw: evt}}
	l.Namespace = firstTagValue(evt.Tags, "L")
	if lt := evt.Tags.GetFirst("l"); lt != nil {
		tag := *lt
		if len(tag) > 1 {
			l.Value = tag[1]
		}
		if len(tag) > 2 {
			l.Mark = tag[2]
		}
		if len(tag) > 3 && l.Namespace == "" {
			l.Namespace = tag[3]
		}
	}
	if l.Namespace == "" {
		l.Namespace = DefaultNamespace
	}
	l.TargetE = allTagValues(evt.Tags, "e")
	l.TargetA = allTagValues(evt.Tags, "a")
	l.TargetP = allTagValues(evt.Tags, "p")
	l.TargetR = allTagValues(evt.Tags, "r")
	l.TargetT = allTagValues(evt.Tags, "t")
	return l
}

// LabelSources groups the three origins of effective labels spec §4.2 names.
type LabelSources struct {
	Self     []Label
	External []Label
	LegacyT  []string
}

// MergedLabels is the computed union from spec §4.2's label-merge algorithm.
type MergedLabels struct {
	ByNamespace map[string]map[string]struct{}
	Flat        map[string]struct{} // "ns/value"
	LegacyT     map[string]struct{}
}

// MergeLabels computes byNamespace, flat, and legacyT from self/external/t
// sources, applying the ugc fallback namespace for unmarked entries.
func MergeLabels(sources LabelSources) MergedLabels {
	m := MergedLabels{
		ByNamespace: map[string]map[string]struct{}{},
		Flat:        map[string]struct{}{},
		LegacyT:     map[string]struct{}{},
	}
	add := func(ns, val string) {
		if ns == "" {
			ns = DefaultNamespace
		}
		if m.ByNamespace[ns] == nil {
			m.ByNamespace[ns] = map[string]struct{}{}
		}
		m.ByNamespace[ns][val] = struct{}{}
		m.Flat[ns+"/"+val] = struct{}{}
	}
	for _, l := range sources.Self {
		add(l.Namespace, l.Value)
	}
	for _, l := range sources.External {
		add(l.Namespace, l.Value)
	}
	for _, t := range sources.LegacyT {
		m.LegacyT[t] = struct{}{}
	}
	return m
}

// ValidateLabel always passes: the codec doesn't currently enforce a
// required tag for Label beyond what ParseLabel already defaults.
func ValidateLabel(r Record) []ValidationIssue {
	if _, ok := r.(*Label); !ok {
		return []ValidationIssue{{Path: "$", Message: "not a Label"}}
	}
	return nil
}
