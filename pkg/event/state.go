package event

import (
	"sort"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
)

// State is the parsed RepoState entity from spec §3.
type State struct {
	base

	D    string
	Refs map[string]string // name -> value ("HEAD", "refs/heads/*", "refs/tags/*", "refs/tags/*^{}")
}

func (s *State) Address() string {
	return strconv.Itoa(s.Raw.Kind) + ":" + s.Raw.PubKey + ":" + s.D
}

func isRefName(name string) bool {
	return name == "HEAD" ||
		strings.HasPrefix(name, "refs/heads/") ||
		strings.HasPrefix(name, "refs/tags/")
}

// BuildState produces an unsigned RepoState template.
func BuildState(kinds Kinds, d string, refs map[string]string, now nostr.Timestamp) nostr.Event {
	var tags nostr.Tags
	tags = append(tags, nostr.Tag{"d", d})

	// Stable iteration: sort keys so repeated builds are byte-identical.
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tags = append(tags, nostr.Tag{name, refs[name]})
	}
	return BuildTemplate(kinds.State, tags, "", now)
}

// ParseState parses a signed event into a State record.
func ParseState(evt nostr.Event) *State {
	s := &State{base: base{Raw: evt}, Refs: map[string]string{}}
	s.D = firstTagValue(evt.Tags, "d")
	for _, t := range evt.Tags {
		if len(t) < 2 {
			continue
		}
		if isRefName(t[0]) {
			s.Refs[t[0]] = t[1]
		}
	}
	return s
}

// ValidateState checks the peeled-tag invariant from spec §3: "for every
// refs/tags/*^{} there exists the corresponding refs/tags/*".
func ValidateState(r Record) []ValidationIssue {
	s, ok := r.(*State)
	if !ok {
		return []ValidationIssue{{Path: "$", Message: "not a State"}}
	}
	var issues []ValidationIssue
	if s.D == "" {
		issues = append(issues, ValidationIssue{Path: "$.tags.d", Message: "d tag is required"})
	}
	for name := range s.Refs {
		if strings.HasSuffix(name, "^{}") {
			base := strings.TrimSuffix(name, "^{}")
			if _, ok := s.Refs[base]; !ok {
				issues = append(issues, ValidationIssue{Path: "$.refs[" + name + "]", Message: "peeled tag has no corresponding " + base})
			}
		}
	}
	return issues
}

// AutoHead implements spec §3's auto-HEAD policy and §9's pinned
// lexicographic tie-break: prefer refs/heads/master, then refs/heads/main,
// then the lexicographically first head if HEAD is absent or unresolvable.
func AutoHead(s *State) string {
	if head, ok := s.Refs["HEAD"]; ok && head != "" {
		return head
	}
	if _, ok := s.Refs["refs/heads/master"]; ok {
		return "refs/heads/master"
	}
	if _, ok := s.Refs["refs/heads/main"]; ok {
		return "refs/heads/main"
	}
	var heads []string
	for name := range s.Refs {
		if strings.HasPrefix(name, "refs/heads/") {
			heads = append(heads, name)
		}
	}
	if len(heads) == 0 {
		return ""
	}
	sort.Strings(heads)
	return heads[0]
}

// Branches reconstructs the branch name list from the ref map (spec §4.4).
func (s *State) Branches() []string {
	var out []string
	for name := range s.Refs {
		if b := strings.TrimPrefix(name, "refs/heads/"); b != name {
			out = append(out, b)
		}
	}
	sort.Strings(out)
	return out
}

// Tags reconstructs the non-peeled tag name list from the ref map (spec §4.4).
func (s *State) Tags() []string {
	var out []string
	for name := range s.Refs {
		if strings.HasSuffix(name, "^{}") {
			continue
		}
		if t := strings.TrimPrefix(name, "refs/tags/"); t != name {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
