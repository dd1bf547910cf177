package event

import (
	"os"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

func TestBuildParseAnnouncementRoundTrip(t *testing.T) {
	kinds := DefaultKinds()
	tmpl, err := BuildAnnouncement(kinds, Announcement{
		D:     "demo",
		Name:  "Demo repo",
		Clone: []CloneEntry{{PrimaryURL: "https://example.com/demo.git"}},
		Relays: []string{"wss://relay.example/", "wss://relay.example"},
	}, nostr.Now())
	require.NoError(t, err)
	tmpl.PubKey = "aa"

	parsed := ParseAnnouncement(tmpl)
	require.Equal(t, "demo", parsed.D)
	require.Equal(t, "Demo repo", parsed.Name)
	require.Len(t, parsed.Clone, 1)
	require.Equal(t, "https://example.com/demo.git", parsed.Clone[0].PrimaryURL)
	// relays deduped after trailing-slash stripping
	require.Equal(t, []string{"wss://relay.example"}, parsed.Relays)
	require.Equal(t, itoa(kinds.Announcement)+":aa:demo", parsed.Address())
}

func TestBuildParsePatchRoundTrip(t *testing.T) {
	kinds := DefaultKinds()
	tmpl, err := BuildPatch(kinds, PatchBuildOptions{
		RepoAddr:     "30617:aa:demo",
		Diff:         "--- a\n+++ b\n",
		Commit:       "c0ffee",
		ParentCommit: "deadbeef",
		Committer:    &Committer{Name: "A", Email: "a@example.com", UnixTime: 1700000000, TZOffset: 60},
		BaseBranch:   "main",
	}, nostr.Now())
	require.NoError(t, err)

	parsed := ParsePatch(tmpl)
	require.Equal(t, "c0ffee", parsed.Commit)
	require.Equal(t, "deadbeef", parsed.ParentCommit)
	require.Equal(t, "main", parsed.SeriesBase)
	require.NotNil(t, parsed.Committer)
	require.Equal(t, "a@example.com", parsed.Committer.Email)
	require.Equal(t, int64(1700000000), parsed.Committer.UnixTime)

	// round-trip superset invariant (spec §8): parsed tags are a superset of built tags
	require.GreaterOrEqual(t, len(parsed.RawTags()), len(tmpl.Tags))
}

func TestMissingRequiredTagRejected(t *testing.T) {
	kinds := DefaultKinds()
	_, err := BuildPatch(kinds, PatchBuildOptions{}, nostr.Now())
	require.Error(t, err)
}

func TestAutoHeadPolicy(t *testing.T) {
	s := &State{Refs: map[string]string{
		"refs/heads/feature": "1",
		"refs/heads/zeta":    "2",
		"refs/heads/alpha":   "3",
	}}
	require.Equal(t, "refs/heads/alpha", AutoHead(s))

	s2 := &State{Refs: map[string]string{
		"HEAD":              "ref: refs/heads/develop",
		"refs/heads/master": "1",
	}}
	require.Equal(t, "ref: refs/heads/develop", AutoHead(s2))

	s3 := &State{Refs: map[string]string{
		"refs/heads/main":   "1",
		"refs/heads/master": "2",
	}}
	require.Equal(t, "refs/heads/master", AutoHead(s3))
}

func TestValidateStatePeeledTagInvariant(t *testing.T) {
	s := &State{Refs: map[string]string{"refs/tags/v1^{}": "oid"}}
	issues := ValidateState(s)
	require.Len(t, issues, 2) // missing d, and missing refs/tags/v1
}

func TestLabelMerge(t *testing.T) {
	merged := MergeLabels(LabelSources{
		Self:     []Label{{Namespace: "ngit", Value: "bug"}},
		External: []Label{{Namespace: "", Value: "triage"}},
		LegacyT:  []string{"help-wanted"},
	})
	require.Contains(t, merged.ByNamespace["ngit"], "bug")
	require.Contains(t, merged.ByNamespace[DefaultNamespace], "triage")
	require.Contains(t, merged.Flat, "ngit/bug")
	require.Contains(t, merged.LegacyT, "help-wanted")
}

func TestShouldValidateEventsDefaultsTrue(t *testing.T) {
	require.NoError(t, os.Unsetenv("NOSTR_GIT_VALIDATE_EVENTS"))
	require.NoError(t, os.Unsetenv("NGIT_ENV"))
	require.True(t, ShouldValidateEvents())
	t.Setenv("NGIT_ENV", "production")
	require.False(t, ShouldValidateEvents())
}
