package patchengine

import (
	"context"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/event"
	"github.com/nostr-git/ngit-core/pkg/materializer"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

// ConflictDetail pins the shape spec §4.6's merge analysis leaves open:
// path plus the three content snapshots a three-way view needs.
type ConflictDetail struct {
	Path   string
	Ours   string
	Theirs string
	Base   string
}

// Analysis is the classification spec §4.6 names for MergeAnalysis.Analysis.
type Analysis string

const (
	AnalysisClean    Analysis = "clean"
	AnalysisFF       Analysis = "ff"
	AnalysisConflict Analysis = "conflict"
	AnalysisError    Analysis = "error"
)

// MergeAnalysis is the full result shape from spec §4.6 step 5.
type MergeAnalysis struct {
	CanMerge        bool
	HasConflicts    bool
	ConflictFiles   []string
	ConflictDetails []ConflictDetail
	UpToDate        bool
	FastForward     bool
	PatchCommits    []string
	Analysis        Analysis
	ErrorMessage    string
}

// AnalyzeMerge deepens dir as needed to resolve branch's head commit, then
// classifies patch against it per spec §4.6 step 5. A non-nil error is
// returned only for provider/materializer failures; recoverable precondition
// problems (e.g. an unresolvable parent commit) are surfaced as
// Analysis==error with ErrorMessage set instead.
func AnalyzeMerge(ctx context.Context, m *materializer.Materializer, provider ports.GitProvider, dir, url, branch string, patch *event.Patch) (MergeAnalysis, error) {
	resolvedBranch, _, err := m.EnsureShallow(ctx, patch.RepoAddr, dir, url, branch)
	if err != nil {
		return MergeAnalysis{}, err
	}

	headOID, err := provider.ResolveRef(ctx, dir, resolvedBranch)
	if err != nil {
		return MergeAnalysis{}, errs.Wrap(errs.BranchNotFound, "could not resolve target branch head", err).
			With("operation", "analyzeMerge").With("branch", branch)
	}

	result := MergeAnalysis{}
	if patch.Commit != "" {
		result.PatchCommits = []string{patch.Commit}
	}

	if patch.Commit != "" && patch.Commit == headOID {
		result.UpToDate = true
		result.CanMerge = true
		result.Analysis = AnalysisClean
		return result, nil
	}

	if patch.ParentCommit == "" {
		result.Analysis = AnalysisError
		result.ErrorMessage = "patch carries no parent-commit to anchor against"
		return result, nil
	}

	if patch.ParentCommit == headOID {
		result.FastForward = true
		result.CanMerge = true
		result.Analysis = AnalysisFF
		return result, nil
	}

	// Parent commit is behind head: confirm it's still reachable (deepening
	// via the materializer's escalation ladder if needed), then check
	// whether the patch's hunks still apply cleanly against the current
	// tree at head.
	if _, err := m.ReadCommitWithEscalation(ctx, dir, url, resolvedBranch, patch.ParentCommit); err != nil {
		result.Analysis = AnalysisError
		result.ErrorMessage = "patch parent commit is unreachable: " + err.Error()
		return result, nil
	}

	files, parseErr := parseUnifiedDiff(patch.Diff)
	if parseErr != nil {
		result.Analysis = AnalysisError
		result.ErrorMessage = "patch diff could not be parsed: " + parseErr.Error()
		return result, nil
	}

	headCommit, err := provider.ReadCommit(ctx, dir, headOID)
	if err != nil {
		return MergeAnalysis{}, errs.Wrap(errs.ObjectUnreach, "could not read target head commit", err).
			With("operation", "analyzeMerge")
	}

	for _, f := range files {
		oid, hasBlob := treeLookup(ctx, provider, dir, headCommit, f.path)
		var ours string
		if hasBlob {
			data, err := provider.ReadBlob(ctx, dir, oid)
			if err == nil {
				ours = string(data)
			}
		}

		if _, ok := applyHunksToFile(ours, f.hunks); ok {
			continue
		}

		result.HasConflicts = true
		result.ConflictFiles = append(result.ConflictFiles, f.path)
		result.ConflictDetails = append(result.ConflictDetails, ConflictDetail{
			Path:   f.path,
			Ours:   ours,
			Theirs: hunkTheirs(f.hunks),
			Base:   "",
		})
	}

	if result.HasConflicts {
		result.CanMerge = false
		result.Analysis = AnalysisConflict
		return result, nil
	}

	result.CanMerge = true
	result.Analysis = AnalysisClean
	return result, nil
}

// treeLookup resolves path to a blob OID within commit's tree, returning
// false if the path doesn't exist.
func treeLookup(ctx context.Context, provider ports.GitProvider, dir string, commit ports.CommitInfo, path string) (string, bool) {
	found := ""
	ok := false
	_ = provider.Walk(ctx, dir, commit.TreeOID, func(e ports.TreeEntry) error {
		if !e.IsDir && e.Path == path {
			found = e.OID
			ok = true
		}
		return nil
	})
	return found, ok
}

// hunkTheirs reconstructs the "incoming" side of a hunk set (context + added
// lines) for ConflictDetail.Theirs.
func hunkTheirs(hunks []parsedHunk) string {
	var lines []string
	for _, h := range hunks {
		for _, l := range h.lines {
			if l.kind == ' ' || l.kind == '+' {
				lines = append(lines, l.text)
			}
		}
	}
	return joinLines(lines, true)
}
