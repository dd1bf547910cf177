package patchengine

import (
	"context"
	"path"
	"strings"

	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

// splitLines splits content into lines without discarding CRLF: each
// returned line retains a trailing "\r" when present. The boolean result
// reports whether content ended with a trailing newline.
func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailingNewline := strings.HasSuffix(content, "\n")
	body := content
	if trailingNewline {
		body = body[:len(body)-1]
	}
	return strings.Split(body, "\n"), trailingNewline
}

func joinLines(lines []string, trailingNewline bool) string {
	out := strings.Join(lines, "\n")
	if trailingNewline && len(lines) > 0 {
		out += "\n"
	}
	return out
}

// applyHunksToFile applies a sequence of hunks to original content, locating
// each hunk's anchor by its pre-image (context + removed) lines rather than
// the header's absolute line numbers, per spec §4.6 step 6. Returns the new
// content, or ok=false if any hunk's pre-image can't be located (a conflict).
func applyHunksToFile(original string, hunks []parsedHunk) (newContent string, ok bool) {
	lines, trailingNewline := splitLines(original)

	var result []string
	cursor := 0

	for _, h := range hunks {
		var preImage []string
		for _, l := range h.lines {
			if l.kind == ' ' || l.kind == '-' {
				preImage = append(preImage, l.text)
			}
		}

		idx := indexOfSubsequence(lines, cursor, preImage)
		if idx < 0 {
			return "", false
		}

		result = append(result, lines[cursor:idx]...)
		for _, l := range h.lines {
			if l.kind == ' ' || l.kind == '+' {
				result = append(result, l.text)
			}
		}
		cursor = idx + len(preImage)
	}
	result = append(result, lines[cursor:]...)

	return joinLines(result, trailingNewline), true
}

// indexOfSubsequence finds the first index at or after start where needle
// occurs as a contiguous run within haystack.
func indexOfSubsequence(haystack []string, start int, needle []string) int {
	if len(needle) == 0 {
		return start
	}
	for i := start; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, n := range needle {
			if haystack[i+j] != n {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ApplyPatch parses diffText and applies every file's hunks against the
// working tree rooted at dir, via fs for file content and provider for
// staging/commit. On any hunk failing to locate its anchor, the whole
// operation aborts with MERGE_CONFLICT and no file is written.
func ApplyPatch(ctx context.Context, provider ports.GitProvider, fs ports.FS, dir, diffText, message, authorName, authorEmail string) (string, error) {
	files, err := parseUnifiedDiff(diffText)
	if err != nil {
		return "", err
	}

	type pendingWrite struct {
		fullPath string
		content  string
		remove   bool
	}
	var pending []pendingWrite
	var addedPaths []string
	var removedPaths []string

	for _, f := range files {
		fullPath := path.Join(dir, f.path)

		var original string
		if !f.added {
			data, readErr := fs.ReadFile(ctx, fullPath)
			if readErr == nil {
				original = string(data)
			}
		}

		if f.removed {
			pending = append(pending, pendingWrite{fullPath: fullPath, remove: true})
			removedPaths = append(removedPaths, f.path)
			continue
		}

		newContent, ok := applyHunksToFile(original, f.hunks)
		if !ok {
			return "", errs.New(errs.MergeConflict, "hunk context did not match current file content").
				With("operation", "applyPatch").With("path", f.path)
		}
		pending = append(pending, pendingWrite{fullPath: fullPath, content: newContent})
		addedPaths = append(addedPaths, f.path)
	}

	for _, w := range pending {
		if w.remove {
			if err := fs.Remove(ctx, w.fullPath); err != nil {
				return "", errs.Wrap(errs.Internal, "could not remove file during patch apply", err).
					With("operation", "applyPatch").With("path", w.fullPath)
			}
			continue
		}
		if err := fs.WriteFile(ctx, w.fullPath, []byte(w.content), 0o644); err != nil {
			return "", errs.Wrap(errs.Internal, "could not write file during patch apply", err).
				With("operation", "applyPatch").With("path", w.fullPath)
		}
	}

	if len(addedPaths) > 0 {
		if err := provider.Add(ctx, dir, addedPaths); err != nil {
			return "", errs.Wrap(errs.Internal, "could not stage applied patch", err).
				With("operation", "applyPatch")
		}
	}
	if len(removedPaths) > 0 {
		if err := provider.Remove(ctx, dir, removedPaths); err != nil {
			return "", errs.Wrap(errs.Internal, "could not stage removed files", err).
				With("operation", "applyPatch")
		}
	}

	// Empty patch: spec §8's boundary law is a no-op commit-free success, so
	// an empty diff (parses to zero files, hence zero pending writes) never
	// reaches provider.Commit.
	if len(pending) == 0 {
		return "", nil
	}

	commit, err := provider.Commit(ctx, dir, message, authorName, authorEmail)
	if err != nil {
		return "", errs.Wrap(errs.Internal, "could not commit applied patch", err).
			With("operation", "applyPatch")
	}
	return commit, nil
}
