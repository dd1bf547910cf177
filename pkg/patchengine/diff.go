package patchengine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/nostr-git/ngit-core/internal/gitplumbing"
	"github.com/nostr-git/ngit-core/pkg/errs"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

func shortOID(oid string) string {
	if len(oid) < 7 {
		return oid
	}
	return oid[:7]
}

// FilePatch renders one unified diff for a single FileChange, per spec §4.6
// step 2: old/new blobs (empty string when absent by change type), 7-char
// short OIDs as header hints.
func FilePatch(ctx context.Context, provider ports.GitProvider, dir string, c FileChange) (string, error) {
	var oldContent, newContent []byte
	var err error

	if c.Type != ChangeAdd {
		oldContent, err = provider.ReadBlob(ctx, dir, c.AOid)
		if err != nil {
			return "", errs.Wrap(errs.ObjectUnreach, "could not read old blob", err).
				With("operation", "filePatch").With("path", c.Path)
		}
	}
	if c.Type != ChangeRemove {
		newContent, err = provider.ReadBlob(ctx, dir, c.BOid)
		if err != nil {
			return "", errs.Wrap(errs.ObjectUnreach, "could not read new blob", err).
				With("operation", "filePatch").With("path", c.Path)
		}
	}

	return unifiedDiff(c.Path, oldOIDHint(c), newOIDHint(c), string(oldContent), string(newContent)), nil
}

func oldOIDHint(c FileChange) string {
	if c.Type == ChangeAdd {
		return gitplumbing.EmptyTreeOID[:7]
	}
	return shortOID(c.AOid)
}

func newOIDHint(c FileChange) string {
	if c.Type == ChangeRemove {
		return gitplumbing.EmptyTreeOID[:7]
	}
	return shortOID(c.BOid)
}

// unifiedDiff renders a Git-style unified diff between old and new content
// for path, using diffmatchpatch's line-mode diff to compute the edit
// script (the same library go-git itself depends on for object.Patch).
func unifiedDiff(path, oldHint, newHint, oldContent, newContent string) string {
	if oldContent == newContent {
		return ""
	}

	dmp := diffmatchpatch.New()
	aLines, bLines, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(aLines, bLines, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "diff --git a/%s b/%s\n", path, path)
	fmt.Fprintf(&buf, "index %s..%s 100644\n", oldHint, newHint)
	fmt.Fprintf(&buf, "--- a/%s\n", path)
	fmt.Fprintf(&buf, "+++ b/%s\n", path)

	hunks := buildHunks(diffs)
	for _, h := range hunks {
		buf.WriteString(h.header())
		buf.WriteString(h.body)
	}
	return buf.String()
}

// hunk is one @@ block of a unified diff.
type hunk struct {
	oldStart, oldLines int
	newStart, newLines int
	body               string
}

func (h hunk) header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldLines, h.newStart, h.newLines)
}

// buildHunks converts a diffmatchpatch line-level diff into unified-diff
// hunks with 3 lines of context, merging adjacent changes closer than 2x
// the context window into a single hunk.
func buildHunks(diffs []diffmatchpatch.Diff) []hunk {
	const contextLines = 3

	type lineOp struct {
		kind byte // ' ', '-', '+'
		text string
	}
	var ops []lineOp
	for _, d := range diffs {
		lines := splitKeepEmpty(d.Text)
		var kind byte
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			kind = ' '
		case diffmatchpatch.DiffDelete:
			kind = '-'
		case diffmatchpatch.DiffInsert:
			kind = '+'
		}
		for _, l := range lines {
			ops = append(ops, lineOp{kind: kind, text: l})
		}
	}

	// Identify indices of changed (non-equal) ops.
	var changedIdx []int
	for i, op := range ops {
		if op.kind != ' ' {
			changedIdx = append(changedIdx, i)
		}
	}
	if len(changedIdx) == 0 {
		return nil
	}

	// Group changed indices into ranges, merging when the gap between
	// consecutive changes is within 2*contextLines.
	type rng struct{ lo, hi int }
	var ranges []rng
	cur := rng{lo: changedIdx[0], hi: changedIdx[0]}
	for _, idx := range changedIdx[1:] {
		if idx-cur.hi <= 2*contextLines {
			cur.hi = idx
			continue
		}
		ranges = append(ranges, cur)
		cur = rng{lo: idx, hi: idx}
	}
	ranges = append(ranges, cur)

	oldLine, newLine := 1, 1
	// Precompute starting old/new line numbers for every op index.
	oldAt := make([]int, len(ops)+1)
	newAt := make([]int, len(ops)+1)
	for i, op := range ops {
		oldAt[i] = oldLine
		newAt[i] = newLine
		switch op.kind {
		case ' ':
			oldLine++
			newLine++
		case '-':
			oldLine++
		case '+':
			newLine++
		}
	}
	oldAt[len(ops)] = oldLine
	newAt[len(ops)] = newLine

	var hunks []hunk
	for _, r := range ranges {
		lo := r.lo - contextLines
		if lo < 0 {
			lo = 0
		}
		hi := r.hi + contextLines
		if hi > len(ops)-1 {
			hi = len(ops) - 1
		}

		var body strings.Builder
		oldCount, newCount := 0, 0
		for i := lo; i <= hi; i++ {
			op := ops[i]
			body.WriteByte(op.kind)
			body.WriteString(op.text)
			body.WriteByte('\n')
			switch op.kind {
			case ' ':
				oldCount++
				newCount++
			case '-':
				oldCount++
			case '+':
				newCount++
			}
		}

		hunks = append(hunks, hunk{
			oldStart: oldAt[lo],
			oldLines: oldCount,
			newStart: newAt[lo],
			newLines: newCount,
			body:     body.String(),
		})
	}
	return hunks
}

func splitKeepEmpty(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// MultiFilePatch concatenates per-file patches, filtering empties, per spec
// §4.6 step 3.
func MultiFilePatch(ctx context.Context, provider ports.GitProvider, dir string, changes []FileChange) (string, error) {
	var buf bytes.Buffer
	for _, c := range changes {
		p, err := FilePatch(ctx, provider, dir, c)
		if err != nil {
			return "", err
		}
		if p == "" {
			continue
		}
		buf.WriteString(p)
	}
	return buf.String(), nil
}

// DiffAnchor computes the "diff-<sha256(path)>" anchor spec §4.6 step 4
// names.
func DiffAnchor(path string) string {
	sum := sha256.Sum256([]byte(path))
	return "diff-" + hex.EncodeToString(sum[:])
}

// ResolveDiffAnchor returns the FileChange matching anchor, or false if none
// (or more than one, which would indicate a hash collision) matches.
func ResolveDiffAnchor(changes []FileChange, anchor string) (FileChange, bool) {
	var match *FileChange
	for i := range changes {
		if DiffAnchor(changes[i].Path) == anchor {
			if match != nil {
				return FileChange{}, false
			}
			match = &changes[i]
		}
	}
	if match == nil {
		return FileChange{}, false
	}
	return *match, true
}
