package patchengine

import (
	"strconv"
	"strings"

	"github.com/nostr-git/ngit-core/pkg/errs"
)

// hunkLine is one body line of a parsed hunk.
type hunkLine struct {
	kind byte // ' ', '-', '+'
	text string
}

// parsedHunk is one @@ block, as read back from a unified diff.
type parsedHunk struct {
	oldStart, oldLines int
	newStart, newLines int
	lines              []hunkLine
}

// filePatch is one "diff --git" section of a unified diff, unrelated to the
// FileChange type FilePatch() produces (this is the parse-side counterpart).
type filePatch struct {
	path    string
	removed bool // +++ /dev/null
	added   bool // --- /dev/null
	hunks   []parsedHunk
}

// parseUnifiedDiff parses the concatenated output of MultiFilePatch (or any
// compatible unified diff) back into per-file hunk lists, for patch
// application per spec §4.6 step 6.
func parseUnifiedDiff(diff string) ([]filePatch, error) {
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	var files []filePatch
	var cur *filePatch
	var hunk *parsedHunk

	flushHunk := func() {
		if cur != nil && hunk != nil {
			cur.hunks = append(cur.hunks, *hunk)
			hunk = nil
		}
	}
	flushFile := func() {
		flushHunk()
		if cur != nil {
			files = append(files, *cur)
			cur = nil
		}
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushFile()
			path, ok := parseDiffGitLine(line)
			if !ok {
				return nil, errs.New(errs.InvalidInput, "malformed diff --git header").
					With("operation", "parseUnifiedDiff").With("line", line)
			}
			cur = &filePatch{path: path}
		case strings.HasPrefix(line, "index "):
			// no structured data needed
		case strings.HasPrefix(line, "--- "):
			if cur != nil && strings.TrimPrefix(line, "--- ") == "/dev/null" {
				cur.added = true
			}
		case strings.HasPrefix(line, "+++ "):
			if cur != nil && strings.TrimPrefix(line, "+++ ") == "/dev/null" {
				cur.removed = true
			}
		case strings.HasPrefix(line, "@@ "):
			flushHunk()
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, err
			}
			hunk = &h
		case hunk != nil && len(line) > 0:
			hunk.lines = append(hunk.lines, hunkLine{kind: line[0], text: line[1:]})
		case hunk != nil && line == "":
			hunk.lines = append(hunk.lines, hunkLine{kind: ' ', text: ""})
		}
	}
	flushFile()
	return files, nil
}

func parseDiffGitLine(line string) (string, bool) {
	// "diff --git a/<path> b/<path>": path is identical on both sides for
	// our own output, so only the a/ side is needed.
	rest := strings.TrimPrefix(line, "diff --git ")
	parts := strings.SplitN(rest, " b/", 2)
	if len(parts) != 2 {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(parts[0], "a/")), true
}

func parseHunkHeader(line string) (parsedHunk, error) {
	// "@@ -oldStart,oldLines +newStart,newLines @@"
	body := strings.TrimPrefix(line, "@@ ")
	body = strings.TrimSuffix(body, " @@")
	fields := strings.Fields(body)
	if len(fields) != 2 {
		return parsedHunk{}, errs.New(errs.InvalidInput, "malformed hunk header").
			With("operation", "parseHunkHeader").With("line", line)
	}
	oldStart, oldLines, err := parseRange(fields[0], "-")
	if err != nil {
		return parsedHunk{}, err
	}
	newStart, newLines, err := parseRange(fields[1], "+")
	if err != nil {
		return parsedHunk{}, err
	}
	return parsedHunk{oldStart: oldStart, oldLines: oldLines, newStart: newStart, newLines: newLines}, nil
}

func parseRange(field, prefix string) (start, count int, err error) {
	field = strings.TrimPrefix(field, prefix)
	parts := strings.SplitN(field, ",", 2)
	start, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, errs.Wrap(errs.InvalidInput, "malformed hunk range", err).With("field", field)
	}
	count = 1
	if len(parts) == 2 {
		count, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, errs.Wrap(errs.InvalidInput, "malformed hunk range", err).With("field", field)
		}
	}
	return start, count, nil
}
