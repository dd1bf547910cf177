// Package patchengine implements spec §4.6: tree diffing, unified-diff
// generation and application, and merge analysis. Diff generation is
// grounded on github.com/sergi/go-diff/diffmatchpatch, which go-git/v5
// itself depends on for its own object.Patch machinery (go-git's go.mod
// requires it directly) — promoting it from an indirect dependency of the
// teacher's stack to one this package exercises directly.
package patchengine

import (
	"context"
	"sort"

	"github.com/nostr-git/ngit-core/internal/gitplumbing"
	"github.com/nostr-git/ngit-core/pkg/ports"
)

// ChangeType is one of add/remove/modify per spec §4.6 step 1.
type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeRemove ChangeType = "remove"
	ChangeModify ChangeType = "modify"
)

// FileChange is one leaf-path difference between two trees.
type FileChange struct {
	Path string
	Type ChangeType
	AOid string
	BOid string
}

// flattenTree walks treeOID recursively via the provider, returning a
// path->oid map of every leaf (non-directory) entry. The empty-tree OID
// constant produces an empty map without a provider round trip.
func flattenTree(ctx context.Context, provider ports.GitProvider, dir, treeOID string) (map[string]string, error) {
	out := map[string]string{}
	if treeOID == "" || treeOID == gitplumbing.EmptyTreeOID {
		return out, nil
	}
	var walk func(oid, prefix string) error
	walk = func(oid, prefix string) error {
		entries, err := provider.ReadTree(ctx, dir, oid)
		if err != nil {
			return err
		}
		for _, e := range entries {
			path := e.Path
			if prefix != "" {
				path = prefix + "/" + e.Path
			}
			if e.IsDir {
				if err := walk(e.OID, path); err != nil {
					return err
				}
				continue
			}
			out[path] = e.OID
		}
		return nil
	}
	if err := walk(treeOID, ""); err != nil {
		return nil, err
	}
	return out, nil
}

// ComputeFileChanges walks tree A and tree B simultaneously and emits one
// FileChange per leaf path whose OID differs, per spec §4.6 step 1.
// Directories never emit; paths with equal OIDs are skipped.
func ComputeFileChanges(ctx context.Context, provider ports.GitProvider, dir, aTreeOID, bTreeOID string) ([]FileChange, error) {
	a, err := flattenTree(ctx, provider, dir, aTreeOID)
	if err != nil {
		return nil, err
	}
	b, err := flattenTree(ctx, provider, dir, bTreeOID)
	if err != nil {
		return nil, err
	}

	var changes []FileChange
	for path, aOid := range a {
		bOid, inB := b[path]
		switch {
		case !inB:
			changes = append(changes, FileChange{Path: path, Type: ChangeRemove, AOid: aOid})
		case aOid != bOid:
			changes = append(changes, FileChange{Path: path, Type: ChangeModify, AOid: aOid, BOid: bOid})
		}
	}
	for path, bOid := range b {
		if _, inA := a[path]; !inA {
			changes = append(changes, FileChange{Path: path, Type: ChangeAdd, BOid: bOid})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}
