// Package memfs is the reference ports.FS implementation, adapted directly
// from the teacher's pkg/storage/filesystem/afero.go AferoContext wrapper:
// same afero.NewBasePathFs(rootDir) scoping, same context-dropping delegation
// shape, generalized to the narrower ports.FS surface spec §6 names.
package memfs

import (
	"context"
	"os"

	"github.com/spf13/afero"

	"github.com/nostr-git/ngit-core/pkg/ports"
)

// FS wraps an afero.Fs, rooted at rootDir via afero.NewBasePathFs, the same
// scoping the teacher uses for its local-directory filesystem port.
type FS struct {
	fs      afero.Fs
	rootDir string
}

// NewOS creates an FS backed by the real OS filesystem, scoped at rootDir.
func NewOS(rootDir string) *FS {
	return New(afero.NewOsFs(), rootDir)
}

// NewMemory creates an FS backed by an in-memory afero filesystem, useful
// for tests that don't want to touch disk.
func NewMemory() *FS {
	return &FS{fs: afero.NewMemMapFs(), rootDir: "/"}
}

// New wraps fs, scoped at rootDir.
func New(fs afero.Fs, rootDir string) *FS {
	return &FS{fs: afero.NewBasePathFs(fs, rootDir), rootDir: rootDir}
}

func (f *FS) RootDirectory() string { return f.rootDir }

func (f *FS) ReadFile(_ context.Context, path string) ([]byte, error) {
	return afero.ReadFile(f.fs, path)
}

func (f *FS) WriteFile(_ context.Context, path string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(f.fs, path, data, perm)
}

func (f *FS) MkdirAll(_ context.Context, path string, perm os.FileMode) error {
	return f.fs.MkdirAll(path, perm)
}

func (f *FS) ReadDir(_ context.Context, path string) ([]os.FileInfo, error) {
	return afero.ReadDir(f.fs, path)
}

func (f *FS) Stat(_ context.Context, path string) (os.FileInfo, error) {
	return f.fs.Stat(path)
}

func (f *FS) Remove(_ context.Context, path string) error {
	return f.fs.Remove(path)
}

var _ ports.FS = (*FS)(nil)
