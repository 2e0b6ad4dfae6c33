package share

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/mineroot/lanshare/pkg/protocol"
)

var ErrNotShared = errors.New("file is not shared")

// Inspector answers questions about the regular files of one shared folder.
// Listing and sizing are best-effort: errors shrink the answer, they never fail it.
type Inspector struct {
	fs   afero.Fs
	root string
}

func NewInspector(fs afero.Fs, root string) *Inspector {
	return &Inspector{fs: fs, root: root}
}

func (i *Inspector) Root() string {
	return i.root
}

// ListRegularFiles returns the names of regular files directly inside the
// shared folder, sorted. Entries read before a directory error are kept.
func (i *Inspector) ListRegularFiles() []string {
	dir, err := i.fs.Open(i.root)
	if err != nil {
		return nil
	}
	defer dir.Close()
	infos, _ := dir.Readdir(-1)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names
}

// FileSize returns the size of name in bytes, or 0 if it cannot be determined.
func (i *Inspector) FileSize(name string) int64 {
	info, err := i.fs.Stat(filepath.Join(i.root, name))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Manifest maps every listed file to its size.
func (i *Inspector) Manifest() map[string]int64 {
	names := i.ListRegularFiles()
	files := make(map[string]int64, len(names))
	for _, name := range names {
		files[name] = i.FileSize(name)
	}
	return files
}

// Open opens a shared regular file for reading and returns its current size.
func (i *Inspector) Open(name string) (afero.File, int64, error) {
	if !protocol.ValidFilename(name) {
		return nil, 0, fmt.Errorf("%w: invalid name %q", ErrNotShared, name)
	}
	f, err := i.fs.Open(filepath.Join(i.root, name))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrNotShared, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %w", ErrNotShared, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, 0, fmt.Errorf("%w: %q is not a regular file", ErrNotShared, name)
	}
	return f, info.Size(), nil
}
