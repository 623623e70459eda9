package gitlib

import (
	"context"
	"fmt"
	"io"

	git2go "github.com/libgit2/git2go/v34"
)

// File represents a file in a tree with its content accessible via the
// owning repository.
type File struct {
	Name string
	Hash Hash
	repo *Repository
}

// Blob returns the blob object for this file.
func (f *File) Blob(ctx context.Context) (*Blob, error) {
	return f.repo.LookupBlob(ctx, f.Hash)
}

// Contents returns the file contents.
func (f *File) Contents(ctx context.Context) ([]byte, error) {
	blob, err := f.Blob(ctx)
	if err != nil {
		return nil, err
	}
	defer blob.Free()

	return append([]byte(nil), blob.Contents()...), nil
}

// Reader returns a reader for the file contents.
func (f *File) Reader(ctx context.Context) (io.Reader, error) {
	contents, err := f.Contents(ctx)
	if err != nil {
		return nil, err
	}

	return bytesReader(contents), nil
}

// walkTree recursively walks a tree and calls cb for every blob entry,
// descending into subtrees with a "/"-joined path prefix.
func walkTree(repo *Repository, tree *Tree, prefix string, cb func(path string, entry *TreeEntry) error) error {
	count := tree.EntryCount()

	for i := uint64(0); i < count; i++ {
		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		if walkErr := processTreeEntry(repo, entry, prefix, cb); walkErr != nil {
			return walkErr
		}
	}

	return nil
}

func processTreeEntry(repo *Repository, entry *TreeEntry, prefix string, cb func(path string, entry *TreeEntry) error) error {
	path := entry.Name()
	if prefix != "" {
		path = prefix + "/" + path
	}

	if entry.IsBlob() {
		return cb(path, entry)
	}

	if entry.Type() != git2go.ObjectTree {
		return nil
	}

	subtree, lookupErr := repo.LookupTree(entry.Hash())
	if lookupErr != nil {
		return nil // Skip entries we can't look up.
	}
	defer subtree.Free()

	return walkTree(repo, subtree, path, cb)
}

// TreeFiles returns every blob entry in tree, recursively.
func TreeFiles(repo *Repository, tree *Tree) ([]*File, error) {
	var files []*File

	err := walkTree(repo, tree, "", func(path string, entry *TreeEntry) error {
		files = append(files, &File{Name: path, Hash: entry.Hash(), repo: repo})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree: %w", err)
	}

	return files, nil
}

// FileIter iterates over files in a tree.
type FileIter struct {
	files []*File
	idx   int
}

// Next returns the next file in the iterator.
func (fi *FileIter) Next() (*File, error) {
	if fi.idx >= len(fi.files) {
		return nil, io.EOF
	}

	f := fi.files[fi.idx]
	fi.idx++

	return f, nil
}

// ForEach calls the callback for each file.
func (fi *FileIter) ForEach(cb func(*File) error) error {
	for _, file := range fi.files {
		cbErr := cb(file)
		if cbErr != nil {
			return cbErr
		}
	}

	return nil
}

// Close marks the iterator exhausted; later Next calls return io.EOF.
func (fi *FileIter) Close() {
	// Set idx to len(files) to indicate closed.
	fi.idx = len(fi.files)
}
