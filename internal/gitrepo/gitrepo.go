// Package gitrepo adds the write-side git operations the managed-git and
// git-subdirectory resource backends need on top of pkg/gitlib's read-only
// wrapper: init/open, auto-commit, reset --hard, clone, and remote
// fetch/push. It is built in the same thin libgit2-wrapping style as
// pkg/gitlib, just covering mutation instead of history traversal.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/dwspace/dwc/pkg/gitlib"
)

// Repo wraps a libgit2 repository opened for read-write use.
type Repo struct {
	native *git2go.Repository
	path   string
}

// Open opens an existing repository rooted at path.
func Open(path string) (*Repo, error) {
	native, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	return &Repo{native: native, path: path}, nil
}

// Init creates a new non-bare repository at path.
func Init(path string) (*Repo, error) {
	native, err := git2go.InitRepository(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", path, err)
	}

	return &Repo{native: native, path: path}, nil
}

// Clone clones url into target and opens it.
func Clone(url, target string) (*Repo, error) {
	native, err := git2go.Clone(url, target, &git2go.CloneOptions{})
	if err != nil {
		return nil, fmt.Errorf("clone %s into %s: %w", url, target, err)
	}

	return &Repo{native: native, path: target}, nil
}

// Path returns the repository's working directory.
func (r *Repo) Path() string { return r.path }

// Free releases native libgit2 resources.
func (r *Repo) Free() {
	if r.native != nil {
		r.native.Free()
		r.native = nil
	}
}

// Head returns the current HEAD commit hash. ErrUnbornBranch-style failures
// (no commits yet) are surfaced as-is for the caller to special-case.
func (r *Repo) Head() (gitlib.Hash, error) {
	ref, err := r.native.Head()
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return gitlib.HashFromOid(ref.Target()), nil
}

// IsDirty reports whether the working tree has any uncommitted changes
// (staged, unstaged, or untracked).
func (r *Repo) IsDirty() (bool, error) {
	opts := &git2go.StatusOptions{
		Show:  git2go.StatusShowIndexAndWorkdir,
		Flags: git2go.StatusOptIncludeUntracked | git2go.StatusOptRecurseUntrackedDirs,
	}

	list, err := r.native.StatusList(opts)
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	defer list.Free()

	count, err := list.EntryCount()
	if err != nil {
		return false, fmt.Errorf("status entry count: %w", err)
	}

	return count > 0, nil
}

// IsDirtyPath reports whether the working tree has uncommitted changes
// scoped to subpath (the whole tree if subpath is empty).
func (r *Repo) IsDirtyPath(subpath string) (bool, error) {
	opts := &git2go.StatusOptions{
		Show:  git2go.StatusShowIndexAndWorkdir,
		Flags: git2go.StatusOptIncludeUntracked | git2go.StatusOptRecurseUntrackedDirs,
	}

	if subpath != "" {
		opts.Pathspec = []string{subpath}
	}

	list, err := r.native.StatusList(opts)
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	defer list.Free()

	count, err := list.EntryCount()
	if err != nil {
		return false, fmt.Errorf("status entry count: %w", err)
	}

	return count > 0, nil
}

// CommitAll stages every change in the working tree (including untracked
// files) and commits it, returning the new commit hash. If nothing is
// staged after adding, it is a no-op returning the current HEAD.
func (r *Repo) CommitAll(message, authorName, authorEmail string) (gitlib.Hash, error) {
	idx, err := r.native.Index()
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("get index: %w", err)
	}
	defer idx.Free()

	if err := idx.AddAll([]string{}, git2go.IndexAddDefault, nil); err != nil {
		return gitlib.Hash{}, fmt.Errorf("stage changes: %w", err)
	}

	if err := idx.Write(); err != nil {
		return gitlib.Hash{}, fmt.Errorf("write index: %w", err)
	}

	treeOid, err := idx.WriteTree()
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("write tree: %w", err)
	}

	tree, err := r.native.LookupTree(treeOid)
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("lookup tree: %w", err)
	}
	defer tree.Free()

	sig := &git2go.Signature{Name: authorName, Email: authorEmail}

	var parents []*git2go.Commit

	headOid, headErr := r.native.Head()
	if headErr == nil {
		defer headOid.Free()

		parentCommit, lookupErr := r.native.LookupCommit(headOid.Target())
		if lookupErr != nil {
			return gitlib.Hash{}, fmt.Errorf("lookup HEAD commit: %w", lookupErr)
		}
		defer parentCommit.Free()

		if sameTree(parentCommit, treeOid) {
			return gitlib.HashFromOid(headOid.Target()), nil
		}

		parents = append(parents, parentCommit)
	}

	commitOid, err := r.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	if err != nil {
		return gitlib.Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return gitlib.HashFromOid(commitOid), nil
}

func sameTree(commit *git2go.Commit, treeOid *git2go.Oid) bool {
	return commit.TreeId().Equal(treeOid)
}

// ResetHard resets HEAD and the working tree to hash, discarding local
// changes. Callers must have already run a dirty check; this is the
// destructive half of restore.
func (r *Repo) ResetHard(hash gitlib.Hash) error {
	oid := hash.ToOid()

	commit, err := r.native.LookupCommit(oid)
	if err != nil {
		return fmt.Errorf("lookup commit %s: %w", hash, err)
	}
	defer commit.Free()

	if err := r.native.ResetToCommit(commit, git2go.ResetHard, &git2go.CheckoutOptions{
		Strategy: git2go.CheckoutForce | git2go.CheckoutRemoveUntracked,
	}); err != nil {
		return fmt.Errorf("reset --hard %s: %w", hash, err)
	}

	return nil
}

// AddRemote creates remoteName pointing at url.
func (r *Repo) AddRemote(remoteName, url string) error {
	if remoteName == "" {
		remoteName = "origin"
	}

	remote, err := r.native.Remotes.Create(remoteName, url)
	if err != nil {
		return fmt.Errorf("add remote %s: %w", remoteName, err)
	}
	defer remote.Free()

	return nil
}

// Fetch fetches from the named remote (default "origin").
func (r *Repo) Fetch(remoteName string) error {
	if remoteName == "" {
		remoteName = "origin"
	}

	remote, err := r.native.Remotes.Lookup(remoteName)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", remoteName, err)
	}
	defer remote.Free()

	if err := remote.Fetch(nil, &git2go.FetchOptions{}, ""); err != nil {
		return fmt.Errorf("fetch %s: %w", remoteName, err)
	}

	return nil
}

// Push pushes the current branch to the named remote.
func (r *Repo) Push(remoteName, refspec string) error {
	if remoteName == "" {
		remoteName = "origin"
	}

	remote, err := r.native.Remotes.Lookup(remoteName)
	if err != nil {
		return fmt.Errorf("lookup remote %s: %w", remoteName, err)
	}
	defer remote.Free()

	if err := remote.Push([]string{refspec}, &git2go.PushOptions{}); err != nil {
		return fmt.Errorf("push %s: %w", remoteName, err)
	}

	return nil
}

// RemoteAhead reports whether remoteName's tracked branch has commits not
// reachable from local HEAD, which would make a non-forced push fail.
func (r *Repo) RemoteAhead(remoteName, branch string) (bool, error) {
	if remoteName == "" {
		remoteName = "origin"
	}

	remoteRef, err := r.native.References.Lookup(fmt.Sprintf("refs/remotes/%s/%s", remoteName, branch))
	if err != nil {
		// No remote-tracking ref yet: nothing to be ahead of.
		return false, nil //nolint:nilerr // absent tracking ref means "not ahead", not a failure
	}
	defer remoteRef.Free()

	localHead, err := r.native.Head()
	if err != nil {
		return false, fmt.Errorf("get HEAD: %w", err)
	}
	defer localHead.Free()

	_, aheadBehind, err := r.native.AheadBehind(localHead.Target(), remoteRef.Target())
	if err != nil {
		return false, fmt.Errorf("compute ahead/behind: %w", err)
	}

	return aheadBehind > 0, nil
}

// ReadFileAt returns the contents of path as of commit hash.
func (r *Repo) ReadFileAt(hash gitlib.Hash, path string) ([]byte, error) {
	commit, err := r.native.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash, err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("commit tree: %w", err)
	}
	defer tree.Free()

	entry, err := tree.EntryByPath(path)
	if err != nil {
		return nil, fmt.Errorf("lookup %s at %s: %w", path, hash, err)
	}

	blob, err := r.native.LookupBlob(entry.Id)
	if err != nil {
		return nil, fmt.Errorf("lookup blob for %s: %w", path, err)
	}
	defer blob.Free()

	return append([]byte(nil), blob.Contents()...), nil
}

// CheckoutPathAtCommit rewrites every file under subpath to match its
// content at hash, and removes local files under subpath that don't exist
// there at hash. Used to restore a git-subdirectory resource without
// touching the rest of the workspace repository's working tree.
func (r *Repo) CheckoutPathAtCommit(hash gitlib.Hash, subpath string) error {
	readRepo, err := gitlib.OpenRepository(r.path)
	if err != nil {
		return fmt.Errorf("open repository %s: %w", r.path, err)
	}
	defer readRepo.Free()

	ctx := context.Background()

	commit, err := readRepo.LookupCommit(ctx, hash)
	if err != nil {
		return fmt.Errorf("lookup commit %s: %w", hash, err)
	}
	defer commit.Free()

	files, err := commit.Files()
	if err != nil {
		return fmt.Errorf("list files at %s: %w", hash, err)
	}

	prefix := ""
	if subpath != "" {
		prefix = strings.TrimSuffix(subpath, "/") + "/"
	}

	wanted := make(map[string]gitlib.Hash)

	for {
		f, nextErr := files.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return fmt.Errorf("iterate files at %s: %w", hash, nextErr)
		}

		if prefix != "" && !strings.HasPrefix(f.Name, prefix) {
			continue
		}

		wanted[f.Name] = f.Hash
	}

	for relpath, blobHash := range wanted {
		blob, lookupErr := readRepo.LookupBlob(ctx, blobHash)
		if lookupErr != nil {
			return fmt.Errorf("lookup blob for %s: %w", relpath, lookupErr)
		}

		full := filepath.Join(r.path, filepath.FromSlash(relpath))
		if mkdirErr := os.MkdirAll(filepath.Dir(full), 0o755); mkdirErr != nil {
			blob.Free()

			return fmt.Errorf("create directory for %s: %w", relpath, mkdirErr)
		}

		writeErr := os.WriteFile(full, blob.Contents(), 0o644)
		blob.Free()

		if writeErr != nil {
			return fmt.Errorf("write %s: %w", relpath, writeErr)
		}
	}

	root := filepath.Join(r.path, filepath.FromSlash(subpath))

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(r.path, path)
		if relErr != nil {
			return relErr
		}

		rel = filepath.ToSlash(rel)

		if _, ok := wanted[rel]; !ok {
			return os.Remove(path)
		}

		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("prune stale files under %s: %w", subpath, walkErr)
	}

	return nil
}

// EnsureGitignore appends lines to path/.gitignore if they are not already
// present, creating the file if needed.
func EnsureGitignore(root string, lines ...string) error {
	path := filepath.Join(root, ".gitignore")

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read .gitignore: %w", err)
	}

	content := string(existing)
	missing := make([]string, 0, len(lines))

	for _, line := range lines {
		if !containsLine(content, line) {
			missing = append(missing, line)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open .gitignore: %w", err)
	}
	defer f.Close()

	for _, line := range missing {
		if _, err := fmt.Fprintln(f, line); err != nil {
			return fmt.Errorf("write .gitignore: %w", err)
		}
	}

	return nil
}

func containsLine(content, line string) bool {
	for _, existing := range splitLines(content) {
		if existing == line {
			return true
		}
	}

	return false
}

func splitLines(s string) []string {
	var lines []string

	start := 0

	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}

	if start < len(s) {
		lines = append(lines, s[start:])
	}

	return lines
}
