// Package gitsubdir implements the git-subdirectory resource backend: the
// resource is a path inside the workspace's own backing git repository
// rather than a repository of its own. It never commits on its own behalf —
// the workspace's repository commit, made elsewhere as part of the snapshot
// sequence, is what captures its state. Snapshot identity is a content hash
// over that commit's tree scoped to the subdirectory; the token is the
// commit hash itself, since restoring means checking the subdirectory out
// at that commit.
package gitsubdir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/internal/hashtree"
	"github.com/dwspace/dwc/pkg/gitlib"
)

// Adaptor backs one git-subdirectory resource.
type Adaptor struct {
	name              string
	workspaceRepoPath string
	subpath           string
	readOnly          bool
}

// New returns an adaptor for the subdirectory subpath (relative to
// workspaceRepoPath) of the workspace's backing repository.
func New(name, workspaceRepoPath, subpath string) *Adaptor {
	return &Adaptor{
		name:              name,
		workspaceRepoPath: workspaceRepoPath,
		subpath:           strings.Trim(strings.TrimSpace(subpath), "/"),
	}
}

// Name returns the resource's catalogue name.
func (a *Adaptor) Name() string { return a.name }

// SetReadOnly marks the resource as read-only, refusing restores that would
// overwrite local files.
func (a *Adaptor) SetReadOnly(ro bool) { a.readOnly = ro }

// PrecheckSnapshot is a no-op: this backend's content is whatever the
// workspace repository's own commit step captures, and that commit happens
// independently of this adaptor.
func (a *Adaptor) PrecheckSnapshot(_ context.Context) error { return nil }

// Snapshot hashes the subdirectory's content at the workspace repository's
// current HEAD. The token is that HEAD commit hash.
func (a *Adaptor) Snapshot(ctx context.Context) (string, string, error) {
	repo, err := gitlib.OpenRepository(a.workspaceRepoPath)
	if err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}
	defer repo.Free()

	head, err := repo.Head()
	if err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}

	commit, err := repo.LookupCommit(ctx, head)
	if err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}
	defer commit.Free()

	sources, err := a.collectSources(ctx, commit)
	if err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}

	return string(hashtree.HashSources(sources)), head.String(), nil
}

// PrecheckRestore refuses when the subdirectory has uncommitted local
// changes and the workspace repository's HEAD isn't already at token (the
// commit the restore would move it to), and when the resource is read-only.
func (a *Adaptor) PrecheckRestore(_ context.Context, _, token string) error {
	if a.readOnly {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", fmt.Errorf("resource is read-only"))
	}

	repo, err := gitrepo.Open(a.workspaceRepoPath)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}
	defer repo.Free()

	dirty, err := repo.IsDirtyPath(a.subpath)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}

	head, err := repo.Head()
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}

	if dirty && head.String() != token {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", errs.ErrDirty)
	}

	return nil
}

// Restore rewrites the subdirectory to match its content at token,
// removing local files under it that didn't exist there.
func (a *Adaptor) Restore(_ context.Context, _, token string) error {
	repo, err := gitrepo.Open(a.workspaceRepoPath)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore", err)
	}
	defer repo.Free()

	if err := repo.CheckoutPathAtCommit(gitlib.NewHash(token), a.subpath); err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore", err)
	}

	return nil
}

// Diff reports paths under the subdirectory that differ between the
// workspace repository's current HEAD and otherHash.
func (a *Adaptor) Diff(ctx context.Context, otherHash string) ([]string, error) {
	repo, err := gitlib.OpenRepository(a.workspaceRepoPath)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer repo.Free()

	head, err := repo.Head()
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	headCommit, err := repo.LookupCommit(ctx, head)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer headCommit.Free()

	otherCommit, err := repo.LookupCommit(ctx, gitlib.NewHash(otherHash))
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer otherCommit.Free()

	headSources, err := a.collectSources(ctx, headCommit)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	otherSources, err := a.collectSources(ctx, otherCommit)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	return changedPaths(headSources, otherSources), nil
}

func (a *Adaptor) collectSources(ctx context.Context, commit *gitlib.Commit) ([]hashtree.Source, error) {
	files, err := commit.Files()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	prefix := ""
	if a.subpath != "" {
		prefix = a.subpath + "/"
	}

	var sources []hashtree.Source

	for {
		f, nextErr := files.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return nil, fmt.Errorf("iterate files: %w", nextErr)
		}

		rel, ok := scopedPath(f.Name, a.subpath, prefix)
		if !ok {
			continue
		}

		content, contentErr := f.Contents(ctx)
		if contentErr != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, contentErr)
		}

		sources = append(sources, hashtree.Source{Relpath: rel, Content: content})
	}

	return sources, nil
}

func scopedPath(name, subpath, prefix string) (string, bool) {
	if subpath == "" {
		return name, true
	}

	if !strings.HasPrefix(name, prefix) {
		return "", false
	}

	return strings.TrimPrefix(name, prefix), true
}

func changedPaths(headSources, otherSources []hashtree.Source) []string {
	headByPath := make(map[string][]byte, len(headSources))
	for _, s := range headSources {
		headByPath[s.Relpath] = s.Content
	}

	otherByPath := make(map[string][]byte, len(otherSources))
	for _, s := range otherSources {
		otherByPath[s.Relpath] = s.Content
	}

	changed := make(map[string]struct{})

	for p, c := range headByPath {
		oc, ok := otherByPath[p]
		if !ok || !bytes.Equal(c, oc) {
			changed[p] = struct{}{}
		}
	}

	for p := range otherByPath {
		if _, ok := headByPath[p]; !ok {
			changed[p] = struct{}{}
		}
	}

	paths := make([]string, 0, len(changed))
	for p := range changed {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}
