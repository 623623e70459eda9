// Package managedgit implements the managed Git repository resource
// backend: each resource is its own full git repository. Snapshot identity
// is the full commit hash of HEAD after auto-committing any pending
// changes; restore is reset --hard to that commit.
package managedgit

import (
	"context"
	"fmt"

	"github.com/dwspace/dwc/internal/errs"
	"github.com/dwspace/dwc/internal/gitrepo"
	"github.com/dwspace/dwc/pkg/gitlib"
)

// Adaptor backs one managed-git resource.
type Adaptor struct {
	name        string
	path        string
	remoteURL   string
	readOnly    bool
	authorName  string
	authorEmail string
}

// New returns an adaptor rooted at path, identified by name. remoteURL may
// be empty for a resource with no remote; Clone then fails with a
// precondition error, while Push and Pull fail with the backend error from
// looking up the origin remote.
func New(name, path, remoteURL, authorName, authorEmail string) *Adaptor {
	return &Adaptor{name: name, path: path, remoteURL: remoteURL, authorName: authorName, authorEmail: authorEmail}
}

// Name returns the resource's catalogue name.
func (a *Adaptor) Name() string { return a.name }

// SetReadOnly marks the resource as read-only, refusing restores/pushes
// that would otherwise mutate it.
func (a *Adaptor) SetReadOnly(ro bool) { a.readOnly = ro }

// PrecheckSnapshot is a no-op: any working-tree state is committable.
func (a *Adaptor) PrecheckSnapshot(_ context.Context) error { return nil }

// Snapshot auto-commits any pending changes and returns the resulting
// commit hash as both hash and token (they coincide for this backend).
func (a *Adaptor) Snapshot(_ context.Context) (string, string, error) {
	repo, err := gitrepo.Open(a.path)
	if err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}
	defer repo.Free()

	head, err := repo.CommitAll("dwc: auto-commit at snapshot", a.authorName, a.authorEmail)
	if err != nil {
		return "", "", errs.New(errs.ClassBackend, a.name, "snapshot", err)
	}

	return head.String(), head.String(), nil
}

// PrecheckRestore refuses when the working tree is dirty relative to both
// the current HEAD and the restore target, and when the resource is
// read-only and the restore would require a destructive local reset.
func (a *Adaptor) PrecheckRestore(_ context.Context, hash, _ string) error {
	repo, err := gitrepo.Open(a.path)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}
	defer repo.Free()

	dirty, err := repo.IsDirty()
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}

	head, err := repo.Head()
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore-precheck", err)
	}

	if a.readOnly && (dirty || head.String() != hash) {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", fmt.Errorf("resource is read-only"))
	}

	if dirty && head.String() != hash {
		return errs.New(errs.ClassPrecondition, a.name, "restore-precheck", errs.ErrDirty)
	}

	return nil
}

// Restore resets the working tree hard to hash.
func (a *Adaptor) Restore(_ context.Context, hash, _ string) error {
	repo, err := gitrepo.Open(a.path)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore", err)
	}
	defer repo.Free()

	if err := repo.ResetHard(gitlib.NewHash(hash)); err != nil {
		return errs.New(errs.ClassBackend, a.name, "restore", err)
	}

	return nil
}

// Diff reports paths that differ between HEAD and otherHash.
func (a *Adaptor) Diff(_ context.Context, otherHash string) ([]string, error) {
	readRepo, err := gitlib.OpenRepository(a.path)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer readRepo.Free()

	headHash, err := readRepo.Head()
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	headCommit, err := readRepo.LookupCommit(context.Background(), headHash)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer headCommit.Free()

	otherCommit, err := readRepo.LookupCommit(context.Background(), gitlib.NewHash(otherHash))
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer otherCommit.Free()

	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer headTree.Free()

	otherTree, err := otherCommit.Tree()
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer otherTree.Free()

	diff, err := readRepo.DiffTreeToTree(otherTree, headTree)
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}
	defer diff.Free()

	count, err := diff.NumDeltas()
	if err != nil {
		return nil, errs.New(errs.ClassBackend, a.name, "diff", err)
	}

	paths := make([]string, 0, count)

	for i := 0; i < count; i++ {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, errs.New(errs.ClassBackend, a.name, "diff", deltaErr)
		}

		paths = append(paths, delta.NewFile.Path)
	}

	return paths, nil
}

// Push pushes the current branch to origin.
func (a *Adaptor) Push(_ context.Context) error {
	if a.readOnly {
		return errs.New(errs.ClassPrecondition, a.name, "push", fmt.Errorf("resource is read-only"))
	}

	repo, err := gitrepo.Open(a.path)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "push", err)
	}
	defer repo.Free()

	ahead, err := repo.RemoteAhead("origin", "main")
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "push", err)
	}

	if ahead {
		return errs.New(errs.ClassPrecondition, a.name, "push", errs.ErrRemoteAhead)
	}

	if err := repo.Push("origin", "refs/heads/main:refs/heads/main"); err != nil {
		return errs.New(errs.ClassBackend, a.name, "push", err)
	}

	return nil
}

// Pull fetches from origin. It does not move HEAD or touch the working
// tree.
func (a *Adaptor) Pull(_ context.Context) error {
	repo, err := gitrepo.Open(a.path)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "pull", err)
	}
	defer repo.Free()

	if err := repo.Fetch("origin"); err != nil {
		return errs.New(errs.ClassBackend, a.name, "pull", err)
	}

	return nil
}

// Clone materialises this resource by cloning its remote into targetPath.
func (a *Adaptor) Clone(_ context.Context, targetPath string) error {
	if a.remoteURL == "" {
		return errs.New(errs.ClassPrecondition, a.name, "clone", fmt.Errorf("resource has no remote URL"))
	}

	repo, err := gitrepo.Clone(a.remoteURL, targetPath)
	if err != nil {
		return errs.New(errs.ClassBackend, a.name, "clone", err)
	}
	defer repo.Free()

	return nil
}
