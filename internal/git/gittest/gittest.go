// Package gittest builds throwaway repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

type Repo struct {
	t    testing.TB
	Dir  string
	Repo *gitlib.Repository
}

// New initializes a repository in a temp dir whose HEAD points at branch.
func New(t testing.TB, branch string) *Repo {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return NewAt(t, dir, branch)
}

// NewAt initializes a repository at dir, which must exist.
func NewAt(t testing.TB, dir string, branch string) *Repo {
	t.Helper()
	repo, err := gitlib.PlainInitWithOptions(dir, &gitlib.PlainInitOptions{
		InitOptions: gitlib.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	require.NoError(t, err)
	return &Repo{t: t, Dir: dir, Repo: repo}
}

// Path joins a slash separated relative path onto the repository root.
func (r *Repo) Path(rel string) string {
	return filepath.Join(r.Dir, filepath.FromSlash(rel))
}

func (r *Repo) WriteFile(rel, content string) string {
	r.t.Helper()
	p := r.Path(rel)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(r.t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// Commit stages the given paths and commits them.
func (r *Repo) Commit(msg string, rels ...string) plumbing.Hash {
	r.t.Helper()
	wt, err := r.Repo.Worktree()
	require.NoError(r.t, err)
	for _, rel := range rels {
		_, err := wt.Add(rel)
		require.NoError(r.t, err)
	}
	sig := &object.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(1700000000, 0)}
	hash, err := wt.Commit(msg, &gitlib.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true})
	require.NoError(r.t, err)
	return hash
}

// Branch creates name at the current HEAD commit without checking it out.
func (r *Repo) Branch(name string) {
	r.t.Helper()
	head, err := r.Repo.Head()
	require.NoError(r.t, err)
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(name), head.Hash())
	require.NoError(r.t, r.Repo.Storer.SetReference(ref))
}

func (r *Repo) Checkout(name string) {
	r.t.Helper()
	wt, err := r.Repo.Worktree()
	require.NoError(r.t, err)
	require.NoError(r.t, wt.Checkout(&gitlib.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(name)}))
}

// Detach points HEAD directly at hash.
func (r *Repo) Detach(hash plumbing.Hash) {
	r.t.Helper()
	require.NoError(r.t, r.Repo.Storer.SetReference(plumbing.NewHashReference(plumbing.HEAD, hash)))
}
