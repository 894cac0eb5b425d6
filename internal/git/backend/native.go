package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

type native struct {
	path string
	repo *gitlib.Repository
}

// OpenNative opens the working copy containing repoPath with go-git.
func OpenNative(repoPath string) (Backend, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &native{path: filepath.Clean(wt.Filesystem.Root()), repo: repo}, nil
}

func (n *native) RepoPath() string {
	if n == nil {
		return ""
	}
	return n.path
}

func (n *native) HeadState(context.Context) (hash string, headName string, err error) {
	head, err := n.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", "", fmt.Errorf("read HEAD: %w", err)
	}
	if head.Type() == plumbing.HashReference {
		return head.Hash().String(), "", nil
	}
	if target := head.Target(); target.IsBranch() {
		headName = target.Short()
	}
	resolved, err := n.repo.Reference(plumbing.HEAD, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// unborn branch
			return "", headName, nil
		}
		return "", "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return resolved.Hash().String(), headName, nil
}

func (n *native) ListRefs(context.Context) ([]Ref, error) {
	iter, err := n.repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer iter.Close()

	var refs []Ref
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		kind, short, ok := classifyRef(ref.Name().String())
		if !ok {
			return nil
		}
		hash := ref.Hash()
		if kind == RefKindTag {
			// peel annotated tags so they compare equal to commit hashes
			if tag, err := n.repo.TagObject(hash); err == nil {
				hash = tag.Target
			}
		}
		refs = append(refs, Ref{Hash: hash.String(), Kind: kind, Name: short})
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, err
	}
	return refs, nil
}

func (n *native) Tracked(_ context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	idx, err := n.repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	known := make(map[string]struct{}, len(idx.Entries))
	for _, e := range idx.Entries {
		known[e.Name] = struct{}{}
	}
	var res []string
	for _, p := range paths {
		if _, ok := known[p]; ok {
			res = append(res, p)
		}
	}
	return res, nil
}
