// Package git answers which branch a file is on.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"

	gitbackend "github.com/thiagokokada/branchlens/internal/git/backend"
	"github.com/thiagokokada/branchlens/internal/status"
)

type opener func(ctx context.Context, kind gitbackend.Kind, root string) (gitbackend.Backend, error)

// Resolver is the git implementation of status.Oracle. It keeps one backend
// per working copy root.
type Resolver struct {
	kind gitbackend.Kind
	open opener

	mu       sync.Mutex
	backends map[string]gitbackend.Backend
}

func NewResolver(kind gitbackend.Kind) *Resolver {
	return &Resolver{
		kind:     kind,
		open:     gitbackend.Open,
		backends: make(map[string]gitbackend.Backend),
	}
}

// NewWithBackend returns a resolver that serves every root from b.
func NewWithBackend(b gitbackend.Backend) *Resolver {
	r := NewResolver(gitbackend.KindNative)
	r.open = func(context.Context, gitbackend.Kind, string) (gitbackend.Backend, error) {
		return b, nil
	}
	return r
}

func (r *Resolver) Kind() gitbackend.Kind { return r.kind }

// Resolve returns the branch of the working copy holding file. Files outside
// any working copy and commits not on a local branch resolve to Empty.
func (r *Resolver) Resolve(ctx context.Context, owner status.Owner, file status.FileID) (status.Status, error) {
	root, ok := FindRoot(file.String())
	if !ok {
		slog.Debug("file is not inside a working copy", slog.String("file", file.String()))
		return status.Empty, nil
	}
	b, err := r.backendFor(ctx, root)
	if err != nil {
		return status.Status{}, err
	}
	hash, headName, err := b.HeadState(ctx)
	if err != nil {
		return status.Status{}, fmt.Errorf("head state of %s: %w", root, err)
	}
	if headName != "" {
		return status.NewStatus(headName), nil
	}
	if hash == "" {
		return status.Empty, nil
	}
	branch, err := r.branchAt(ctx, b, hash)
	if err != nil {
		return status.Status{}, err
	}
	slog.Debug("detached HEAD",
		slog.String("owner", string(owner)),
		slog.String("root", root),
		slog.String("hash", hash),
		slog.String("branch", branch),
	)
	return status.NewStatus(branch), nil
}

// branchAt returns the alphabetically first local branch pointing at hash.
func (r *Resolver) branchAt(ctx context.Context, b gitbackend.Backend, hash string) (string, error) {
	refs, err := b.ListRefs(ctx)
	if err != nil {
		return "", fmt.Errorf("list refs of %s: %w", b.RepoPath(), err)
	}
	var names []string
	for _, ref := range refs {
		if ref.LocalBranchAt(hash) {
			names = append(names, ref.Name)
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	slices.Sort(names)
	return names[0], nil
}

// Versioned returns the files that are tracked by their working copy. Files
// outside a working copy are dropped. Errors of individual working copies are
// joined; files of the other copies are still returned.
func (r *Resolver) Versioned(ctx context.Context, files []status.FileID) ([]status.FileID, error) {
	type group struct {
		rels  []string
		files map[string]status.FileID
	}
	groups := map[string]*group{}
	var order []string
	for _, f := range files {
		root, ok := FindRoot(f.String())
		if !ok {
			continue
		}
		rel, err := filepath.Rel(root, f.String())
		if err != nil || rel == "." {
			continue
		}
		rel = filepath.ToSlash(rel)
		g := groups[root]
		if g == nil {
			g = &group{files: map[string]status.FileID{}}
			groups[root] = g
			order = append(order, root)
		}
		g.rels = append(g.rels, rel)
		g.files[rel] = f
	}

	var res []status.FileID
	var errs []error
	for _, root := range order {
		g := groups[root]
		b, err := r.backendFor(ctx, root)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tracked, err := b.Tracked(ctx, g.rels)
		if err != nil {
			errs = append(errs, fmt.Errorf("tracked files of %s: %w", root, err))
			continue
		}
		for _, rel := range tracked {
			if f, ok := g.files[rel]; ok {
				res = append(res, f)
			}
		}
	}
	return res, errors.Join(errs...)
}

func (r *Resolver) backendFor(ctx context.Context, root string) (gitbackend.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[root]; ok {
		return b, nil
	}
	b, err := r.open(ctx, r.kind, root)
	if err != nil {
		return nil, fmt.Errorf("open %s backend at %s: %w", r.kind, root, err)
	}
	slog.Debug("opened working copy", slog.String("root", root), slog.String("backend", string(r.kind)))
	r.backends[root] = b
	return b, nil
}

// Forget drops the backend cached for root, e.g. after the repository was
// removed or re-initialized.
func (r *Resolver) Forget(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, root)
}

// Roots returns the working copy roots opened so far.
func (r *Resolver) Roots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	roots := make([]string, 0, len(r.backends))
	for root := range r.backends {
		roots = append(roots, root)
	}
	slices.Sort(roots)
	return roots
}
