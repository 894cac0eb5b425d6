package backend

import (
	"context"
	"fmt"
)

// Backend reads branch information from one working copy.
//
// Two implementations exist: one shells out to the git executable, the other
// reads the repository in-process with go-git. Callers never need to know
// which one they hold.
type Backend interface {
	RepoPath() string

	// HeadState returns the commit HEAD points at and the short branch name
	// when HEAD is symbolic. hash is empty for an unborn branch; headName is
	// empty when HEAD is detached.
	HeadState(ctx context.Context) (hash string, headName string, err error)
	ListRefs(ctx context.Context) ([]Ref, error)

	// Tracked returns the subset of paths (relative to RepoPath, slash
	// separated) that are present in the index.
	Tracked(ctx context.Context, paths []string) ([]string, error)
}

type Kind string

const (
	KindNative Kind = "native"
	KindCLI    Kind = "cli"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNative, KindCLI:
		return Kind(s), nil
	case "":
		return KindNative, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want %q or %q)", s, KindNative, KindCLI)
	}
}

// Open opens the working copy at repoPath with the requested backend.
func Open(ctx context.Context, kind Kind, repoPath string) (Backend, error) {
	switch kind {
	case KindCLI:
		return OpenCLI(ctx, repoPath)
	case KindNative, "":
		return OpenNative(repoPath)
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}
