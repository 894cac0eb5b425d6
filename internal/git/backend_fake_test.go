package git

import (
	"context"
	"errors"

	gitbackend "github.com/thiagokokada/branchlens/internal/git/backend"
)

type fakeBackend struct {
	repoPath string

	headStateFunc func() (hash string, headName string, err error)
	listRefsFunc  func() ([]gitbackend.Ref, error)
	trackedFunc   func(paths []string) ([]string, error)

	headStateCalls int
	lastTracked    []string
}

func (f *fakeBackend) RepoPath() string { return f.repoPath }

func (f *fakeBackend) HeadState(context.Context) (hash string, headName string, err error) {
	f.headStateCalls++
	if f.headStateFunc != nil {
		return f.headStateFunc()
	}
	return "", "", errors.New("unexpected HeadState call")
}

func (f *fakeBackend) ListRefs(context.Context) ([]gitbackend.Ref, error) {
	if f.listRefsFunc != nil {
		return f.listRefsFunc()
	}
	return nil, errors.New("unexpected ListRefs call")
}

func (f *fakeBackend) Tracked(_ context.Context, paths []string) ([]string, error) {
	f.lastTracked = paths
	if f.trackedFunc != nil {
		return f.trackedFunc(paths)
	}
	return nil, errors.New("unexpected Tracked call")
}
