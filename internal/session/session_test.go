package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagokokada/branchlens/internal/git"
	gitbackend "github.com/thiagokokada/branchlens/internal/git/backend"
	"github.com/thiagokokada/branchlens/internal/git/gittest"
	"github.com/thiagokokada/branchlens/internal/status"
)

type fakeOracle struct {
	mu        sync.Mutex
	branch    string
	versioned map[status.FileID]bool
}

func (f *fakeOracle) Resolve(context.Context, status.Owner, status.FileID) (status.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return status.NewStatus(f.branch), nil
}

func (f *fakeOracle) Versioned(_ context.Context, files []status.FileID) ([]status.FileID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []status.FileID
	for _, file := range files {
		if f.versioned[file] {
			res = append(res, file)
		}
	}
	return res, nil
}

type countingSink struct{ n atomic.Int32 }

func (s *countingSink) Refresh() { s.n.Add(1) }

func newManager(t *testing.T, oracle status.Oracle) (*Manager, *countingSink) {
	t.Helper()
	sink := &countingSink{}
	m := New(oracle, sink, Config{DecorationsShown: true, PollTimeout: 5 * time.Millisecond})
	m.Init(context.Background())
	t.Cleanup(m.Dispose)
	return m, sink
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !m.Engine().Running() && m.Engine().QueueLen() == 0
	}, 2*time.Second, time.Millisecond)
}

func TestDecorationSchedulesOnMiss(t *testing.T) {
	m, sink := newManager(t, &fakeOracle{branch: "main"})

	_, ok := m.Decoration("/repo/a.go")
	assert.False(t, ok)
	require.Eventually(t, func() bool { return sink.n.Load() == 1 }, 2*time.Second, time.Millisecond)

	got, ok := m.Decoration("/repo/a.go")
	require.True(t, ok)
	assert.Equal(t, status.NewStatus("main"), got)
	assert.NotEmpty(t, m.Owner())
}

func TestFilesUpdatedRefreshesOnEviction(t *testing.T) {
	m, sink := newManager(t, &fakeOracle{})
	m.Cache().Put(status.NewFileID("/repo/a.go"), status.NewStatus("main"))

	m.FilesUpdated([]string{"/repo/a.go", "/repo/b.go"})
	assert.Equal(t, int32(1), sink.n.Load())
	assert.Zero(t, m.Cache().Len())

	m.FilesUpdated([]string{"/repo/b.go"})
	assert.Equal(t, int32(1), sink.n.Load(), "nothing evicted and nothing versioned")

	m.FilesUpdated(nil)
	assert.Equal(t, int32(1), sink.n.Load())
}

func TestFilesUpdatedRefreshesOnVersionedFile(t *testing.T) {
	oracle := &fakeOracle{versioned: map[status.FileID]bool{status.NewFileID("/repo/new.go"): true}}
	m, sink := newManager(t, oracle)

	m.FilesUpdated([]string{"/repo/new.go"})
	assert.Equal(t, int32(1), sink.n.Load())
}

func TestBeforeDeleteAndMove(t *testing.T) {
	m, _ := newManager(t, &fakeOracle{})
	a, b := status.NewFileID("/repo/a.go"), status.NewFileID("/repo/b.go")
	m.Cache().Put(a, status.NewStatus("main"))
	m.Cache().Put(b, status.NewStatus("main"))

	assert.True(t, m.BeforeDelete("/repo/a.go"))
	assert.False(t, m.BeforeDelete("/repo/a.go"))
	assert.True(t, m.BeforeMove("/repo/b.go"))
	assert.Zero(t, m.Cache().Len())
}

func TestBranchesChangedEvictsUnderRoot(t *testing.T) {
	m, sink := newManager(t, &fakeOracle{})
	m.Cache().Put(status.NewFileID("/repo/a.go"), status.NewStatus("main"))
	m.Cache().Put(status.NewFileID("/other/b.go"), status.NewStatus("main"))

	m.BranchesChanged("/repo")
	assert.Equal(t, 1, m.Cache().Len())
	assert.Equal(t, int32(1), sink.n.Load())
}

func TestDecorationsToggled(t *testing.T) {
	m, sink := newManager(t, &fakeOracle{branch: "main"})

	m.DecorationsToggled(false)
	assert.False(t, m.DecorationsShown())
	assert.Equal(t, int32(1), sink.n.Load(), "toggling always redraws")

	m.Schedule("/repo/a.go")
	waitIdle(t, m)
	require.Eventually(t, func() bool { return m.Cache().Len() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), sink.n.Load(), "drain refresh is skipped while hidden")

	m.DecorationsToggled(true)
	assert.Equal(t, int32(2), sink.n.Load())
}

func TestCloseEmptiesEverything(t *testing.T) {
	m, _ := newManager(t, &fakeOracle{branch: "main"})
	m.Cache().Put(status.NewFileID("/repo/a.go"), status.NewStatus("main"))
	m.Schedule("/repo/b.go")

	m.Close()
	assert.Zero(t, m.Cache().Len())
	assert.Zero(t, m.Engine().QueueLen())
	assert.Empty(t, m.Engine().Pending())
	assert.Equal(t, status.Rejected, m.Schedule("/repo/c.go"))

	_, ok := m.Decoration("/repo/a.go")
	assert.False(t, ok)
}

func TestSessionWithGitRepository(t *testing.T) {
	repo := gittest.New(t, "main")
	a := repo.WriteFile("a.go", "a")
	b := repo.WriteFile("b.go", "b")
	repo.Commit("first", "a.go", "b.go")
	repo.Branch("feature")

	m, sink := newManager(t, git.NewResolver(gitbackend.KindNative))
	m.Decoration(a)
	m.Decoration(b)
	m.Decoration(a)
	require.Eventually(t, func() bool { return sink.n.Load() >= 1 }, 5*time.Second, time.Millisecond)
	waitIdle(t, m)

	for _, f := range []string{a, b} {
		got, ok := m.Decoration(f)
		require.True(t, ok, f)
		assert.Equal(t, status.NewStatus("main"), got)
	}

	repo.Checkout("feature")
	m.BranchesChanged(repo.Dir)
	_, ok := m.Decoration(a)
	assert.False(t, ok, "branch switch invalidates cached statuses")
	require.Eventually(t, func() bool {
		got, ok := m.Cache().Get(status.NewFileID(a))
		return ok && got == status.NewStatus("feature")
	}, 5*time.Second, time.Millisecond)

	// b.go is tracked, so an update of it alone still asks for a redraw
	before := sink.n.Load()
	m.FilesUpdated([]string{b})
	assert.Greater(t, sink.n.Load(), before)
}
