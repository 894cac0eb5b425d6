package backend

import (
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/thiagokokada/branchlens/internal/git/gittest"
)

func TestParseRefsFromShowRef(t *testing.T) {
	t.Parallel()

	const (
		commit1 = "1111111111111111111111111111111111111111"
		commit2 = "2222222222222222222222222222222222222222"
		tagObj  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	)

	in := strings.Join([]string{
		commit1 + " refs/heads/main",
		commit1 + " refs/remotes/origin/main",
		commit1 + " refs/remotes/origin/HEAD",
		commit2 + " refs/tags/v1.0",
		tagObj + " refs/tags/v2.0",
		commit1 + " refs/tags/v2.0^{}",
		commit2 + " refs/stash",
		"",
	}, "\n")

	got, err := parseRefsFromShowRef(in)
	if err != nil {
		t.Fatalf("parseRefsFromShowRef() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("unexpected ref count: got %d want 5", len(got))
	}

	assertHasRef(t, got, Ref{Hash: commit1, Kind: RefKindBranch, Name: "main"})
	assertHasRef(t, got, Ref{Hash: commit1, Kind: RefKindRemoteBranch, Name: "origin/main"})
	assertHasRef(t, got, Ref{Hash: commit1, Kind: RefKindRemoteBranch, Name: "origin/HEAD"})
	assertHasRef(t, got, Ref{Hash: commit2, Kind: RefKindTag, Name: "v1.0"})
	// v2.0 should use the peeled hash.
	assertHasRef(t, got, Ref{Hash: commit1, Kind: RefKindTag, Name: "v2.0"})
}

func TestParseRefsFromShowRef_InvalidLine(t *testing.T) {
	t.Parallel()

	_, err := parseRefsFromShowRef("refs/heads/main\n")
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseNULList(t *testing.T) {
	t.Parallel()

	got, err := parseNULList(strings.NewReader("a.go\x00dir/b go\x00\x00tail"))
	if err != nil {
		t.Fatalf("parseNULList() error = %v", err)
	}
	want := []string{"a.go", "dir/b go", "tail"}
	if !slices.Equal(got, want) {
		t.Fatalf("parseNULList() = %#v, want %#v", got, want)
	}

	if _, err := parseNULList(failingReader{}); err == nil {
		t.Fatal("expected error")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}

func assertHasRef(t *testing.T, refs []Ref, want Ref) {
	t.Helper()
	for _, got := range refs {
		if got.Hash == want.Hash && got.Kind == want.Kind && got.Name == want.Name {
			return
		}
	}
	t.Fatalf("missing ref: %+v (got=%+v)", want, refs)
}

func backendKinds(t *testing.T) []Kind {
	t.Helper()
	kinds := []Kind{KindNative}
	if _, err := exec.LookPath("git"); err == nil {
		kinds = append(kinds, KindCLI)
	} else {
		t.Log("git executable not found, skipping CLI backend")
	}
	return kinds
}

func TestBackendsHeadState(t *testing.T) {
	ctx := context.Background()
	for _, kind := range backendKinds(t) {
		t.Run(string(kind), func(t *testing.T) {
			repo := gittest.New(t, "main")
			repo.WriteFile("a.txt", "a")
			first := repo.Commit("first", "a.txt")
			repo.Branch("feature")
			repo.Checkout("feature")

			b, err := Open(ctx, kind, repo.Dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if b.RepoPath() != repo.Dir {
				t.Fatalf("RepoPath() = %q, want %q", b.RepoPath(), repo.Dir)
			}
			hash, name, err := b.HeadState(ctx)
			if err != nil {
				t.Fatalf("HeadState: %v", err)
			}
			if hash != first.String() || name != "feature" {
				t.Fatalf("HeadState() = (%q, %q), want (%q, %q)", hash, name, first, "feature")
			}

			repo.Detach(first)
			hash, name, err = b.HeadState(ctx)
			if err != nil {
				t.Fatalf("HeadState detached: %v", err)
			}
			if hash != first.String() || name != "" {
				t.Fatalf("detached HeadState() = (%q, %q)", hash, name)
			}
		})
	}
}

func TestBackendsUnbornHead(t *testing.T) {
	ctx := context.Background()
	for _, kind := range backendKinds(t) {
		t.Run(string(kind), func(t *testing.T) {
			repo := gittest.New(t, "trunk")
			b, err := Open(ctx, kind, repo.Dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			hash, name, err := b.HeadState(ctx)
			if err != nil {
				t.Fatalf("HeadState: %v", err)
			}
			if hash != "" || name != "trunk" {
				t.Fatalf("HeadState() = (%q, %q), want (\"\", \"trunk\")", hash, name)
			}
		})
	}
}

func TestBackendsListRefsAndTracked(t *testing.T) {
	ctx := context.Background()
	for _, kind := range backendKinds(t) {
		t.Run(string(kind), func(t *testing.T) {
			repo := gittest.New(t, "main")
			repo.WriteFile("a.txt", "a")
			repo.WriteFile("dir/b.txt", "b")
			head := repo.Commit("first", "a.txt", "dir/b.txt")
			repo.Branch("release")
			repo.WriteFile("untracked.txt", "u")

			b, err := Open(ctx, kind, repo.Dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			refs, err := b.ListRefs(ctx)
			if err != nil {
				t.Fatalf("ListRefs: %v", err)
			}
			assertHasRef(t, refs, Ref{Hash: head.String(), Kind: RefKindBranch, Name: "main"})
			assertHasRef(t, refs, Ref{Hash: head.String(), Kind: RefKindBranch, Name: "release"})

			tracked, err := b.Tracked(ctx, []string{"a.txt", "dir/b.txt", "untracked.txt", "missing.txt"})
			if err != nil {
				t.Fatalf("Tracked: %v", err)
			}
			slices.Sort(tracked)
			if !slices.Equal(tracked, []string{"a.txt", "dir/b.txt"}) {
				t.Fatalf("Tracked() = %#v", tracked)
			}
		})
	}
}

func TestOpenOutsideRepository(t *testing.T) {
	if _, err := OpenNative(t.TempDir()); err == nil {
		t.Fatal("expected error outside a repository")
	}
}
