package backend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

func (g *gitCLI) HeadState(ctx context.Context) (hash string, headName string, err error) {
	if g == nil || g.path == "" {
		return "", "", fmt.Errorf("repository root not set")
	}
	out, err := g.runGitCommand(ctx, []string{"rev-parse", "-q", "--verify", "HEAD"}, true, "git rev-parse")
	if err != nil {
		return "", "", err
	}
	hash = strings.TrimSpace(out)
	ref, err := g.runGitCommand(ctx, []string{"symbolic-ref", "-q", "--short", "HEAD"}, true, "git symbolic-ref")
	if err != nil {
		return "", "", err
	}
	return hash, strings.TrimSpace(ref), nil
}

func (g *gitCLI) ListRefs(ctx context.Context) ([]Ref, error) {
	if g == nil || g.path == "" {
		return nil, nil
	}
	out, err := g.runGitCommand(ctx,
		[]string{
			"--no-pager",
			"show-ref",
			"--dereference",
		},
		true,
		"git show-ref",
	)
	if err != nil {
		return nil, err
	}
	return parseRefsFromShowRef(out)
}

func (g *gitCLI) Tracked(ctx context.Context, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	args := append([]string{"ls-files", "-z", "--full-name", "--"}, paths...)
	out, err := g.runGitCommand(ctx, args, false, "git ls-files")
	if err != nil {
		return nil, err
	}
	return parseNULList(strings.NewReader(out))
}

func parseNULList(r io.Reader) ([]string, error) {
	var res []string
	scanner := bufio.NewScanner(r)
	scanner.Split(splitNUL)
	for scanner.Scan() {
		if name := scanner.Text(); name != "" {
			res = append(res, name)
		}
	}
	return res, scanner.Err()
}

func splitNUL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == 0 {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func parseRefsFromShowRef(out string) ([]Ref, error) {
	type refEntry struct {
		hash string
		ref  string
	}

	peeledByTagRef := map[string]string{}
	var entries []refEntry

	for rawLine := range strings.SplitSeq(out, "\n") {
		line := strings.TrimRight(rawLine, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, fmt.Errorf("unexpected show-ref output line: %q", rawLine)
		}
		hash, refName := parts[0], parts[1]
		if base, ok := strings.CutSuffix(refName, "^{}"); ok {
			if base != "" {
				peeledByTagRef[base] = hash
			}
			continue
		}
		entries = append(entries, refEntry{hash: hash, ref: refName})
	}

	var refs []Ref
	for _, entry := range entries {
		kind, short, ok := classifyRef(entry.ref)
		if !ok {
			continue
		}
		hash := entry.hash
		if peeled, ok := peeledByTagRef[entry.ref]; ok && kind == RefKindTag {
			hash = peeled
		}
		refs = append(refs, Ref{Hash: hash, Kind: kind, Name: short})
	}
	return refs, nil
}

func classifyRef(name string) (RefKind, string, bool) {
	for _, p := range []struct {
		prefix string
		kind   RefKind
	}{
		{"refs/heads/", RefKindBranch},
		{"refs/remotes/", RefKindRemoteBranch},
		{"refs/tags/", RefKindTag},
	} {
		if short, ok := strings.CutPrefix(name, p.prefix); ok && short != "" {
			return p.kind, short, true
		}
	}
	return 0, "", false
}
