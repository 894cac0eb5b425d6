package backend

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// Minimum git version for the CLI backend. "git ls-files -z --full-name" and
// "symbolic-ref -q --short" are both older than this; 2.18 is the oldest
// release we test against.
var minGitVersion = gitVersion{major: 2, minor: 18, patch: 0}

type gitVersion struct {
	major int
	minor int
	patch int
}

func MinGitVersion() string {
	return minGitVersion.String()
}

func (v gitVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v gitVersion) less(other gitVersion) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

// parseGitVersionOutput accepts "git version 2.44.0", vendor suffixes like
// "(Apple Git-146)" or ".windows.1", and a bare "2.42.1".
func parseGitVersionOutput(out string) (gitVersion, bool) {
	s := strings.TrimSpace(out)
	if _, after, ok := strings.Cut(s, "git version"); ok {
		s = strings.TrimSpace(after)
	}
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return gitVersion{}, false
	}
	s = s[start:]
	end := strings.IndexFunc(s, func(r rune) bool { return !isDigit(r) && r != '.' })
	if end >= 0 {
		s = s[:end]
	}
	parts := strings.Split(strings.Trim(s, "."), ".")
	if len(parts) < 2 {
		return gitVersion{}, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return gitVersion{}, false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return gitVersion{}, false
	}
	patch := 0
	if len(parts) >= 3 {
		if p, err := strconv.Atoi(parts[2]); err == nil {
			patch = p
		}
	}
	return gitVersion{major: major, minor: minor, patch: patch}, true
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func validateGitVersionOutput(out string) error {
	got, ok := parseGitVersionOutput(out)
	if !ok {
		return fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(out))
	}
	if got.less(minGitVersion) {
		return fmt.Errorf("git %s is too old; branchlens requires git >= %s", got, minGitVersion)
	}
	return nil
}

var (
	gitVersionMu   sync.Mutex
	gitVersionDone bool
	gitVersionOut  string
	gitVersionErr  error
)

// GitVersion runs "git --version" once per process.
func GitVersion(ctx context.Context) (string, error) {
	gitVersionMu.Lock()
	defer gitVersionMu.Unlock()
	if gitVersionDone {
		return gitVersionOut, gitVersionErr
	}
	outBytes, err := exec.CommandContext(ctx, "git", "--version").CombinedOutput()
	out := strings.TrimSpace(string(outBytes))
	if err != nil {
		if ctx.Err() != nil {
			// do not cache a cancelled probe
			return "", ctx.Err()
		}
		if out != "" {
			err = fmt.Errorf("git --version: %v: %s", err, out)
		} else {
			err = fmt.Errorf("git --version: %w", err)
		}
	}
	gitVersionOut, gitVersionErr, gitVersionDone = out, err, true
	return out, err
}

func ensureMinGitVersion(ctx context.Context) error {
	out, err := GitVersion(ctx)
	if err != nil {
		return err
	}
	return validateGitVersionOutput(out)
}
