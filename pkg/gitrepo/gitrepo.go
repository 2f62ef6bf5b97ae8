// Package gitrepo wraps the git CLI for the repository queries the
// dashboard needs: commit resolution, history walks bounded by fence
// commits, single-file diffs, and diffs that ignore boilerplate lines.
//
// All access goes through the git subprocess. The ignore-matching-lines
// diff in particular has no equivalent outside git itself.
package gitrepo

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/vanderheijden86/portboard/pkg/model"
)

// Common errors.
var (
	ErrNotFound      = errors.New("commit not found")
	ErrUnknownRemote = errors.New("unrecognized repository remote")
)

// Repo is a handle on a local clone. The GitHub name is resolved from the
// first remote at open time; a clone whose remote is not a GitHub URL is
// unusable here and Open fails.
type Repo struct {
	dir  string
	name string

	resolveCache map[string]model.Commit
}

// Open validates dir as a git work tree and resolves its GitHub name.
func Open(dir string) (*Repo, error) {
	if _, err := runGit(dir, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("open repo %s: %w", dir, err)
	}
	r := &Repo{dir: dir, resolveCache: make(map[string]model.Commit)}
	name, err := r.remoteGitHubName()
	if err != nil {
		return nil, err
	}
	r.name = name
	return r, nil
}

func (r *Repo) remoteGitHubName() (string, error) {
	remotes, err := runGit(r.dir, "remote")
	if err != nil {
		return "", fmt.Errorf("list remotes in %s: %w", r.dir, err)
	}
	fields := strings.Fields(remotes)
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: %s has no remotes", ErrUnknownRemote, r.dir)
	}
	url, err := runGit(r.dir, "remote", "get-url", fields[0])
	if err != nil {
		return "", fmt.Errorf("remote url in %s: %w", r.dir, err)
	}
	url = strings.TrimSpace(url)
	var name string
	switch {
	case strings.HasPrefix(url, "https://github.com/"):
		name = strings.TrimPrefix(url, "https://github.com/")
	case strings.HasPrefix(url, "git@github.com:"):
		name = strings.TrimPrefix(url, "git@github.com:")
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownRemote, url)
	}
	return strings.TrimSuffix(name, ".git"), nil
}

// Name returns the GitHub "owner/name" of the repository.
func (r *Repo) Name() string { return r.name }

// Dir returns the work tree path.
func (r *Repo) Dir() string { return r.dir }

// ResolveCommit resolves any commit-ish to a commit, or ErrNotFound.
// Resolutions are memoized for the run; history is immutable underneath us.
func (r *Repo) ResolveCommit(rev string) (model.Commit, error) {
	if c, ok := r.resolveCache[rev]; ok {
		return c, nil
	}
	out, err := runGit(r.dir, "log", "-1", "--format=%H%x1f%s", rev, "--")
	if err != nil {
		return model.Commit{}, fmt.Errorf("%w: %s in %s", ErrNotFound, rev, r.name)
	}
	sha, summary, _ := strings.Cut(strings.TrimRight(out, "\n"), "\x1f")
	c := model.Commit{RepoName: r.name, SHA: sha, Summary: summary}
	r.resolveCache[rev] = c
	return c, nil
}

// Head returns the current branch head.
func (r *Repo) Head() (model.Commit, error) {
	return r.ResolveCommit("HEAD")
}

// revList returns the commits in base..head (optionally restricted to
// path), oldest first.
func (r *Repo) revList(base, head, path string) ([]string, error) {
	args := []string{"rev-list", "--reverse", base + ".." + head}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := runGit(r.dir, args...)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// DiffFile returns the patch for path between two commits. An empty patch
// means the file is identical on both sides.
func (r *Repo) DiffFile(base, head, path string) (string, error) {
	return runGit(r.dir, "diff", base, head, "--", path)
}

// CommitsBetween walks every commit in base..head and pairs each with the
// single-file diff it introduced to path. Commits that did not touch the
// file carry no diff, as do commits the uninteresting filter suppresses
// (synchronization bookkeeping noise). The result is ordered most recent
// first. The walk excludes head itself unless it touched the file: head
// is a fence, not part of the reported range.
func (r *Repo) CommitsBetween(base, head model.Commit, path string, uninteresting func(model.Commit) bool) ([]model.CommitDiff, error) {
	touching, err := r.revList(base.SHA, head.SHA, path)
	if err != nil {
		return nil, fmt.Errorf("walk %s in %s: %w", path, r.name, err)
	}
	all, err := r.revList(base.SHA, head.SHA, "")
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", r.name, err)
	}

	touches := make(map[string]bool, len(touching))
	for _, sha := range touching {
		touches[sha] = true
	}

	var out []model.CommitDiff // built oldest first, reversed at the end
	lastTouch := base.SHA
	for _, sha := range all {
		if !touches[sha] {
			if sha == head.SHA {
				continue
			}
			c, err := r.ResolveCommit(sha)
			if err != nil {
				return nil, err
			}
			out = append(out, model.CommitDiff{Commit: c})
			continue
		}
		c, err := r.ResolveCommit(sha)
		if err != nil {
			return nil, err
		}
		if uninteresting != nil && uninteresting(c) {
			out = append(out, model.CommitDiff{Commit: c})
		} else {
			patch, err := r.DiffFile(lastTouch, sha, path)
			if err != nil {
				return nil, fmt.Errorf("diff %s at %s: %w", path, sha, err)
			}
			out = append(out, model.CommitDiff{Commit: c, Diff: patch, HasDiff: patch != ""})
		}
		lastTouch = sha
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// IgnoreLinePattern builds the --ignore-matching-lines pattern for a set
// of literal boilerplate lines plus raw regex alternatives. Every
// alternative carries its own $ terminator so an empty literal matches
// blank lines only, never every line.
func IgnoreLinePattern(literals, patterns []string) string {
	alts := make([]string, 0, len(literals)+len(patterns))
	for _, l := range literals {
		alts = append(alts, regexp.QuoteMeta(l)+"$")
	}
	for _, p := range patterns {
		alts = append(alts, p+"$")
	}
	return "^(" + strings.Join(alts, "|") + ")"
}

// DiffIgnoring diffs path between base and the work-tree head, ignoring
// lines matching pattern. It returns the diff body (header stripped) and
// whether the file differs at all once ignored lines are discounted.
func (r *Repo) DiffIgnoring(base model.Commit, path, pattern string) (lines []string, dirty bool, err error) {
	cmd := exec.Command("git", "diff", "--exit-code",
		"--ignore-matching-lines="+pattern,
		base.SHA+"..HEAD", "--", path)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	if runErr == nil {
		return nil, false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && exitErr.ExitCode() == 1 {
		all := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
		// Drop the four-line patch header; the dashboard renders body only.
		if len(all) > 4 {
			lines = all[4:]
		}
		return lines, true, nil
	}
	return nil, false, fmt.Errorf("git diff %s in %s: %v: %s", path, r.name, runErr, strings.TrimSpace(stderr.String()))
}

// FileHistory returns the commits that touched path, oldest first.
func (r *Repo) FileHistory(path string) ([]string, error) {
	out, err := runGit(r.dir, "log", "--reverse", "--format=%H", "--", path)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// ShowFile returns the content of path at the given commit.
func (r *Repo) ShowFile(sha, path string) (string, error) {
	return runGit(r.dir, "show", sha+":"+path)
}

func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %v: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
