// Package reconcile cross-references status records against the two
// repository histories: it recovers each file's synchronization history
// from the successor repo, walks the original repo between fence commits,
// and decides whether a ported file has textually drifted from the commit
// it claims to match.
package reconcile

import (
	"context"
	"regexp"
	"strings"

	"github.com/vanderheijden86/portboard/pkg/aggregate"
	"github.com/vanderheijden86/portboard/pkg/config"
	"github.com/vanderheijden86/portboard/pkg/debug"
	"github.com/vanderheijden86/portboard/pkg/gitrepo"
	"github.com/vanderheijden86/portboard/pkg/model"
	"github.com/vanderheijden86/portboard/pkg/progress"
)

// sourceBannerRe matches the header line ported files carry in the
// successor repository, naming the original repo and sync commit.
var sourceBannerRe = regexp.MustCompile(`^! ([^ ]+) commit ([0-9a-f]{7,40})$`)

// Reconciler holds the repositories and the run configuration.
type Reconciler struct {
	cfg    config.Config
	source *gitrepo.Repo
	target *gitrepo.Repo
}

// New returns a reconciler over the original (source) and successor
// (target) clones.
func New(cfg config.Config, source, target *gitrepo.Repo) *Reconciler {
	return &Reconciler{cfg: cfg, source: source, target: target}
}

func (r *Reconciler) uninteresting(c model.Commit) bool {
	for _, p := range r.cfg.UninterestingPrefixes {
		if strings.HasPrefix(c.Summary, p) {
			return true
		}
	}
	for _, sha := range r.cfg.UninterestingCommits {
		if c.SHA == sha {
			return true
		}
	}
	return false
}

// CollectHistory fills each tracked file's synchronization history from
// the successor repository: every revision of the target file is scanned
// for the source banner, oldest first, so history ends with the most
// recent sync point.
func (r *Reconciler) CollectHistory(ctx context.Context, res *aggregate.Result, prog *progress.Reporter) error {
	defer debug.LogEnterExit("reconcile.CollectHistory")()

	for _, key := range res.Order {
		if err := ctx.Err(); err != nil {
			return err
		}
		fd := res.Files[key]
		if prog != nil {
			prog.Step(key)
		}
		if fd.Status.TargetFile == "" {
			continue
		}
		revs, err := r.target.FileHistory(fd.Status.TargetFile)
		if err != nil {
			// The target file may not exist on the current branch yet.
			continue
		}
		var history []model.HistoryEntry
		for _, rev := range revs {
			content, err := r.target.ShowFile(rev, fd.Status.TargetFile)
			if err != nil {
				continue
			}
			src, ok := extractSourceBanner(content)
			if !ok {
				continue
			}
			if n := len(history); n > 0 && history[n-1].Source == src {
				continue
			}
			history = append(history, model.HistoryEntry{Commit: rev, Source: src})
		}
		fd.History = history
	}
	return nil
}

func extractSourceBanner(content string) (model.CommitRef, bool) {
	for _, line := range strings.Split(content, "\n") {
		if m := sourceBannerRe.FindStringSubmatch(line); m != nil {
			return model.CommitRef{Repo: m[1], Commit: m[2]}, true
		}
	}
	return model.CommitRef{}, false
}

// Reconcile computes forward-port information for every file whose status
// records a source commit in the original repository. Missing fence
// commits degrade to the other fence with a warning when the port state
// says they should exist; an unported file with no resolvable commits is
// expected and skipped silently.
func (r *Reconciler) Reconcile(ctx context.Context, res *aggregate.Result, prog *progress.Reporter) error {
	defer debug.LogEnterExit("reconcile.Reconcile")()

	head, err := r.source.Head()
	if err != nil {
		return err
	}
	pattern := gitrepo.IgnoreLinePattern(r.cfg.SyncIgnoreLines, r.cfg.SyncIgnorePatterns)

	for _, key := range res.Order {
		if err := ctx.Err(); err != nil {
			return err
		}
		fd := res.Files[key]
		if prog != nil {
			prog.Step(key)
		}
		if fd.Status.Source == nil || fd.Status.Source.Repo != r.source.Name() {
			continue
		}
		if err := r.reconcileFile(fd, head, pattern, prog); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) reconcileFile(fd *model.FileData, head model.Commit, pattern string, prog *progress.Reporter) error {
	fname := r.cfg.SourcePath(fd.ImportPath)

	var syncCommit, baseCommit *model.Commit
	if c, err := r.source.ResolveCommit(fd.Status.Source.Commit); err == nil {
		syncCommit = &c
	}
	// The base fence is the earliest recorded synchronization point that
	// still resolves.
	for _, h := range fd.History {
		if c, err := r.source.ResolveCommit(h.Source.Commit); err == nil {
			baseCommit = &c
			break
		}
	}

	switch {
	case baseCommit == nil && syncCommit != nil:
		// A missing base is expected unless the file already landed.
		if fd.State == model.Ported {
			warnf(prog, "no base commit for: %s", fd.Key())
		}
		baseCommit = syncCommit
	case syncCommit == nil && baseCommit != nil:
		if fd.State != model.Unported {
			warnf(prog, "no sync commit for: %s", fd.Key())
		}
		syncCommit = baseCommit
	case syncCommit == nil && baseCommit == nil:
		if fd.State != model.Unported {
			warnf(prog, "no commits at all for: %s (%s)", fd.Key(), fd.State)
		}
		return nil
	}

	diffLines, dirty, err := r.source.DiffIgnoring(*syncCommit, fname, pattern)
	if err != nil {
		return err
	}

	portedCommits, err := r.source.CommitsBetween(*baseCommit, *syncCommit, fname, r.uninteresting)
	if err != nil {
		return err
	}
	unportedCommits, err := r.source.CommitsBetween(*syncCommit, head, fname, r.uninteresting)
	if err != nil {
		return err
	}

	info := &model.ForwardPortInfo{
		Base:               *baseCommit,
		AllUnportedCommits: unportedCommits,
		AllPortedCommits:   portedCommits,
	}
	if dirty {
		info.DiffLines = diffLines
	}
	fd.ForwardPort = info
	return nil
}

func warnf(p *progress.Reporter, format string, args ...any) {
	if p != nil {
		p.Warnf(format, args...)
	}
}
