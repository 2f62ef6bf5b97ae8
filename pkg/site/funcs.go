package site

import (
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/vanderheijden86/portboard/pkg/model"
)

var (
	urlRe      = regexp.MustCompile(`https?://[^\s<>"]+`)
	prRefRe    = regexp.MustCompile(`#(\d{3,6})\b`)
	codeSpanRe = regexp.MustCompile("`([^`]+)`")
)

// htmlifyText escapes plain text and linkifies bare URLs and #NNNN pull
// request references, turning newlines into breaks.
func (r *Renderer) htmlifyText(text string) template.HTML {
	escaped := html.EscapeString(text)
	escaped = urlRe.ReplaceAllString(escaped, `<a href="$0">$0</a>`)
	escaped = prRefRe.ReplaceAllString(escaped,
		fmt.Sprintf(`<a href="https://github.com/%s/pull/$1">#$1</a>`, r.cfg.Repos.TargetName))
	escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
	return template.HTML(escaped)
}

// htmlifyComment renders doc-comment text: backtick spans become code, the
// rest goes through htmlifyText.
func (r *Renderer) htmlifyComment(text string) template.HTML {
	out := string(r.htmlifyText(text))
	out = codeSpanRe.ReplaceAllString(out, `<code>$1</code>`)
	return template.HTML(out)
}

// linkSHA renders a commit reference as a link. The two reference kinds
// are matched explicitly: resolved commits are always linkable, raw
// source records may point at commits that no longer exist and get the
// danger styling then.
func (r *Renderer) linkSHA(ref model.SHARef) template.HTML {
	switch ref.Kind {
	case model.SHARefResolved:
		return shaAnchor(ref.Commit.RepoName, ref.Commit.SHA, ref.Commit.ShortSHA(), true)
	case model.SHARefSource:
		if ref.Source.Commit == "" {
			return template.HTML(`<span title="Unknown" class="text-danger">???</span>`)
		}
		return shaAnchor(ref.Source.Repo, ref.Source.Commit, ref.Source.ShortSHA(), ref.Valid)
	default:
		return template.HTML(`<span title="Unknown" class="text-danger">???</span>`)
	}
}

func shaAnchor(repo, sha, short string, valid bool) template.HTML {
	class := ` class="font-monospace"`
	if !valid {
		class = ` class="font-monospace text-danger" title="commit does not seem to exist!"`
	}
	return template.HTML(fmt.Sprintf(`<a href="https://github.com/%s/commit/%s"%s>%s</a>`,
		html.EscapeString(repo), html.EscapeString(sha), class, html.EscapeString(short)))
}

// sourceRef builds the tagged reference for a file's recorded source
// commit, verifying existence against the local clones.
func (r *Renderer) sourceRef(fd *model.FileData) model.SHARef {
	if fd.Status.Source == nil {
		return model.SourceRef(model.CommitRef{}, false)
	}
	return model.SourceRef(*fd.Status.Source, r.repos.CommitExists(*fd.Status.Source))
}

func (r *Renderer) filePageURL(fd *model.FileData) string {
	return r.cfg.SiteURL + "/file/" + strings.Join(fd.ImportPath, "/") + ".html"
}

func (r *Renderer) prURL(pr int) string {
	return fmt.Sprintf("https://github.com/%s/pull/%d", r.cfg.Repos.TargetName, pr)
}

// linkCommit renders a resolved commit; kept separate from linkSHA so
// templates never build SHARef values by hand.
func (r *Renderer) linkCommit(c model.Commit) template.HTML {
	return r.linkSHA(model.ResolvedRef(c))
}

// sourceShaRef wraps a raw source record for linkSHA, with validity
// checked against the local clones.
func (r *Renderer) sourceShaRef(ref model.CommitRef) model.SHARef {
	return model.SourceRef(ref, r.repos.CommitExists(ref))
}

type diffStat struct {
	Added   int
	Removed int
}

func diffStatOf(fp *model.ForwardPortInfo) diffStat {
	a, rm := fp.DiffStat()
	return diffStat{Added: a, Removed: rm}
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func stateClass(s model.PortState) string {
	return strings.ToLower(strings.ReplaceAll(s.String(), "_", "-"))
}

func joinDots(parts []string) string {
	return strings.Join(parts, ".")
}
