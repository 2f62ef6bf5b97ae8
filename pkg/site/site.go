// Package site renders the static dashboard: the index, the out-of-sync
// report, and one page per tracked file, plus copied static assets.
//
// Templates and assets are embedded so a pb binary is self-contained; the
// whole output tree is regenerated on every run rather than updated
// incrementally.
package site

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/portboard/pkg/aggregate"
	"github.com/vanderheijden86/portboard/pkg/config"
	"github.com/vanderheijden86/portboard/pkg/debug"
	"github.com/vanderheijden86/portboard/pkg/gitrepo"
	"github.com/vanderheijden86/portboard/pkg/importgraph"
	"github.com/vanderheijden86/portboard/pkg/model"
	"github.com/vanderheijden86/portboard/pkg/progress"
	"github.com/vanderheijden86/portboard/pkg/site/graphviz"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// pageWorkers bounds concurrent per-file page rendering. Pages share no
// mutable state, so this is the one embarrassingly parallel stage.
const pageWorkers = 16

// Renderer holds everything template execution needs.
type Renderer struct {
	cfg   config.Config
	repos *gitrepo.Set
	graph *importgraph.Graph
	tmpl  *template.Template
}

// New parses the embedded templates.
func New(cfg config.Config, repos *gitrepo.Set, graph *importgraph.Graph) (*Renderer, error) {
	r := &Renderer{cfg: cfg, repos: repos, graph: graph}
	tmpl := template.New("site").Funcs(template.FuncMap{
		"linkSHA":        r.linkSHA,
		"linkCommit":     r.linkCommit,
		"sourceShaRef":   r.sourceShaRef,
		"diffStat":       diffStatOf,
		"shortSHA":       shortSHA,
		"htmlifyText":    r.htmlifyText,
		"htmlifyComment": r.htmlifyComment,
		"filePageURL":    r.filePageURL,
		"prURL":          r.prURL,
		"stateClass":     stateClass,
		"joinDots":       joinDots,
		"siteURL":        func() string { return r.cfg.SiteURL },
	})
	tmpl, err := tmpl.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.tmpl = tmpl
	return r, nil
}

// Render writes the complete site under the build directory.
func (r *Renderer) Render(ctx context.Context, res *aggregate.Result, head model.Commit, prog *progress.Reporter) error {
	defer debug.LogEnterExit("site.Render")()

	htmlDir := r.cfg.HTMLDir()
	if err := os.MkdirAll(htmlDir, 0o755); err != nil {
		return err
	}
	if err := r.copyStatic(htmlDir); err != nil {
		return err
	}
	if err := r.writeProgressChart(htmlDir, res); err != nil {
		return err
	}
	if err := r.renderIndex(htmlDir, res); err != nil {
		return err
	}
	if err := r.renderOutOfSync(htmlDir, res, head); err != nil {
		return err
	}
	return r.renderFilePages(ctx, htmlDir, res, prog)
}

func (r *Renderer) copyStatic(htmlDir string) error {
	return fs.WalkDir(staticFS, "static", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := strings.TrimPrefix(path, "static/")
		raw, err := staticFS.ReadFile(path)
		if err != nil {
			return err
		}
		dst := filepath.Join(htmlDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dst, raw, 0o644)
	})
}

func (r *Renderer) writeProgressChart(htmlDir string, res *aggregate.Result) error {
	var p graphviz.Progress
	for _, fd := range res.Files {
		if fd.Lines == nil {
			continue
		}
		switch fd.State {
		case model.Ported:
			p.PortedLines += *fd.Lines
		case model.InProgress:
			p.InProgressLines += *fd.Lines
		case model.Unported:
			p.UnportedLines += *fd.Lines
		}
	}
	var buf bytes.Buffer
	if err := graphviz.RenderProgressPNG(&buf, p); err != nil {
		// A status file with no readable sources still deserves a page.
		debug.Log("progress chart skipped: %v", err)
		return nil
	}
	return os.WriteFile(filepath.Join(htmlDir, "progress.png"), buf.Bytes(), 0o644)
}

type indexData struct {
	All        []*model.FileData
	Ported     []*model.FileData
	InProgress []*model.FileData
	Unported   []*model.FileData
}

func (r *Renderer) renderIndex(htmlDir string, res *aggregate.Result) error {
	groups := res.ByState()
	data := indexData{
		Ported:     groups[model.Ported],
		InProgress: sortBySortKey(groups[model.InProgress]),
		Unported:   sortBySortKey(groups[model.Unported]),
	}
	for _, key := range res.Order {
		data.All = append(data.All, res.Files[key])
	}
	return r.writePage(filepath.Join(htmlDir, "index.html"), "index.tmpl", data)
}

// sortBySortKey orders files most portable first, breaking ties by name
// so output is stable run to run.
func sortBySortKey(files []*model.FileData) []*model.FileData {
	out := append([]*model.FileData(nil), files...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortKey != out[j].SortKey {
			return out[i].SortKey < out[j].SortKey
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

type outOfSyncData struct {
	Head  model.SHARef
	Files []*model.FileData
}

func (r *Renderer) renderOutOfSync(htmlDir string, res *aggregate.Result, head model.Commit) error {
	data := outOfSyncData{Head: model.ResolvedRef(head)}
	for _, key := range res.Order {
		fd := res.Files[key]
		if fd.ForwardPort != nil && fd.ForwardPort.OutOfSync() {
			data.Files = append(data.Files, fd)
		}
	}
	return r.writePage(filepath.Join(htmlDir, "out-of-sync.html"), "out-of-sync.tmpl", data)
}

type filePageData struct {
	Data         *model.FileData
	TargetImport []string
	SourceRef    model.SHARef
	DepGraphSVG  template.HTML
}

func (r *Renderer) renderFilePages(ctx context.Context, htmlDir string, res *aggregate.Result, prog *progress.Reporter) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pageWorkers)

	for _, key := range res.Order {
		fd := res.Files[key]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := r.renderFilePage(htmlDir, fd); err != nil {
				return fmt.Errorf("render page for %s: %w", fd.Key(), err)
			}
			if prog != nil {
				prog.Step(fd.Key())
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Renderer) renderFilePage(htmlDir string, fd *model.FileData) error {
	data := filePageData{
		Data:      fd,
		SourceRef: r.sourceRef(fd),
	}
	if fd.Status.TargetFile != "" {
		target := strings.TrimSuffix(fd.Status.TargetFile, filepath.Ext(fd.Status.TargetFile))
		data.TargetImport = strings.Split(target, "/")
	}
	if fd.InGraph {
		edges, states := aggregate.BlockingSubgraph(fd, r.graph)
		sub := graphviz.Subgraph{Edges: edges, States: states}
		if !sub.Empty() {
			var buf bytes.Buffer
			if err := graphviz.RenderSVG(&buf, sub); err == nil {
				data.DepGraphSVG = template.HTML(buf.String())
			}
		}
	}

	path := filepath.Join(append([]string{htmlDir, "file"}, fd.ImportPath...)...) + ".html"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return r.writePage(path, "file.tmpl", data)
}

// writePage executes a template to a buffer first so a failed execution
// never leaves a truncated page behind.
func (r *Renderer) writePage(path, name string, data any) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
