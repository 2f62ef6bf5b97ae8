package site

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/portboard/pkg/aggregate"
	"github.com/vanderheijden86/portboard/pkg/config"
	"github.com/vanderheijden86/portboard/pkg/gitrepo"
	"github.com/vanderheijden86/portboard/pkg/importgraph"
	"github.com/vanderheijden86/portboard/pkg/model"
)

func intp(n int) *int { return &n }

func testResult() (*aggregate.Result, *importgraph.Graph) {
	g := importgraph.New()
	g.AddEdge("data.basic", "data.gcd")
	g.AddEdge("logic.basic", "data.gcd")

	basic := &model.FileData{
		ImportPath: []string{"data", "basic"},
		Status:     model.StatusEntry{Ported: true, TargetPR: 504, TargetFile: "Mathlib/Data/Basic.lean"},
		State:      model.Ported,
		Lines:      intp(120),
		InGraph:    true,
		DepCounts:  &model.DepCounts{},
	}
	gcd := &model.FileData{
		ImportPath: []string{"data", "gcd"},
		Status: model.StatusEntry{
			TargetPR:   971,
			TargetFile: "Mathlib/Data/Gcd.lean",
			Source:     &model.CommitRef{Repo: "leanprover-community/mathlib", Commit: "aba57d4d3dae35460225919dcd82fe91355162f9"},
		},
		State:     model.InProgress,
		Lines:     intp(80),
		InGraph:   true,
		DepCounts: &model.DepCounts{Unported: 1, Ported: 1},
		Labels: []model.Label{
			{Name: "awaiting-review", Color: "1d76db", TextColor: "white"},
		},
		ForwardPort: &model.ForwardPortInfo{
			Base:      model.Commit{RepoName: "leanprover-community/mathlib", SHA: strings.Repeat("a", 40), Summary: "base"},
			DiffLines: []string{"@@ -1 +1 @@", "-theorem foo", "+theorem bar"},
			AllUnportedCommits: []model.CommitDiff{
				{Commit: model.Commit{RepoName: "leanprover-community/mathlib", SHA: strings.Repeat("b", 40), Summary: "fix"}, Diff: "+x", HasDiff: true},
			},
		},
		History: []model.HistoryEntry{
			{Commit: strings.Repeat("c", 40), Source: model.CommitRef{Repo: "leanprover-community/mathlib", Commit: strings.Repeat("a", 40)}},
		},
	}
	logic := &model.FileData{
		ImportPath: []string{"logic", "basic"},
		State:      model.Unported,
		Lines:      intp(40),
		InGraph:    true,
		DepCounts:  &model.DepCounts{},
	}
	basic.Dependents = []*model.FileData{gcd}
	gcd.Dependencies = []*model.FileData{basic, logic}
	logic.Dependents = []*model.FileData{gcd}
	g.AttachData("data.basic", basic)
	g.AttachData("data.gcd", gcd)
	g.AttachData("logic.basic", logic)

	res := &aggregate.Result{
		Files: map[string]*model.FileData{"data.basic": basic, "data.gcd": gcd, "logic.basic": logic},
		Order: []string{"data.basic", "data.gcd", "logic.basic"},
	}
	return res, g
}

func renderSite(t *testing.T) (string, *aggregate.Result) {
	t.Helper()
	cfg := config.Default()
	cfg.BuildDir = t.TempDir()
	res, g := testResult()

	r, err := New(cfg, gitrepo.NewSet(), g)
	if err != nil {
		t.Fatal(err)
	}
	head := model.Commit{RepoName: "leanprover-community/mathlib", SHA: strings.Repeat("d", 40), Summary: "head"}
	if err := r.Render(context.Background(), res, head, nil); err != nil {
		t.Fatal(err)
	}
	return cfg.HTMLDir(), res
}

func readPage(t *testing.T, dir string, parts ...string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(append([]string{dir}, parts...)...))
	if err != nil {
		t.Fatal(err)
	}
	return string(raw)
}

func TestRenderWritesSiteTree(t *testing.T) {
	dir, _ := renderSite(t)

	for _, rel := range []string{"index.html", "out-of-sync.html", "style.css", "progress.png",
		filepath.Join("file", "data", "basic.html"), filepath.Join("file", "data", "gcd.html")} {
		if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
			t.Errorf("missing output %s: %v", rel, err)
		}
	}
}

func TestRenderIndex(t *testing.T) {
	dir, _ := renderSite(t)
	page := readPage(t, dir, "index.html")

	if !strings.Contains(page, "data.basic") || !strings.Contains(page, "data.gcd") {
		t.Error("index must list both files")
	}
	if !strings.Contains(page, `class="state-ported"`) || !strings.Contains(page, `class="state-in-progress"`) {
		t.Error("state classes missing")
	}
	if !strings.Contains(page, "/pull/971") {
		t.Error("PR link missing")
	}
	if !strings.Contains(page, "awaiting-review") {
		t.Error("label missing")
	}
}

func TestRenderOutOfSync(t *testing.T) {
	dir, _ := renderSite(t)
	page := readPage(t, dir, "out-of-sync.html")

	if !strings.Contains(page, "data.gcd") {
		t.Error("out-of-sync file missing")
	}
	if strings.Contains(page, "data.basic.html") {
		t.Error("in-sync file must not be listed")
	}
	if !strings.Contains(page, "+1") || !strings.Contains(page, "1") {
		t.Error("diff stat missing")
	}
	// The comparison head is linked.
	if !strings.Contains(page, "dddddddd") {
		t.Error("head link missing")
	}
}

func TestRenderFilePage(t *testing.T) {
	dir, _ := renderSite(t)
	page := readPage(t, dir, "file", "data", "gcd.html")

	if !strings.Contains(page, "IN_PROGRESS") {
		t.Error("state badge missing")
	}
	if !strings.Contains(page, "Mathlib.Data.Gcd") {
		t.Error("target import missing")
	}
	if !strings.Contains(page, "aba57d4d") {
		t.Error("source commit link missing")
	}
	if !strings.Contains(page, "Synchronization history") {
		t.Error("history section missing")
	}
	// html/template escapes + in text context, so the diff's added line
	// lands in the page as &#43;theorem bar.
	if !strings.Contains(page, "Out of sync") || !strings.Contains(page, "&#43;theorem bar") {
		t.Error("forward-port diff missing")
	}
	if !strings.Contains(page, "<svg") {
		t.Error("dependency subgraph missing")
	}
	if !strings.Contains(page, "data.basic") {
		t.Error("dependency list missing")
	}
}

func TestRenderFilePageOffGraph(t *testing.T) {
	cfg := config.Default()
	cfg.BuildDir = t.TempDir()

	fd := &model.FileData{ImportPath: []string{"orphan"}, State: model.Unported}
	res := &aggregate.Result{Files: map[string]*model.FileData{"orphan": fd}, Order: []string{"orphan"}}

	r, err := New(cfg, gitrepo.NewSet(), importgraph.New())
	if err != nil {
		t.Fatal(err)
	}
	head := model.Commit{RepoName: "a/b", SHA: strings.Repeat("d", 40)}
	if err := r.Render(context.Background(), res, head, nil); err != nil {
		t.Fatal(err)
	}

	page := readPage(t, cfg.HTMLDir(), "file", "orphan.html")
	if !strings.Contains(page, "does not appear in the import graph") {
		t.Error("off-graph notice missing")
	}
	if !strings.Contains(page, "file missing on disk") {
		t.Error("missing-file notice absent")
	}
}

func TestSiteURLPrefix(t *testing.T) {
	cfg := config.Default()
	cfg.BuildDir = t.TempDir()
	cfg.SiteURL = "https://example.org/port"
	res, g := testResult()

	r, err := New(cfg, gitrepo.NewSet(), g)
	if err != nil {
		t.Fatal(err)
	}
	head := model.Commit{RepoName: "a/b", SHA: strings.Repeat("d", 40)}
	if err := r.Render(context.Background(), res, head, nil); err != nil {
		t.Fatal(err)
	}

	page := readPage(t, cfg.HTMLDir(), "index.html")
	if !strings.Contains(page, `href="https://example.org/port/style.css"`) {
		t.Error("site URL not applied to asset links")
	}
	if !strings.Contains(page, `https://example.org/port/file/data/gcd.html`) {
		t.Error("site URL not applied to file links")
	}
}
