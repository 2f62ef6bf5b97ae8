// Package pipeline wires the whole run together: status table, import
// graph, repositories, aggregation, reconciliation, rendering. One
// Pipeline is built per run and passed explicitly to each stage; nothing
// here hides behind process-wide singletons, so lifetimes are visible
// and tests can construct partial pipelines.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vanderheijden86/portboard/pkg/aggregate"
	"github.com/vanderheijden86/portboard/pkg/config"
	"github.com/vanderheijden86/portboard/pkg/debug"
	"github.com/vanderheijden86/portboard/pkg/gitrepo"
	"github.com/vanderheijden86/portboard/pkg/importgraph"
	"github.com/vanderheijden86/portboard/pkg/labels"
	"github.com/vanderheijden86/portboard/pkg/progress"
	"github.com/vanderheijden86/portboard/pkg/reconcile"
	"github.com/vanderheijden86/portboard/pkg/site"
	"github.com/vanderheijden86/portboard/pkg/status"
)

// Options for a run.
type Options struct {
	// SkipLabels disables GitHub label fetching, for offline builds.
	SkipLabels bool
}

// Pipeline holds the per-run state shared by the stages.
type Pipeline struct {
	Cfg    config.Config
	Opts   Options
	Source *gitrepo.Repo
	Target *gitrepo.Repo
	Repos  *gitrepo.Set
	Labels *labels.Client
}

// New opens the repositories and validates their identities. An
// unrecognized remote is fatal here: without repository identity no
// commit link on the dashboard can be trusted.
func New(cfg config.Config, opts Options) (*Pipeline, error) {
	source, err := gitrepo.Open(cfg.Repos.SourceDir)
	if err != nil {
		return nil, err
	}
	target, err := gitrepo.Open(cfg.Repos.TargetDir)
	if err != nil {
		return nil, err
	}
	if source.Name() != cfg.Repos.SourceName {
		return nil, fmt.Errorf("%s is a clone of %s, expected %s",
			cfg.Repos.SourceDir, source.Name(), cfg.Repos.SourceName)
	}
	if target.Name() != cfg.Repos.TargetName {
		return nil, fmt.Errorf("%s is a clone of %s, expected %s",
			cfg.Repos.TargetDir, target.Name(), cfg.Repos.TargetName)
	}

	p := &Pipeline{
		Cfg:    cfg,
		Opts:   opts,
		Source: source,
		Target: target,
		Repos:  gitrepo.NewSet(source, target),
	}
	if !opts.SkipLabels {
		p.Labels = labels.NewClient(cfg.Repos.TargetName, cfg.GitHubToken)
	}
	return p, nil
}

// Run executes one complete build of the dashboard.
func (p *Pipeline) Run(ctx context.Context) error {
	start := time.Now()
	defer func() { debug.LogTiming("pipeline.Run", time.Since(start)) }()

	table, err := status.Load(p.Cfg.StatusFile)
	if err != nil {
		return err
	}
	postfix := table.MaxKeyLen()

	graph, err := importgraph.Build(
		filepath.Join(p.Cfg.Repos.SourceDir, p.Cfg.Repos.SourceRoot),
		importgraph.Options{
			ExcludedPrefixes: p.Cfg.ExcludedPrefixes,
			ExternalPrefix:   p.Cfg.ExternalPrefix,
			Ext:              ".lean",
		})
	if err != nil {
		return err
	}
	if err := graph.TransitiveReduction(); err != nil {
		return err
	}
	debug.Log("import graph: %d nodes, %d edges after reduction", graph.NodeCount(), graph.EdgeCount())

	prog := progress.New("getting status information", table.Len(), postfix)
	res, err := aggregate.Aggregate(ctx, table, graph, aggregate.Options{
		Config:   p.Cfg,
		Labels:   p.Labels,
		Progress: prog,
	})
	prog.Close()
	if err != nil {
		return err
	}

	rec := reconcile.New(p.Cfg, p.Source, p.Target)
	prog = progress.New("collecting sync history", table.Len(), postfix)
	err = rec.CollectHistory(ctx, res, prog)
	prog.Close()
	if err != nil {
		return err
	}
	prog = progress.New("generating source diffs", table.Len(), postfix)
	err = rec.Reconcile(ctx, res, prog)
	prog.Close()
	if err != nil {
		return err
	}

	head, err := p.Source.Head()
	if err != nil {
		return err
	}
	renderer, err := site.New(p.Cfg, p.Repos, graph)
	if err != nil {
		return err
	}
	prog = progress.New("generating file pages", table.Len(), postfix)
	err = renderer.Render(ctx, res, head, prog)
	prog.Close()
	return err
}
