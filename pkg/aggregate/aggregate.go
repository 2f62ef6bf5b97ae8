// Package aggregate joins the status table, the reduced import graph and
// the label source into the per-file records the renderer consumes.
//
// The result is computed once per run. Derived fields (state, dependency
// counts, sort key) are filled eagerly here so nothing downstream mutates
// records on first access.
package aggregate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/portboard/pkg/config"
	"github.com/vanderheijden86/portboard/pkg/debug"
	"github.com/vanderheijden86/portboard/pkg/importgraph"
	"github.com/vanderheijden86/portboard/pkg/labels"
	"github.com/vanderheijden86/portboard/pkg/model"
	"github.com/vanderheijden86/portboard/pkg/progress"
	"github.com/vanderheijden86/portboard/pkg/status"
)

// sortKeyScale keeps dependency counts in separate decimal bands of the
// sort key so weighted unported counts always dominate in-progress counts.
const sortKeyScale = 10000

// Options configures aggregation.
type Options struct {
	Config config.Config
	// Labels fetches PR labels; nil skips label fetching entirely.
	Labels *labels.Client
	// Progress receives per-file progress and warnings; nil is silent.
	Progress *progress.Reporter
}

// Result is the aggregated file map plus the status-file iteration order.
type Result struct {
	Files map[string]*model.FileData
	Order []string
}

// ByState groups the files into the three dashboard sections, preserving
// status-file order within each group.
func (r *Result) ByState() map[model.PortState][]*model.FileData {
	groups := make(map[model.PortState][]*model.FileData, model.NumPortStates)
	for _, key := range r.Order {
		fd := r.Files[key]
		groups[fd.State] = append(groups[fd.State], fd)
	}
	return groups
}

// Aggregate builds a FileData per status entry and wires the graph
// relationships in. Missing files on disk are recorded with unknown line
// counts and are not fatal; a rate-limited label fetch is fatal unless
// the environment tolerates it.
func Aggregate(ctx context.Context, table *status.Table, graph *importgraph.Graph, opts Options) (*Result, error) {
	defer debug.LogEnterExit("aggregate.Aggregate")()

	res := &Result{
		Files: make(map[string]*model.FileData, table.Len()),
		Order: table.Keys(),
	}

	for _, key := range table.Keys() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, _ := table.Get(key)
		if opts.Progress != nil {
			opts.Progress.Step(key)
		}

		fd := &model.FileData{
			ImportPath: strings.Split(key, "."),
			Status:     entry,
			State:      entry.State(),
		}
		fd.Lines = countLines(filepath.Join(opts.Config.Repos.SourceDir, opts.Config.SourcePath(fd.ImportPath)))

		if fd.State != model.Ported && entry.TargetPR != 0 && opts.Labels != nil {
			lbls, err := opts.Labels.Labels(ctx, entry.TargetPR)
			switch {
			case err == nil:
				fd.Labels = lbls
			case errors.Is(err, labels.ErrRateLimited) && opts.Config.TolerateRateLimit:
				warnf(opts.Progress, "unable to fetch labels for %s; set GITHUB_TOKEN to increase the rate limit", key)
			default:
				return nil, fmt.Errorf("labels for %s: %w", key, err)
			}
		}
		res.Files[key] = fd
	}

	// Second pass: graph wiring. Only tracked files present as nodes get
	// dependency data; everything else keeps nil lists and sorts last.
	for _, key := range res.Order {
		fd := res.Files[key]
		if !graph.Has(key) {
			fd.SortKey = math.MaxInt
			continue
		}
		fd.InGraph = true
		fd.Dependents = tracked(graph.Descendants(key), res.Files)
		fd.Dependencies = tracked(graph.Ancestors(key), res.Files)
		graph.AttachData(key, fd)
	}

	// Third pass: dependency counts need every file's state, so they run
	// after all records exist.
	for _, key := range res.Order {
		fd := res.Files[key]
		if !fd.InGraph {
			continue
		}
		counts := &model.DepCounts{}
		for _, dep := range fd.Dependencies {
			switch dep.State {
			case model.Unported:
				counts.Unported++
			case model.InProgress:
				counts.InProgress++
			case model.Ported:
				counts.Ported++
			}
		}
		fd.DepCounts = counts
		fd.SortKey = SortKey(counts, opts.Config.Scoring)
	}

	return res, nil
}

// SortKey ranks a file by how close to portable it is: fewer unported and
// in-progress dependencies sorts earlier.
func SortKey(counts *model.DepCounts, weights config.Scoring) int {
	if counts == nil {
		return math.MaxInt
	}
	return counts.Unported*sortKeyScale*weights.UnportedWeight +
		counts.InProgress*sortKeyScale*weights.InProgressWeight
}

func tracked(keys []string, files map[string]*model.FileData) []*model.FileData {
	var out []*model.FileData
	for _, k := range keys {
		if fd, ok := files[k]; ok {
			out = append(out, fd)
		}
	}
	return out
}

func countLines(path string) *int {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
	}
	if sc.Err() != nil {
		return nil
	}
	return &n
}

func warnf(p *progress.Reporter, format string, args ...any) {
	if p != nil {
		p.Warnf(format, args...)
	}
}

// BlockingSubgraph restricts the import graph to a file and its not-yet
// ported dependencies, returning the edge list and per-node states for
// the "what is blocking this file" visualization.
func BlockingSubgraph(fd *model.FileData, graph *importgraph.Graph) (edges [][2]string, states map[string]model.PortState) {
	keys := map[string]bool{fd.Key(): true}
	for _, dep := range fd.Dependencies {
		if dep.State != model.Ported {
			keys[dep.Key()] = true
		}
	}
	states = make(map[string]model.PortState, len(keys))
	for k := range keys {
		if data := graph.Data(k); data != nil {
			states[k] = data.State
		}
	}
	return graph.Subgraph(keys), states
}
