// Package importgraph builds the directed import graph of a source tree
// and reduces it to its transitive reduction.
//
// Nodes are dot-joined paths relative to the scanned root ("data.set.basic").
// An edge A -> B means B imports A, so reachability forward from a node
// yields its dependents and backward reachability yields its dependencies.
package importgraph

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/portboard/pkg/model"
)

var importRe = regexp.MustCompile(`^import ([^ ]*)`)

// Options controls the scan.
type Options struct {
	// ExcludedPrefixes are top-level path segments whose subtrees are
	// skipped entirely; imports of names under them are ignored too.
	ExcludedPrefixes []string
	// ExternalPrefix marks imports that resolve to nothing in the tree.
	ExternalPrefix string
	// Ext is the source file extension, including the dot.
	Ext string
}

// DefaultOptions matches the library layout this tool was built for:
// the legacy tactic and meta namespaces are not tracked for porting.
func DefaultOptions() Options {
	return Options{
		ExcludedPrefixes: []string{"tactic", "meta"},
		ExternalPrefix:   "lean_core.",
		Ext:              ".lean",
	}
}

// CycleError reports that the import relation is not acyclic. Transitive
// reduction is undefined on cyclic graphs, so this is fatal: reducing
// anyway would silently mis-state reachability.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("import graph contains a cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is a directed import graph over string node keys, backed by a
// gonum graph with id translation maps on each side.
type Graph struct {
	g         *simple.DirectedGraph
	keyToNode map[string]int64
	nodeToKey map[int64]string
	data      map[string]*model.FileData
	reduced   bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		g:         simple.NewDirectedGraph(),
		keyToNode: make(map[string]int64),
		nodeToKey: make(map[int64]string),
		data:      make(map[string]*model.FileData),
	}
}

// Build scans every source file under root and constructs the import graph.
// Trees and imports under excluded prefixes are skipped; imports that match
// no in-tree node are redirected to "<name>.default" when that node exists,
// and otherwise namespaced with the external prefix.
func Build(root string, opts Options) (*Graph, error) {
	g := New()

	var files []string
	excluded := func(rel string) bool {
		top, _, _ := strings.Cut(rel, string(filepath.Separator))
		for _, p := range opts.ExcludedPrefixes {
			if top == p {
				return true
			}
		}
		return false
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel != "." && excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != opts.Ext || excluded(rel) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(files)

	// First pass: every file becomes a node so import resolution can tell
	// in-tree targets from external ones.
	for _, path := range files {
		g.ensureNode(keyOf(root, path, opts.Ext))
	}

	// Second pass: edges.
	for _, path := range files {
		key := keyOf(root, path, opts.Ext)
		if err := g.addImports(path, key, opts); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func keyOf(root, path, ext string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = strings.TrimSuffix(rel, ext)
	return strings.Join(strings.Split(rel, string(filepath.Separator)), ".")
}

func (g *Graph) addImports(path, key string, opts Options) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := importRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		imported := m[1]
		if importExcluded(imported, opts.ExcludedPrefixes) {
			continue
		}
		if !g.Has(imported) {
			if g.Has(imported + ".default") {
				// Directory-style import: resolve to the default file.
				imported += ".default"
			} else {
				imported = opts.ExternalPrefix + imported
			}
		}
		if imported == key {
			return &CycleError{Cycle: []string{key, key}}
		}
		g.addEdge(imported, key)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func importExcluded(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p+".") {
			return true
		}
	}
	return false
}

func (g *Graph) ensureNode(key string) int64 {
	if id, ok := g.keyToNode[key]; ok {
		return id
	}
	n := g.g.NewNode()
	g.g.AddNode(n)
	g.keyToNode[key] = n.ID()
	g.nodeToKey[n.ID()] = key
	return n.ID()
}

func (g *Graph) addEdge(from, to string) {
	u := g.ensureNode(from)
	v := g.ensureNode(to)
	if u == v {
		return
	}
	g.g.SetEdge(g.g.NewEdge(g.g.Node(u), g.g.Node(v)))
}

// AddNode inserts a bare node. Exposed for tests and for graphs assembled
// without a filesystem scan.
func (g *Graph) AddNode(key string) {
	g.ensureNode(key)
}

// AddEdge inserts a dependency -> dependent edge, creating nodes as needed.
func (g *Graph) AddEdge(from, to string) {
	g.addEdge(from, to)
}

// Has reports whether key is a node.
func (g *Graph) Has(key string) bool {
	_, ok := g.keyToNode[key]
	return ok
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.keyToNode)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return g.g.Edges().Len()
}

// Reduced reports whether TransitiveReduction has run.
func (g *Graph) Reduced() bool {
	return g.reduced
}

// Nodes returns all node keys, sorted.
func (g *Graph) Nodes() []string {
	keys := make([]string, 0, len(g.keyToNode))
	for k := range g.keyToNode {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Edges returns all edges as [from, to] pairs, sorted.
func (g *Graph) Edges() [][2]string {
	var out [][2]string
	it := g.g.Edges()
	for it.Next() {
		e := it.Edge()
		out = append(out, [2]string{g.nodeToKey[e.From().ID()], g.nodeToKey[e.To().ID()]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// TransitiveReduction verifies the graph is acyclic and removes every edge
// implied by a longer path, leaving the unique minimal graph with the same
// reachability relation.
func (g *Graph) TransitiveReduction() error {
	order, err := topo.Sort(g.g)
	if err != nil {
		var unorderable topo.Unorderable
		if ok := asUnorderable(err, &unorderable); ok && len(unorderable) > 0 {
			cycle := make([]string, 0, len(unorderable[0])+1)
			for _, n := range unorderable[0] {
				cycle = append(cycle, g.nodeToKey[n.ID()])
			}
			sort.Strings(cycle)
			cycle = append(cycle, cycle[0])
			return &CycleError{Cycle: cycle}
		}
		return fmt.Errorf("topological sort: %w", err)
	}

	// Position of each node in topological order; all edges point from
	// lower to higher positions.
	pos := make(map[int64]int, len(order))
	for i, n := range order {
		pos[n.ID()] = i
	}

	// Walk sinks-first, keeping a reachability bitset per node. An edge
	// u->v is redundant exactly when v is already reachable through a
	// successor of u earlier in topological order.
	words := (len(order) + 63) / 64
	reach := make([][]uint64, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		u := order[i]
		succ := g.successorsByPos(u.ID(), pos)

		r := make([]uint64, words)
		r[i/64] |= 1 << (i % 64)
		for _, v := range succ {
			vp := pos[v]
			if r[vp/64]&(1<<(vp%64)) != 0 {
				g.g.RemoveEdge(u.ID(), v)
				continue
			}
			for w := range r {
				r[w] |= reach[vp][w]
			}
			r[vp/64] |= 1 << (vp % 64)
		}
		reach[i] = r
	}
	g.reduced = true
	return nil
}

// successorsByPos returns u's direct successors ordered by topological
// position.
func (g *Graph) successorsByPos(u int64, pos map[int64]int) []int64 {
	var succ []int64
	it := g.g.From(u)
	for it.Next() {
		succ = append(succ, it.Node().ID())
	}
	sort.Slice(succ, func(i, j int) bool { return pos[succ[i]] < pos[succ[j]] })
	return succ
}

func asUnorderable(err error, target *topo.Unorderable) bool {
	if u, ok := err.(topo.Unorderable); ok {
		*target = u
		return true
	}
	return false
}

// Descendants returns every node reachable forward from key: the files
// that (transitively) import it.
func (g *Graph) Descendants(key string) []string {
	return g.reachable(key, g.g.From)
}

// Ancestors returns every node reachable backward from key: the files it
// (transitively) imports.
func (g *Graph) Ancestors(key string) []string {
	return g.reachable(key, g.g.To)
}

func (g *Graph) reachable(key string, neighbors func(int64) graph.Nodes) []string {
	start, ok := g.keyToNode[key]
	if !ok {
		return nil
	}
	seen := map[int64]bool{start: true}
	queue := []int64{start}
	var out []string
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		it := neighbors(u)
		for it.Next() {
			v := it.Node().ID()
			if seen[v] {
				continue
			}
			seen[v] = true
			queue = append(queue, v)
			out = append(out, g.nodeToKey[v])
		}
	}
	sort.Strings(out)
	return out
}

// Subgraph returns the edges of the graph restricted to the given keys.
func (g *Graph) Subgraph(keys map[string]bool) [][2]string {
	var out [][2]string
	it := g.g.Edges()
	for it.Next() {
		e := it.Edge()
		from, to := g.nodeToKey[e.From().ID()], g.nodeToKey[e.To().ID()]
		if keys[from] && keys[to] {
			out = append(out, [2]string{from, to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// AttachData associates a tracked file with its node. Attachment is sparse:
// most nodes (external imports, untracked files) carry no data.
func (g *Graph) AttachData(key string, data *model.FileData) {
	if g.Has(key) {
		g.data[key] = data
	}
}

// Data returns the tracked file attached to a node, or nil.
func (g *Graph) Data(key string) *model.FileData {
	return g.data[key]
}
