// Package model defines the core data types shared by every stage of the
// portboard pipeline: status records loaded from the port-status file,
// per-file aggregates, and the commit references rendered on the dashboard.
package model

import (
	"strings"
)

// PortState is the derived migration state of a single tracked file.
// Declaration order matters: dependency counts are reported in this order.
type PortState int

const (
	Unported PortState = iota
	InProgress
	Ported
)

// NumPortStates is the number of PortState values, for count tuples.
const NumPortStates = 3

func (s PortState) String() string {
	switch s {
	case Unported:
		return "UNPORTED"
	case InProgress:
		return "IN_PROGRESS"
	case Ported:
		return "PORTED"
	default:
		return "UNKNOWN"
	}
}

// CommitRef identifies a commit in a named GitHub repository. It may refer
// to a commit that does not exist locally; see gitrepo for resolution.
type CommitRef struct {
	Repo   string `yaml:"repo" json:"repo"`
	Commit string `yaml:"commit" json:"commit"`
}

// ShortSHA returns the abbreviated hash used in rendered links.
func (r CommitRef) ShortSHA() string {
	if len(r.Commit) > 8 {
		return r.Commit[:8]
	}
	return r.Commit
}

// StatusEntry is one record from the port-status file.
type StatusEntry struct {
	Ported     bool       `yaml:"ported"`
	TargetPR   int        `yaml:"mathlib4_pr"`
	TargetFile string     `yaml:"mathlib4_file"`
	Source     *CommitRef `yaml:"source"`
}

// State classifies the entry. It is a pure function of the record:
// a PR number alone is meaningless without a recorded source commit,
// as it may be an ad-hoc port that never tracked upstream.
func (e StatusEntry) State() PortState {
	switch {
	case e.Ported:
		return Ported
	case e.TargetPR != 0 && e.Source != nil:
		return InProgress
	default:
		return Unported
	}
}

// Label is a GitHub issue label attached to an in-flight pull request.
// TextColor is derived from Color so templates never compute contrast.
type Label struct {
	Name      string `json:"name"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
}

// Commit is a resolved commit in a local repository clone. RepoName is the
// GitHub "owner/name" of the repository it was resolved in.
type Commit struct {
	RepoName string
	SHA      string
	Summary  string
}

// ShortSHA returns the abbreviated hash used in rendered links.
func (c Commit) ShortSHA() string {
	if len(c.SHA) > 8 {
		return c.SHA[:8]
	}
	return c.SHA
}

// Ref converts the resolved commit back to a plain reference.
func (c Commit) Ref() CommitRef {
	return CommitRef{Repo: c.RepoName, Commit: c.SHA}
}

// SHARefKind discriminates the two things a commit link can be rendered
// from: a commit resolved in a local clone, or a raw source record whose
// existence may not be verifiable.
type SHARefKind int

const (
	SHARefResolved SHARefKind = iota
	SHARefSource
)

// SHARef is the discriminated union consumed by the link-rendering filter.
type SHARef struct {
	Kind   SHARefKind
	Commit Commit    // set when Kind == SHARefResolved
	Source CommitRef // set when Kind == SHARefSource
	Valid  bool      // false marks the link as pointing at a missing commit
}

// ResolvedRef wraps a resolved commit for rendering. Resolved commits are
// always valid by construction.
func ResolvedRef(c Commit) SHARef {
	return SHARef{Kind: SHARefResolved, Commit: c, Valid: true}
}

// SourceRef wraps a raw source record for rendering.
func SourceRef(r CommitRef, valid bool) SHARef {
	return SHARef{Kind: SHARefSource, Source: r, Valid: valid}
}

// CommitDiff pairs a commit from a history walk with the single-file diff
// it introduced. Intermediate commits that did not touch the file, and
// suppressed bookkeeping commits, carry no diff.
type CommitDiff struct {
	Commit  Commit
	Diff    string
	HasDiff bool
}

// HistoryEntry is one historical synchronization point recorded in the
// successor repository: the successor commit and the original-repo commit
// the file claimed to match at that time.
type HistoryEntry struct {
	Commit string    `json:"commit"`
	Source CommitRef `json:"source"`
}

// ForwardPortInfo captures the commit ranges and diff between the last
// known synchronized state and the current head on the original side.
type ForwardPortInfo struct {
	Base               Commit
	AllUnportedCommits []CommitDiff
	AllPortedCommits   []CommitDiff
	DiffLines          []string
}

// UnportedCommits returns the commits after the sync point that touched
// the file.
func (f *ForwardPortInfo) UnportedCommits() []CommitDiff {
	return withDiffs(f.AllUnportedCommits)
}

// PortedCommits returns the commits before the sync point that touched
// the file.
func (f *ForwardPortInfo) PortedCommits() []CommitDiff {
	return withDiffs(f.AllPortedCommits)
}

func withDiffs(all []CommitDiff) []CommitDiff {
	var out []CommitDiff
	for _, cd := range all {
		if cd.HasDiff {
			out = append(out, cd)
		}
	}
	return out
}

// Diff returns the boilerplate-stripped diff against the sync point.
// Empty means the file is in sync.
func (f *ForwardPortInfo) Diff() string {
	return strings.Join(f.DiffLines, "\n")
}

// OutOfSync reports whether the file has textually drifted from its
// sync commit.
func (f *ForwardPortInfo) OutOfSync() bool {
	return len(f.DiffLines) > 0
}

// DiffStat returns the added and removed line counts of Diff.
func (f *ForwardPortInfo) DiffStat() (added, removed int) {
	for _, l := range f.DiffLines {
		switch {
		case strings.HasPrefix(l, "+"):
			added++
		case strings.HasPrefix(l, "-"):
			removed++
		}
	}
	return added, removed
}

// DepCounts counts a file's tracked dependencies by port state.
type DepCounts struct {
	Unported   int
	InProgress int
	Ported     int
}

// Total returns the number of counted dependencies.
func (d DepCounts) Total() int {
	return d.Unported + d.InProgress + d.Ported
}

// FileData is the per-file aggregate joined from the status source, the
// filesystem, the label source and the import graph. Dependents and
// Dependencies are derived, non-owning back-references recomputed every
// run; they are populated only when InGraph is true.
type FileData struct {
	ImportPath []string
	Status     StatusEntry
	Lines      *int // nil when the file is missing on disk
	Labels     []Label

	InGraph      bool
	Dependents   []*FileData
	Dependencies []*FileData

	ForwardPort *ForwardPortInfo
	History     []HistoryEntry

	// Computed eagerly during aggregation; Status is immutable after load
	// so these never change within a run.
	State     PortState
	DepCounts *DepCounts // nil when the file is absent from the graph
	SortKey   int
}

// Key returns the dot-joined import path, the node key in the import graph.
func (f *FileData) Key() string {
	return strings.Join(f.ImportPath, ".")
}
