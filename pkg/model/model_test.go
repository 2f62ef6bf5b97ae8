package model

import (
	"testing"
)

func TestStatusEntryState(t *testing.T) {
	src := &CommitRef{Repo: "leanprover-community/mathlib", Commit: "abc123"}

	cases := []struct {
		name  string
		entry StatusEntry
		want  PortState
	}{
		{"empty", StatusEntry{}, Unported},
		{"ported", StatusEntry{Ported: true}, Ported},
		{"ported wins over pr", StatusEntry{Ported: true, TargetPR: 123, Source: src}, Ported},
		{"pr with source", StatusEntry{TargetPR: 123, Source: src}, InProgress},
		{"pr without source", StatusEntry{TargetPR: 123}, Unported},
		{"source without pr", StatusEntry{Source: src}, Unported},
	}
	for _, tc := range cases {
		if got := tc.entry.State(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPortStateString(t *testing.T) {
	if Unported.String() != "UNPORTED" {
		t.Errorf("Unported: got %q", Unported.String())
	}
	if InProgress.String() != "IN_PROGRESS" {
		t.Errorf("InProgress: got %q", InProgress.String())
	}
	if Ported.String() != "PORTED" {
		t.Errorf("Ported: got %q", Ported.String())
	}
}

func TestShortSHA(t *testing.T) {
	r := CommitRef{Commit: "448144f7ae193a8990cb7473c9e9a01990f64ac7"}
	if r.ShortSHA() != "448144f7" {
		t.Errorf("expected 448144f7, got %s", r.ShortSHA())
	}
	short := CommitRef{Commit: "abc"}
	if short.ShortSHA() != "abc" {
		t.Errorf("short hashes pass through, got %s", short.ShortSHA())
	}
}

func TestForwardPortInfoSync(t *testing.T) {
	f := &ForwardPortInfo{}
	if f.OutOfSync() {
		t.Error("no diff lines should mean in sync")
	}

	f = &ForwardPortInfo{DiffLines: []string{
		"@@ -1,3 +1,4 @@",
		"-old line",
		"+new line",
		"+another line",
		" context",
	}}
	if !f.OutOfSync() {
		t.Error("expected out of sync")
	}
	added, removed := f.DiffStat()
	if added != 2 || removed != 1 {
		t.Errorf("expected +2/-1, got +%d/-%d", added, removed)
	}
}

func TestForwardPortInfoCommitFilters(t *testing.T) {
	f := &ForwardPortInfo{
		AllUnportedCommits: []CommitDiff{
			{Commit: Commit{SHA: "a"}, Diff: "x", HasDiff: true},
			{Commit: Commit{SHA: "b"}},
			{Commit: Commit{SHA: "c"}, Diff: "y", HasDiff: true},
		},
		AllPortedCommits: []CommitDiff{
			{Commit: Commit{SHA: "d"}},
		},
	}
	up := f.UnportedCommits()
	if len(up) != 2 || up[0].Commit.SHA != "a" || up[1].Commit.SHA != "c" {
		t.Errorf("unexpected unported commits: %v", up)
	}
	if len(f.PortedCommits()) != 0 {
		t.Error("commit without a diff should be filtered out")
	}
}

func TestFileDataKey(t *testing.T) {
	fd := &FileData{ImportPath: []string{"data", "set", "basic"}}
	if fd.Key() != "data.set.basic" {
		t.Errorf("expected data.set.basic, got %s", fd.Key())
	}
}

func TestSHARefConstructors(t *testing.T) {
	c := Commit{RepoName: "leanprover-community/mathlib", SHA: "abc"}
	r := ResolvedRef(c)
	if r.Kind != SHARefResolved || !r.Valid || r.Commit.SHA != "abc" {
		t.Errorf("unexpected resolved ref: %+v", r)
	}

	s := SourceRef(CommitRef{Repo: "x/y", Commit: "def"}, false)
	if s.Kind != SHARefSource || s.Valid {
		t.Errorf("unexpected source ref: %+v", s)
	}
}
