package gitrepo

import "github.com/vanderheijden86/portboard/pkg/model"

// Set maps GitHub repository names to local clones. Built once at startup
// and passed to whatever needs commit verification.
type Set struct {
	repos  map[string]*Repo
	exists map[model.CommitRef]bool
}

// NewSet returns a set over the given repos.
func NewSet(repos ...*Repo) *Set {
	s := &Set{
		repos:  make(map[string]*Repo, len(repos)),
		exists: make(map[model.CommitRef]bool),
	}
	for _, r := range repos {
		s.repos[r.Name()] = r
	}
	return s
}

// ByName returns the clone for a GitHub name.
func (s *Set) ByName(name string) (*Repo, bool) {
	r, ok := s.repos[name]
	return r, ok
}

// CommitExists reports whether a source reference resolves. References
// into repositories we have no clone of cannot be checked and are assumed
// valid. Results are memoized for the run.
func (s *Set) CommitExists(ref model.CommitRef) bool {
	if ok, cached := s.exists[ref]; cached {
		return ok
	}
	valid := true
	if r, ok := s.repos[ref.Repo]; ok {
		_, err := r.ResolveCommit(ref.Commit)
		valid = err == nil
	}
	s.exists[ref] = valid
	return valid
}
