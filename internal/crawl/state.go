// Package crawl discovers and downloads every file transitively linked from
// a project's entry page.
package crawl

import (
	"slices"
	"sync"

	"github.com/dgallion1/projpack/internal/archive"
)

// State is the crawl's shared bookkeeping. Every recursive branch holds the
// same *State.
type State struct {
	mu      sync.Mutex
	visited map[string]bool
	files   []archive.File
}

// NewState returns a state with names already marked visited.
func NewState(preVisited ...string) *State {
	s := &State{visited: make(map[string]bool, len(preVisited))}
	for _, name := range preVisited {
		s.visited[name] = true
	}
	return s
}

// Visit marks name visited and reports whether this call was the first.
func (s *State) Visit(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[name] {
		return false
	}
	s.visited[name] = true
	return true
}

// Add appends a collected file.
func (s *State) Add(f archive.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, f)
}

// Files returns the collected files in the order they were added.
func (s *State) Files() []archive.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.files)
}

// Len returns the number of collected files.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
