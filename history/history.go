// Package history keeps the linear undo/redo log of an editor session.
// Entries are full document snapshots; the log lives in memory only.
package history

import "github.com/dayzy/notes/models"

type Store struct {
	entries []models.Snapshot
	index   int
}

func New() *Store {
	return &Store{index: -1}
}

// Push discards any redo-able entries and appends a copy of snapshot.
func (s *Store) Push(snapshot models.Snapshot) {
	s.entries = s.entries[:s.index+1]
	s.entries = append(s.entries, snapshot.Clone())
	s.index = len(s.entries) - 1
}

// Undo steps back one entry and returns a copy of it. It is a no-op while
// the index is at the first entry.
func (s *Store) Undo() (models.Snapshot, bool) {
	if s.index <= 0 {
		return models.Snapshot{}, false
	}
	s.index--
	return s.entries[s.index].Clone(), true
}

func (s *Store) Redo() (models.Snapshot, bool) {
	if s.index >= len(s.entries)-1 {
		return models.Snapshot{}, false
	}
	s.index++
	return s.entries[s.index].Clone(), true
}

func (s *Store) CanUndo() bool {
	return len(s.entries) > 1 && s.index > 0
}

func (s *Store) CanRedo() bool {
	return len(s.entries) > 0 && s.index < len(s.entries)-1
}

func (s *Store) Current() (models.Snapshot, bool) {
	if s.index < 0 {
		return models.Snapshot{}, false
	}
	return s.entries[s.index].Clone(), true
}

func (s *Store) Len() int {
	return len(s.entries)
}

func (s *Store) Index() int {
	return s.index
}

func (s *Store) Empty() bool {
	return len(s.entries) == 0
}
