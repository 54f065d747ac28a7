package pipeline

import "github.com/lkoehler/docintake-go/internal/models"

// Selection maintains the staged file set (insertion order is display and
// commit order) and the subset of keys currently selected for commit. It
// performs no I/O; all methods are plain bookkeeping over the in-memory
// set. Selection is not safe for concurrent use; the owning Pipeline
// serializes access.
type Selection struct {
	files    []*models.StagedFile
	byKey    map[models.DedupeKey]*models.StagedFile
	selected map[models.DedupeKey]struct{}
	uploaded map[models.DedupeKey]struct{}
	skipped  int
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{
		byKey:    make(map[models.DedupeKey]*models.StagedFile),
		selected: make(map[models.DedupeKey]struct{}),
		uploaded: make(map[models.DedupeKey]struct{}),
	}
}

// Add stages new records and auto-selects them. Records whose dedupe key
// matches an already-staged or already-uploaded file are skipped and
// counted instead; the existing record and its selection state are left
// untouched.
func (s *Selection) Add(files []*models.StagedFile) (added, skipped int) {
	for _, f := range files {
		key := f.Key()
		if _, dup := s.byKey[key]; dup {
			s.skipped++
			skipped++
			continue
		}
		if _, done := s.uploaded[key]; done {
			s.skipped++
			skipped++
			continue
		}
		s.files = append(s.files, f)
		s.byKey[key] = f
		s.selected[key] = struct{}{}
		added++
	}
	return added, skipped
}

// Remove drops a staged file and its selection state, releasing the
// handle. Returns false when the key is not staged.
func (s *Selection) Remove(key models.DedupeKey) bool {
	f, ok := s.byKey[key]
	if !ok {
		return false
	}
	delete(s.byKey, key)
	delete(s.selected, key)
	for i, cur := range s.files {
		if cur == f {
			s.files = append(s.files[:i], s.files[i+1:]...)
			break
		}
	}
	f.Handle = nil
	return true
}

// RemoveSelected drops every currently selected file. Returns how many
// were removed.
func (s *Selection) RemoveSelected() int {
	keys := make([]models.DedupeKey, 0, len(s.selected))
	for key := range s.selected {
		keys = append(keys, key)
	}
	for _, key := range keys {
		s.Remove(key)
	}
	return len(keys)
}

// SelectAll marks every staged file as selected.
func (s *Selection) SelectAll() {
	for key := range s.byKey {
		s.selected[key] = struct{}{}
	}
}

// SelectNone clears the selection without touching the staged set.
func (s *Selection) SelectNone() {
	clear(s.selected)
}

// Invert flips the selection state of every staged file.
func (s *Selection) Invert() {
	for key := range s.byKey {
		if _, sel := s.selected[key]; sel {
			delete(s.selected, key)
		} else {
			s.selected[key] = struct{}{}
		}
	}
}

// Select marks a single staged key as selected. Unknown keys are ignored
// to preserve the subset invariant.
func (s *Selection) Select(key models.DedupeKey) {
	if _, ok := s.byKey[key]; ok {
		s.selected[key] = struct{}{}
	}
}

// Deselect removes a single key from the selection.
func (s *Selection) Deselect(key models.DedupeKey) {
	delete(s.selected, key)
}

// IsSelected reports whether the key is currently selected.
func (s *Selection) IsSelected(key models.DedupeKey) bool {
	_, ok := s.selected[key]
	return ok
}

// Files returns the staged files in insertion order.
func (s *Selection) Files() []*models.StagedFile {
	out := make([]*models.StagedFile, len(s.files))
	copy(out, s.files)
	return out
}

// SelectedFiles returns the selected files in insertion order.
func (s *Selection) SelectedFiles() []*models.StagedFile {
	var out []*models.StagedFile
	for _, f := range s.files {
		if _, sel := s.selected[f.Key()]; sel {
			out = append(out, f)
		}
	}
	return out
}

// Counts returns the staged and selected file counts.
func (s *Selection) Counts() (staged, selected int) {
	return len(s.files), len(s.selected)
}

// TotalBytes returns the byte total of all staged files.
func (s *Selection) TotalBytes() int64 {
	var total int64
	for _, f := range s.files {
		total += f.Size
	}
	return total
}

// SelectedBytes returns the byte total of the selected files.
func (s *Selection) SelectedBytes() int64 {
	var total int64
	for _, f := range s.files {
		if _, sel := s.selected[f.Key()]; sel {
			total += f.Size
		}
	}
	return total
}

// SkippedDuplicates returns how many staging attempts were skipped as
// duplicates since the last Clear.
func (s *Selection) SkippedDuplicates() int {
	return s.skipped
}

// MarkUploaded removes committed files from the staged set and remembers
// their keys so re-staging the same document is treated as a duplicate.
func (s *Selection) MarkUploaded(files []*models.StagedFile) {
	for _, f := range files {
		key := f.Key()
		s.uploaded[key] = struct{}{}
		s.Remove(key)
	}
}

// Clear drops all staged files, selection state, dedupe memory and the
// skipped counter, releasing every handle.
func (s *Selection) Clear() {
	for _, f := range s.files {
		f.Handle = nil
	}
	s.files = nil
	clear(s.byKey)
	clear(s.selected)
	clear(s.uploaded)
	s.skipped = 0
}
