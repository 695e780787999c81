package cartstore

// ToggleSelectItem flips membership of id. Callers must only pass ids of current lines.
func (s *Store) ToggleSelectItem(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
	} else {
		s.selected[id] = struct{}{}
	}
	s.persistLocked()
}

// SelectAll replaces the selection with ids when checked, otherwise clears it.
// Any cap on how many lines may be chosen is applied by the caller beforehand.
func (s *Store) SelectAll(checked bool, ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[int64]struct{}, len(ids))
	if checked {
		for _, id := range ids {
			s.selected[id] = struct{}{}
		}
	}
	s.persistLocked()
}

// IsSelectAll reports whether there is at least one line and every line is selected.
func (s *Store) IsSelectAll() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return false
	}
	for _, item := range s.items {
		if _, ok := s.selected[item.ID]; !ok {
			return false
		}
	}
	return true
}

// IsSelected reports whether id is in the selection.
func (s *Store) IsSelected(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

// SelectedIDs returns the selection in ascending id order.
func (s *Store) SelectedIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedIDsLocked()
}

// SelectedTotal sums FinalPrice*Quantity over selected lines.
func (s *Store) SelectedTotal() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, item := range s.items {
		if _, ok := s.selected[item.ID]; ok {
			total += item.LineTotal()
		}
	}
	return total
}

// ItemIDs returns the ids of all lines in display order.
func (s *Store) ItemIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.items))
	for _, item := range s.items {
		ids = append(ids, item.ID)
	}
	return ids
}
