package core

// StatusSet is an ordered set of project status ids. Insertion order is kept and
// duplicates are ignored.
type StatusSet struct {
	ids []string
}

func NewStatusSet(ids ...string) StatusSet {
	var s StatusSet
	for _, id := range ids {
		s = s.With(id)
	}
	return s
}

// With returns a copy of the set with id appended unless already present.
func (s StatusSet) With(id string) StatusSet {
	if id == "" || s.Contains(id) {
		return s
	}
	ids := make([]string, len(s.ids), len(s.ids)+1)
	copy(ids, s.ids)
	return StatusSet{ids: append(ids, id)}
}

// Without returns a copy of the set with id removed.
func (s StatusSet) Without(id string) StatusSet {
	ids := make([]string, 0, len(s.ids))
	for _, existing := range s.ids {
		if existing != id {
			ids = append(ids, existing)
		}
	}
	return StatusSet{ids: ids}
}

func (s StatusSet) Contains(id string) bool {
	for _, existing := range s.ids {
		if existing == id {
			return true
		}
	}
	return false
}

func (s StatusSet) Len() int {
	return len(s.ids)
}

// IDs returns the ids in order. The slice is a copy.
func (s StatusSet) IDs() []string {
	return append([]string(nil), s.ids...)
}

func (s StatusSet) Equal(o StatusSet) bool {
	if len(s.ids) != len(o.ids) {
		return false
	}
	for i := range s.ids {
		if s.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

// Allows reports whether a project of this type may take the status. An empty set
// allows every status.
func (pt ProjectType) Allows(statusID string) bool {
	return pt.AllowedStatuses.Len() == 0 || pt.AllowedStatuses.Contains(statusID)
}
