package labels

// Set is the label-context lookup produced by extraction. It keeps
// declaration order and never holds two labels with the same name.
type Set struct {
	byName map[string]*Label
	order  []*Label
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{byName: make(map[string]*Label)}
}

// Add records l unless a label with the same name was already declared.
// It reports whether l was added.
func (s *Set) Add(l *Label) bool {
	if l == nil || l.Name == "" {
		return false
	}
	if _, ok := s.byName[l.Name]; ok {
		return false
	}
	s.byName[l.Name] = l
	s.order = append(s.order, l)
	return true
}

// Get returns the label named name. A nil set holds nothing.
func (s *Set) Get(name string) (*Label, bool) {
	if s == nil {
		return nil, false
	}
	l, ok := s.byName[name]
	return l, ok
}

// All returns labels in declaration order.
func (s *Set) All() []*Label {
	if s == nil {
		return nil
	}
	out := make([]*Label, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of labels.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Ordinal returns the 0-based position of name among the labels that share
// its type, or -1.
func (s *Set) Ordinal(name string) int {
	l, ok := s.Get(name)
	if !ok {
		return -1
	}
	n := 0
	for _, other := range s.order {
		if other.Name == name {
			return n
		}
		if other.Type == l.Type {
			n++
		}
	}
	return -1
}
