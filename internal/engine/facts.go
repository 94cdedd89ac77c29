package engine

// factSet is an insertion-ordered set of fact ids.
type factSet struct {
	index map[string]struct{}
	order []string
}

func newFactSet(initial []string) *factSet {
	fs := &factSet{
		index: make(map[string]struct{}, len(initial)),
		order: make([]string, 0, len(initial)),
	}
	for _, id := range initial {
		fs.add(id)
	}
	return fs
}

func (fs *factSet) has(id string) bool {
	_, ok := fs.index[id]
	return ok
}

// add inserts id and reports whether it was new.
func (fs *factSet) add(id string) bool {
	if fs.has(id) {
		return false
	}
	fs.index[id] = struct{}{}
	fs.order = append(fs.order, id)
	return true
}

func (fs *factSet) list() []string {
	return append([]string{}, fs.order...)
}
