package program

import "fmt"

// Fragment is a disconnected sub-program waiting to be merged into a graph.
// Child slots of fragment blocks refer to other blocks of the same fragment.
type Fragment struct {
	Blocks    []*Block
	Variables []Variable
}

// Len returns the number of blocks in the fragment.
func (f *Fragment) Len() int { return len(f.Blocks) }

// IDs returns every block id of the fragment in declaration order.
func (f *Fragment) IDs() []string {
	ids := make([]string, 0, len(f.Blocks))
	for _, b := range f.Blocks {
		ids = append(ids, b.ID)
	}
	return ids
}

// TopIDs returns the ids of fragment blocks no other fragment block points at.
func (f *Fragment) TopIDs() []string {
	referenced := make(map[string]bool)
	for _, b := range f.Blocks {
		for _, child := range b.Children() {
			referenced[child] = true
		}
	}
	var tops []string
	for _, b := range f.Blocks {
		if !referenced[b.ID] {
			tops = append(tops, b.ID)
		}
	}
	return tops
}

// Reassign gives every block a new id from next and rewrites child slots to
// match. It returns the old-to-new id mapping.
func (f *Fragment) Reassign(next func() string) map[string]string {
	mapping := make(map[string]string, len(f.Blocks))
	for _, b := range f.Blocks {
		mapping[b.ID] = next()
	}
	for _, b := range f.Blocks {
		b.ID = mapping[b.ID]
		for name, s := range b.Slots {
			if s.IsChild() {
				if renamed, ok := mapping[s.Child]; ok {
					b.Slots[name] = Slot{Child: renamed}
				}
			}
		}
	}
	return mapping
}

// Validate checks the fragment is a well formed forest on its own.
func (f *Fragment) Validate() error {
	byID := make(map[string]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		if b.ID == "" {
			return fmt.Errorf("fragment block of type %q has an empty id", b.Type)
		}
		if _, dup := byID[b.ID]; dup {
			return fmt.Errorf("fragment block %q: %w", b.ID, ErrBlockExists)
		}
		byID[b.ID] = b
	}
	parentOf := make(map[string]string)
	for _, b := range f.Blocks {
		for _, child := range b.Children() {
			if _, ok := byID[child]; !ok {
				return fmt.Errorf("fragment block %q: child %q: %w", b.ID, child, ErrUnknownBlock)
			}
			if other, taken := parentOf[child]; taken {
				return fmt.Errorf("fragment block %q is connected to both %q and %q", child, other, b.ID)
			}
			parentOf[child] = b.ID
		}
	}
	// Every block must be reachable from a root, otherwise the
	// unreachable blocks form a cycle.
	reached := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		if reached[id] {
			return
		}
		reached[id] = true
		for _, child := range byID[id].Children() {
			visit(child)
		}
	}
	for _, top := range f.TopIDs() {
		visit(top)
	}
	if len(reached) != len(byID) {
		return fmt.Errorf("fragment: %w", ErrCycle)
	}
	return nil
}

// Merge inserts a fragment into the graph. Either every block is inserted or
// the graph is left untouched. Existing blocks are never overwritten.
func (g *Graph) Merge(f *Fragment) error {
	if err := f.Validate(); err != nil {
		return err
	}
	for _, b := range f.Blocks {
		if g.Has(b.ID) {
			return fmt.Errorf("merge block %q: %w", b.ID, ErrBlockExists)
		}
	}
	// Insertion order is parents first, matching a decoded document.
	byID := make(map[string]*Block, len(f.Blocks))
	for _, b := range f.Blocks {
		byID[b.ID] = b
	}
	var ordered []*Block
	var collect func(id string)
	collect = func(id string) {
		b := byID[id]
		ordered = append(ordered, b)
		for _, child := range b.Children() {
			collect(child)
		}
	}
	for _, top := range f.TopIDs() {
		collect(top)
	}
	for _, b := range ordered {
		g.insert(b.Clone())
	}
	for _, v := range f.Variables {
		g.DeclareVariable(v.ID, v.Name)
	}
	return nil
}
