package program

import (
	"fmt"
	"iter"
	"slices"
)

type parentRef struct {
	id   string
	slot string
}

// Graph is the in-memory block program: a forest of blocks joined through
// child slots. A block has at most one parent and no block is its own ancestor.
//
// Graph is not safe for concurrent use; the workspace controller that owns it
// serializes access.
type Graph struct {
	blocks    map[string]*Block
	order     []string
	parents   map[string]parentRef
	variables []Variable
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		blocks:  make(map[string]*Block),
		parents: make(map[string]parentRef),
	}
}

// Len returns the number of blocks in the graph.
func (g *Graph) Len() int { return len(g.blocks) }

// Block returns a copy of the block with the given id.
func (g *Graph) Block(id string) (*Block, bool) {
	b, ok := g.blocks[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

// Has reports whether a block id is present.
func (g *Graph) Has(id string) bool {
	_, ok := g.blocks[id]
	return ok
}

// Blocks yields copies of every block in insertion order. The sequence can be
// ranged over any number of times.
func (g *Graph) Blocks() iter.Seq[*Block] {
	return func(yield func(*Block) bool) {
		for _, id := range slices.Clone(g.order) {
			b, ok := g.blocks[id]
			if !ok {
				continue
			}
			if !yield(b.Clone()) {
				return
			}
		}
	}
}

// TopBlocks returns copies of the root blocks in insertion order.
func (g *Graph) TopBlocks() []*Block {
	var roots []*Block
	for _, id := range g.order {
		if _, hasParent := g.parents[id]; !hasParent {
			roots = append(roots, g.blocks[id].Clone())
		}
	}
	return roots
}

// Parent returns the parent id and slot of a connected block.
func (g *Graph) Parent(id string) (parentID, slot string, ok bool) {
	p, ok := g.parents[id]
	return p.id, p.slot, ok
}

// Variables returns the declared variables.
func (g *Graph) Variables() []Variable {
	return slices.Clone(g.variables)
}

// DeclareVariable binds a variable name. When the name is already declared the
// existing id is returned and id is ignored.
func (g *Graph) DeclareVariable(id, name string) string {
	for _, v := range g.variables {
		if v.Name == name {
			return v.ID
		}
	}
	g.variables = append(g.variables, Variable{ID: id, Name: name})
	return id
}

// Add inserts a single block. Child slots of b must point at root blocks
// already in the graph; they become children of b.
func (g *Graph) Add(b *Block) error {
	if b == nil || b.ID == "" {
		return fmt.Errorf("add block: empty id")
	}
	if g.Has(b.ID) {
		return fmt.Errorf("add block %q: %w", b.ID, ErrBlockExists)
	}
	seen := make(map[string]bool)
	for _, child := range b.Children() {
		if !g.Has(child) {
			return fmt.Errorf("add block %q: child %q: %w", b.ID, child, ErrUnknownBlock)
		}
		if _, hasParent := g.parents[child]; hasParent || seen[child] {
			return fmt.Errorf("add block %q: child %q already connected", b.ID, child)
		}
		seen[child] = true
	}
	g.insert(b.Clone())
	return nil
}

func (g *Graph) insert(b *Block) {
	b.ensureSlots()
	g.blocks[b.ID] = b
	g.order = append(g.order, b.ID)
	for name, s := range b.Slots {
		if s.IsChild() {
			g.parents[s.Child] = parentRef{id: b.ID, slot: name}
		}
	}
}

// Connect attaches child to a slot of parent. The child must currently be a
// root. A block already in that slot is detached and becomes a root.
func (g *Graph) Connect(parentID, slot, childID string) error {
	parent, ok := g.blocks[parentID]
	if !ok {
		return fmt.Errorf("connect: parent %q: %w", parentID, ErrUnknownBlock)
	}
	if !g.Has(childID) {
		return fmt.Errorf("connect: child %q: %w", childID, ErrUnknownBlock)
	}
	if _, hasParent := g.parents[childID]; hasParent {
		return fmt.Errorf("connect: child %q already connected", childID)
	}
	if g.isAncestor(childID, parentID) {
		return fmt.Errorf("connect %q to %q: %w", childID, parentID, ErrCycle)
	}
	if prev, ok := parent.Slots[slot]; ok && prev.IsChild() {
		delete(g.parents, prev.Child)
	}
	parent.Slots[slot] = Slot{Child: childID}
	g.parents[childID] = parentRef{id: parentID, slot: slot}
	return nil
}

// Disconnect detaches a block from its parent, making it a root. Disconnecting
// a root is a no-op.
func (g *Graph) Disconnect(id string) error {
	if !g.Has(id) {
		return fmt.Errorf("disconnect %q: %w", id, ErrUnknownBlock)
	}
	p, ok := g.parents[id]
	if !ok {
		return nil
	}
	delete(g.blocks[p.id].Slots, p.slot)
	delete(g.parents, id)
	return nil
}

// Move reconnects a block under a new parent slot, or makes it a root when
// parentID is empty. The graph is unchanged when the move is rejected.
func (g *Graph) Move(id, parentID, slot string) error {
	if !g.Has(id) {
		return fmt.Errorf("move %q: %w", id, ErrUnknownBlock)
	}
	if parentID == "" {
		return g.Disconnect(id)
	}
	if !g.Has(parentID) {
		return fmt.Errorf("move %q: parent %q: %w", id, parentID, ErrUnknownBlock)
	}
	if id == parentID || g.isAncestor(id, parentID) {
		return fmt.Errorf("move %q under %q: %w", id, parentID, ErrCycle)
	}
	if err := g.Disconnect(id); err != nil {
		return err
	}
	return g.Connect(parentID, slot, id)
}

// Remove deletes a block together with every block below it.
func (g *Graph) Remove(id string) error {
	if !g.Has(id) {
		return fmt.Errorf("remove %q: %w", id, ErrUnknownBlock)
	}
	if err := g.Disconnect(id); err != nil {
		return err
	}
	doomed := make(map[string]bool)
	g.walk(id, func(b *Block) { doomed[b.ID] = true })
	for bid := range doomed {
		delete(g.blocks, bid)
		delete(g.parents, bid)
	}
	g.order = slices.DeleteFunc(g.order, func(bid string) bool { return doomed[bid] })
	return nil
}

// SetField writes a literal value into a slot.
func (g *Graph) SetField(id, name, value string) error {
	b, ok := g.blocks[id]
	if !ok {
		return fmt.Errorf("set field %q on %q: %w", name, id, ErrUnknownBlock)
	}
	if s, ok := b.Slots[name]; ok && s.IsChild() {
		return fmt.Errorf("set field %q on %q: %w", name, id, ErrSlotConnected)
	}
	b.Slots[name] = Slot{Value: value}
	return nil
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := New()
	for _, id := range g.order {
		c.blocks[id] = g.blocks[id].Clone()
	}
	c.order = slices.Clone(g.order)
	for k, v := range g.parents {
		c.parents[k] = v
	}
	c.variables = slices.Clone(g.variables)
	return c
}

// Subtree returns copies of the block and its descendants, parents first.
func (g *Graph) Subtree(id string) []*Block {
	var out []*Block
	g.walk(id, func(b *Block) { out = append(out, b.Clone()) })
	return out
}

// isAncestor reports whether candidate is id or sits above id.
func (g *Graph) isAncestor(candidate, id string) bool {
	for cur := id; ; {
		if cur == candidate {
			return true
		}
		p, ok := g.parents[cur]
		if !ok {
			return false
		}
		cur = p.id
	}
}

func (g *Graph) walk(id string, visit func(*Block)) {
	b, ok := g.blocks[id]
	if !ok {
		return
	}
	visit(b)
	for _, child := range b.Children() {
		g.walk(child, visit)
	}
}
