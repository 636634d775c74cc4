package program

import (
	"maps"
	"slices"
)

// Slot is one named input of a block. It holds either a literal value or a
// connection to a child block, never both.
type Slot struct {
	Value string `json:"value,omitempty"`
	Child string `json:"child,omitempty"`
}

// IsChild reports whether the slot is connected to a child block.
func (s Slot) IsChild() bool { return s.Child != "" }

// Block is a single node of the program.
type Block struct {
	ID    string          `json:"id"`
	Type  string          `json:"type"`
	Slots map[string]Slot `json:"slots,omitempty"`
}

// NewBlock creates an empty block of the given type.
func NewBlock(id, blockType string) *Block {
	return &Block{ID: id, Type: blockType, Slots: make(map[string]Slot)}
}

// WithField sets a literal slot and returns the block for chaining.
func (b *Block) WithField(name, value string) *Block {
	b.ensureSlots()
	b.Slots[name] = Slot{Value: value}
	return b
}

// WithChild connects a child block id to a slot and returns the block for chaining.
func (b *Block) WithChild(name, childID string) *Block {
	b.ensureSlots()
	b.Slots[name] = Slot{Child: childID}
	return b
}

// Field returns the literal value stored in a slot.
func (b *Block) Field(name string) (string, bool) {
	s, ok := b.Slots[name]
	if !ok || s.IsChild() {
		return "", false
	}
	return s.Value, true
}

// Children returns the ids of connected child blocks ordered by slot name.
func (b *Block) Children() []string {
	var ids []string
	for _, name := range b.SlotNames() {
		if s := b.Slots[name]; s.IsChild() {
			ids = append(ids, s.Child)
		}
	}
	return ids
}

// SlotNames returns the block's slot names in sorted order.
func (b *Block) SlotNames() []string {
	return slices.Sorted(maps.Keys(b.Slots))
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	c := &Block{ID: b.ID, Type: b.Type, Slots: make(map[string]Slot, len(b.Slots))}
	maps.Copy(c.Slots, b.Slots)
	return c
}

func (b *Block) ensureSlots() {
	if b.Slots == nil {
		b.Slots = make(map[string]Slot)
	}
}

// Variable is a named variable binding declared in the program.
type Variable struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
