package event

import "time"

// Kind describes what a change event did to the program.
type Kind string

// Kind values forwarded to change subscribers.
const (
	KindCreate      Kind = "create"
	KindDelete      Kind = "delete"
	KindMove        Kind = "move"
	KindChangeField Kind = "change-field"
	KindDragStart   Kind = "drag-start"
	KindDragStop    Kind = "drag-stop"
)

// Structural reports whether the kind changes the program itself, as opposed
// to a drag gesture in progress.
func (k Kind) Structural() bool {
	switch k {
	case KindCreate, KindDelete, KindMove, KindChangeField:
		return true
	default:
		return false
	}
}

// ChangeEvent is a normalized notification that the program changed.
// It is a value; subscribers receive their own copy.
type ChangeEvent struct {
	Kind      Kind      `json:"kind"`
	BlockID   string    `json:"block_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Raw event types emitted by the rendering surface.
const (
	RawCreate = "create"
	RawDelete = "delete"
	RawMove   = "move"
	RawChange = "change"
	RawDrag   = "drag"
	RawUI     = "ui"
)

// Raw is an event as the rendering surface reports it, before normalization.
// Payload fields are set according to Type.
type Raw struct {
	Type    string `json:"type"`
	BlockID string `json:"block_id"`

	// drag
	IsStart bool `json:"is_start,omitempty"`

	// create: the XML of the created block tree
	XML string `json:"xml,omitempty"`

	// move: new parent and slot, empty parent for a root
	NewParentID string `json:"new_parent_id,omitempty"`
	NewSlot     string `json:"new_slot,omitempty"`

	// change
	Name     string `json:"name,omitempty"`
	NewValue string `json:"new_value,omitempty"`
}

// Normalize maps a raw surface event to a ChangeEvent. Events that do not
// describe a program change (ui, viewport, selection, unknown types) return false.
func Normalize(raw Raw, now time.Time) (ChangeEvent, bool) {
	var kind Kind
	switch raw.Type {
	case RawCreate:
		kind = KindCreate
	case RawDelete:
		kind = KindDelete
	case RawMove:
		kind = KindMove
	case RawChange:
		kind = KindChangeField
	case RawDrag:
		kind = KindDragStop
		if raw.IsStart {
			kind = KindDragStart
		}
	default:
		return ChangeEvent{}, false
	}
	return ChangeEvent{Kind: kind, BlockID: raw.BlockID, Timestamp: now}, true
}

// ListenerID identifies a change listener attached to a rendering surface.
type ListenerID uint64
