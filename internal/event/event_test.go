package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		raw      Raw
		wantKind Kind
		wantOK   bool
	}{
		{name: "Create", raw: Raw{Type: RawCreate, BlockID: "b"}, wantKind: KindCreate, wantOK: true},
		{name: "Delete", raw: Raw{Type: RawDelete, BlockID: "b"}, wantKind: KindDelete, wantOK: true},
		{name: "Move", raw: Raw{Type: RawMove, BlockID: "b"}, wantKind: KindMove, wantOK: true},
		{name: "Change", raw: Raw{Type: RawChange, BlockID: "b"}, wantKind: KindChangeField, wantOK: true},
		{name: "DragStart", raw: Raw{Type: RawDrag, BlockID: "b", IsStart: true}, wantKind: KindDragStart, wantOK: true},
		{name: "DragStop", raw: Raw{Type: RawDrag, BlockID: "b"}, wantKind: KindDragStop, wantOK: true},
		{name: "UI", raw: Raw{Type: RawUI}, wantOK: false},
		{name: "Viewport", raw: Raw{Type: "viewport_change"}, wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, ok := Normalize(tc.raw, now)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, ChangeEvent{Kind: tc.wantKind, BlockID: "b", Timestamp: now}, ev)
			}
		})
	}
}

func TestKind_Structural(t *testing.T) {
	assert.True(t, KindDelete.Structural())
	assert.True(t, KindChangeField.Structural())
	assert.False(t, KindDragStart.Structural())
}
