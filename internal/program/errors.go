package program

import (
	"errors"
	"fmt"
)

var (
	// ErrBlockExists is returned when a block id is already present in the graph.
	ErrBlockExists = errors.New("block already exists")
	// ErrUnknownBlock is returned when an operation references a block that is not in the graph.
	ErrUnknownBlock = errors.New("unknown block")
	// ErrCycle is returned when a connection would make a block its own ancestor.
	ErrCycle = errors.New("connection would create a cycle")
	// ErrSlotConnected is returned when a literal is written to a slot holding a child block.
	ErrSlotConnected = errors.New("slot is connected to a child block")
)

// LoadError reports a serialized program that cannot be turned into a graph.
type LoadError struct {
	Reason    string
	BlockID   string
	BlockType string
	Err       error
}

func (e *LoadError) Error() string {
	msg := "load program: " + e.Reason
	if e.BlockType != "" {
		msg += fmt.Sprintf(" (type %q", e.BlockType)
		if e.BlockID != "" {
			msg += fmt.Sprintf(", id %q", e.BlockID)
		}
		msg += ")"
	} else if e.BlockID != "" {
		msg += fmt.Sprintf(" (id %q)", e.BlockID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }
