// Package ifc loads IFC documents into a model store that maps every
// rendered triangle back to the entity that produced it.
//
// A load decodes the document, tessellates geometry-bearing products in
// parallel and merges the fragments in ascending entity order into one
// unified mesh with a triangle range index. Models are immutable once Ready
// and can be queried concurrently.
package ifc

import (
	"errors"
	"fmt"
)

// Store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrIndexOutOfRange = errors.New("triangle index out of range")
	ErrReleased        = errors.New("model released during load")
)

// ModelID identifies a model within one Store. IDs start at 0 and are never
// reused.
type ModelID uint32

// State is the lifecycle stage of a model.
type State int

const (
	StateUnloaded State = iota
	StateDecoding
	StateFailedToOpen
	StateDecodeFailed
	StateDecoded
	StateBuilding
	StateBuildFailed
	StateReady
	StateReleased
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "Unloaded"
	case StateDecoding:
		return "Decoding"
	case StateFailedToOpen:
		return "FailedToOpen"
	case StateDecodeFailed:
		return "DecodeFailed"
	case StateDecoded:
		return "Decoded"
	case StateBuilding:
		return "Building"
	case StateBuildFailed:
		return "BuildFailed"
	case StateReady:
		return "Ready"
	case StateReleased:
		return "Released"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen except Release.
func (s State) Terminal() bool {
	switch s {
	case StateFailedToOpen, StateDecodeFailed, StateBuildFailed, StateReady, StateReleased:
		return true
	}
	return false
}

// Failed reports whether the state records a failed load.
func (s State) Failed() bool {
	return s == StateFailedToOpen || s == StateDecodeFailed || s == StateBuildFailed
}

// LoadError is returned when a load fails. State is the terminal state the
// model was left in.
type LoadError struct {
	ModelID ModelID
	State   State
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("model %d: %s: %v", e.ModelID, e.State, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
