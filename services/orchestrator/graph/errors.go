// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilContext indicates a nil context was passed to Run.
	ErrNilContext = errors.New("context must not be nil")

	// ErrDuplicateNode indicates a node name was registered twice.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrNodeNotFound indicates a transition targeted an unregistered node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrMaxSteps indicates the machine exceeded its step budget, which
	// means a transition loop.
	ErrMaxSteps = errors.New("maximum step count exceeded")
)

// NodeError wraps an error with the node it occurred in.
type NodeError struct {
	NodeName string
	Err      error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeName, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// NewNodeError creates a NodeError.
func NewNodeError(name string, err error) *NodeError {
	return &NodeError{NodeName: name, Err: err}
}
