// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph provides a generic state machine: a node table plus
// per-node transition routers over a caller-defined state type.
//
// Nodes are pure functions (State) -> State; routing decisions are separate
// functions (State) -> next node name. Nodes never return errors: a node
// that hits an upstream failure degrades its own contribution to the state
// and the machine keeps walking. The only machine-level failures are a
// transition to an unknown node and exceeding the step budget.
package graph

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ajrasakha.orchestrator.graph")

// End is the terminal transition target. A router returning End stops the
// machine.
const End = "END"

// DefaultMaxSteps bounds a single run. The farm QA machine walks well
// under twenty states; anything past this is a routing loop.
const DefaultMaxSteps = 64

// NodeFunc transforms the state. Implementations must be total: degrade
// and return rather than panic.
type NodeFunc[S any] func(ctx context.Context, state S) S

// RouterFunc picks the next node name from the state after a node ran.
type RouterFunc[S any] func(state S) string

// StaticRoute returns a router that always transitions to next.
func StaticRoute[S any](next string) RouterFunc[S] {
	return func(S) string { return next }
}

type nodeEntry[S any] struct {
	run   NodeFunc[S]
	route RouterFunc[S]
}

// Machine is an executable state machine.
//
// # Thread Safety
//
// Safe for concurrent use. A Machine holds only the immutable node table;
// all per-run state lives in the caller's S value.
type Machine[S any] struct {
	name     string
	start    string
	maxSteps int
	nodes    map[string]nodeEntry[S]
	logger   *slog.Logger
}

// Builder constructs a Machine with validation.
//
// # Thread Safety
//
// Builder is NOT safe for concurrent use. Build the machine in a single
// goroutine.
//
// # Example
//
//	m, err := graph.NewBuilder[MyState]("qa-pipeline").
//	    Start("extract").
//	    AddNode("extract", extractFn, routeAfterExtract).
//	    AddNode("greet", greetFn, graph.StaticRoute[MyState](graph.End)).
//	    Build()
type Builder[S any] struct {
	name     string
	start    string
	maxSteps int
	nodes    map[string]nodeEntry[S]
	logger   *slog.Logger
	errors   []error
}

// NewBuilder creates a machine builder. name is used in spans and logs.
func NewBuilder[S any](name string) *Builder[S] {
	return &Builder[S]{
		name:     name,
		maxSteps: DefaultMaxSteps,
		nodes:    make(map[string]nodeEntry[S]),
	}
}

// Start sets the entry node name.
func (b *Builder[S]) Start(name string) *Builder[S] {
	b.start = name
	return b
}

// MaxSteps overrides the step budget.
func (b *Builder[S]) MaxSteps(n int) *Builder[S] {
	if n > 0 {
		b.maxSteps = n
	}
	return b
}

// WithLogger sets the logger. Defaults to slog.Default().
func (b *Builder[S]) WithLogger(logger *slog.Logger) *Builder[S] {
	b.logger = logger
	return b
}

// AddNode registers a node and its transition router. A nil router is
// treated as a static transition to End.
func (b *Builder[S]) AddNode(name string, run NodeFunc[S], route RouterFunc[S]) *Builder[S] {
	if name == "" || name == End || run == nil {
		b.errors = append(b.errors, ErrInvalidInput)
		return b
	}
	if _, exists := b.nodes[name]; exists {
		b.errors = append(b.errors, NewNodeError(name, ErrDuplicateNode))
		return b
	}
	if route == nil {
		route = StaticRoute[S](End)
	}
	b.nodes[name] = nodeEntry[S]{run: run, route: route}
	return b
}

// Build validates and constructs the machine.
func (b *Builder[S]) Build() (*Machine[S], error) {
	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}
	if len(b.nodes) == 0 {
		return nil, ErrInvalidInput
	}
	if _, ok := b.nodes[b.start]; !ok {
		return nil, NewNodeError(b.start, ErrNodeNotFound)
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine[S]{
		name:     b.name,
		start:    b.start,
		maxSteps: b.maxSteps,
		nodes:    b.nodes,
		logger:   logger,
	}, nil
}

// Run walks the machine from the start node until a router returns End.
//
// # Inputs
//
//   - ctx: cancellation stops the walk between nodes. Must not be nil.
//   - state: the initial state value, threaded through every node.
//
// # Outputs
//
//   - S: the state after the final node.
//   - error: context cancellation, an unknown transition target, or the
//     step budget being exceeded. The partial state is returned alongside.
func (m *Machine[S]) Run(ctx context.Context, state S) (S, error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	ctx, span := tracer.Start(ctx, "graph.Run",
		trace.WithAttributes(
			attribute.String("graph.name", m.name),
			attribute.Int("graph.node_count", len(m.nodes)),
		),
	)
	defer span.End()

	start := time.Now()
	current := m.start

	for step := 0; step < m.maxSteps; step++ {
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context canceled")
			return state, ctx.Err()
		default:
		}

		entry, ok := m.nodes[current]
		if !ok {
			err := NewNodeError(current, ErrNodeNotFound)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return state, err
		}

		state = m.runNode(ctx, current, entry, state)

		next := entry.route(state)
		if next == End {
			span.SetStatus(codes.Ok, "")
			m.logger.Debug("graph run complete",
				slog.String("graph", m.name),
				slog.Int("steps", step+1),
				slog.Duration("duration", time.Since(start)),
			)
			return state, nil
		}
		current = next
	}

	span.RecordError(ErrMaxSteps)
	span.SetStatus(codes.Error, ErrMaxSteps.Error())
	m.logger.Error("graph exceeded step budget",
		slog.String("graph", m.name),
		slog.String("current", current),
		slog.Int("max_steps", m.maxSteps),
	)
	return state, ErrMaxSteps
}

// RunFrom walks the machine starting at an arbitrary node. Used by the fork
// node to execute a branch of the table as its own walk.
func (m *Machine[S]) RunFrom(ctx context.Context, startNode string, state S) (S, error) {
	if _, ok := m.nodes[startNode]; !ok {
		return state, NewNodeError(startNode, ErrNodeNotFound)
	}
	sub := &Machine[S]{
		name:     m.name + "." + startNode,
		start:    startNode,
		maxSteps: m.maxSteps,
		nodes:    m.nodes,
		logger:   m.logger,
	}
	return sub.Run(ctx, state)
}

// runNode executes one node with a child span.
func (m *Machine[S]) runNode(ctx context.Context, name string, entry nodeEntry[S], state S) S {
	ctx, span := tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("graph.node", name),
			attribute.String("graph.name", m.name),
		),
	)
	defer span.End()

	nodeStart := time.Now()
	state = entry.run(ctx, state)

	m.logger.Debug("node completed",
		slog.String("node", name),
		slog.Duration("duration", time.Since(nodeStart)),
	)
	span.SetStatus(codes.Ok, "")
	return state
}
