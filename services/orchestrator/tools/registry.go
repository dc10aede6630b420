// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools exposes the orchestration core as named callables.
//
// # Description
//
// Each knowledge backend, plus the full ask pipeline, is registered as a
// tool with an OpenAI-format function definition. The upstream chat model
// selects tools from the manifest; the proxy's intent pruner uses the
// per-tool tag to filter the manifest by domain.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Handler executes a tool call with raw JSON arguments.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is one registered callable.
//
// # Fields
//
//   - Name: the function name the model calls.
//   - Description: shown to the model in the manifest.
//   - Tag: "<group>/<name>" used by intent pruning (market, weather, pop,
//     golden, faq-videos, reviewed, core).
//   - Parameters: JSON Schema for the arguments object.
//   - Run: the handler.
type Tool struct {
	Name        string
	Description string
	Tag         string
	Parameters  map[string]any
	Run         Handler
}

// FunctionDef is the OpenAI function block of a manifest entry.
type FunctionDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ManifestEntry is one OpenAI-format tool definition.
type ManifestEntry struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// Registry holds the named callables.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names and nil handlers are rejected.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool must have a name")
	}
	if t.Run == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns the tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TagFor returns the pruning tag for a tool name.
func (r *Registry) TagFor(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return "", false
	}
	return t.Tag, true
}

// Manifest returns the OpenAI-format tool list, sorted by name.
func (r *Registry) Manifest() []ManifestEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]ManifestEntry, 0, len(r.tools))
	for _, t := range r.tools {
		entries = append(entries, ManifestEntry{
			Type: "function",
			Function: FunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Function.Name < entries[j].Function.Name
	})
	return entries
}

// Call dispatches a tool call by name.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t.Run(ctx, args)
}
