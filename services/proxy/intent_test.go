// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proxy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annadata-ai/ajrasakha/services/llm"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
)

// fakeLLM returns a canned completion and records the last prompt.
type fakeLLM struct {
	output     string
	err        error
	lastPrompt string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func userEnvelope(turns ...string) *Envelope {
	env := &Envelope{}
	for _, turn := range turns {
		env.Messages = append(env.Messages, ChatMessage{Role: "user", Content: NewTextContent(turn)})
	}
	return env
}

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
		want ChatIntent
	}{
		{"weather", &fakeLLM{output: "WEATHER"}, IntentWeather},
		{"market lowercase", &fakeLLM{output: "market"}, IntentMarket},
		{"padded", &fakeLLM{output: "  AGRICULTURE  "}, IntentAgriculture},
		{"unknown word", &fakeLLM{output: "SPORTS"}, IntentAgriculture},
		{"model error", &fakeLLM{err: errors.New("upstream down")}, IntentAgriculture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewIntentClassifier(tt.llm)
			got := c.Classify(context.Background(), userEnvelope("What will mandi prices do?"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyEmptyConversationSkipsModel(t *testing.T) {
	llmStub := &fakeLLM{output: "WEATHER"}
	c := NewIntentClassifier(llmStub)

	got := c.Classify(context.Background(), &Envelope{})
	assert.Equal(t, IntentAgriculture, got)
	assert.Empty(t, llmStub.lastPrompt)
}

func TestClassifyUsesMostRecentTurnsFirst(t *testing.T) {
	llmStub := &fakeLLM{output: "AGRICULTURE"}
	c := NewIntentClassifier(llmStub)

	c.Classify(context.Background(), userEnvelope("one", "two", "three", "four"))

	require.Contains(t, llmStub.lastPrompt, "1. four")
	assert.Contains(t, llmStub.lastPrompt, "3. two")
	assert.NotContains(t, llmStub.lastPrompt, "one")
}

func namedTool(name string) ToolEntry {
	raw := fmt.Sprintf(`{"type":"function","function":{"name":%q}}`, name)
	return ToolEntry{Raw: []byte(raw), Name: name}
}

func toolNames(entries []ToolEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

func TestPruneTools(t *testing.T) {
	tags := map[string]string{
		"get_prices":       "market/prices",
		"list_states":      tagMarketStateList,
		"today":            tagMarketTodayDate,
		"get_forecast":     "weather/forecast",
		"pop_context":      "pop/context",
		"golden_context":   "golden/context",
		"search_faq":       "faq-videos/search",
		"reviewed_context": "reviewed/context",
		"ask_ajrasakha":    "core/ask",
	}
	tagFor := func(name string) (string, bool) {
		tag, ok := tags[name]
		return tag, ok
	}

	all := []ToolEntry{
		namedTool("get_prices"), namedTool("list_states"), namedTool("today"),
		namedTool("get_forecast"), namedTool("pop_context"), namedTool("golden_context"),
		namedTool("search_faq"), namedTool("reviewed_context"),
		namedTool("ask_ajrasakha"), namedTool("client_custom"),
	}

	tests := []struct {
		name   string
		intent ChatIntent
		want   []string
	}{
		{
			// State list and date tools are folded into the system prompt.
			name:   "market",
			intent: IntentMarket,
			want:   []string{"get_prices", "ask_ajrasakha", "client_custom"},
		},
		{
			name:   "weather",
			intent: IntentWeather,
			want:   []string{"get_forecast", "ask_ajrasakha", "client_custom"},
		},
		{
			name:   "agriculture",
			intent: IntentAgriculture,
			want: []string{
				"pop_context", "golden_context", "search_faq",
				"reviewed_context", "ask_ajrasakha", "client_custom",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PruneTools(tt.intent, all, tagFor)
			assert.ElementsMatch(t, tt.want, toolNames(got))
		})
	}
}

// Pruning a non-empty manifest must never return an empty one.
func TestPruneToolsNeverEmptiesManifest(t *testing.T) {
	onlyWeather := []ToolEntry{namedTool("get_forecast")}
	tagFor := func(string) (string, bool) { return "weather/forecast", true }

	got := PruneTools(IntentMarket, onlyWeather, tagFor)
	assert.Equal(t, toolNames(onlyWeather), toolNames(got))
}

func TestPruneToolsEmptyInput(t *testing.T) {
	got := PruneTools(IntentMarket, nil, func(string) (string, bool) { return "", false })
	assert.Empty(t, got)
}

func TestSystemPromptForMarketListsStates(t *testing.T) {
	manifest := &statecrops.Manifest{StateCodes: map[string]string{
		"Punjab":      "PB",
		"West Bengal": "WB",
	}}
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	segment := SystemPromptFor(IntentMarket, manifest, now)
	assert.Contains(t, segment, "2026-03-14")
	assert.Contains(t, segment, "PB: Punjab")
	assert.Contains(t, segment, "WB: West Bengal")
	// Sorted by state name.
	assert.Less(t, strings.Index(segment, "Punjab"), strings.Index(segment, "West Bengal"))
}

func TestSystemPromptForWeatherAndAgriculture(t *testing.T) {
	manifest := &statecrops.Manifest{}
	assert.Contains(t, SystemPromptFor(IntentWeather, manifest, time.Now()), "district")
	assert.Contains(t, SystemPromptFor(IntentAgriculture, manifest, time.Now()), "state")
}

func TestInjectSystemPromptAppendsToExisting(t *testing.T) {
	env := &Envelope{Messages: []ChatMessage{
		{Role: "system", Content: NewTextContent("You are Ajrasakha.")},
		{Role: "user", Content: NewTextContent("hello")},
	}}

	InjectSystemPrompt(env, "Weather context.")

	require.Len(t, env.Messages, 2)
	assert.Equal(t, "You are Ajrasakha.\n\nWeather context.", env.Messages[0].Content.Text)
}

func TestInjectSystemPromptInsertsWhenMissing(t *testing.T) {
	env := userEnvelope("hello")

	InjectSystemPrompt(env, "Weather context.")

	require.Len(t, env.Messages, 2)
	assert.Equal(t, "system", env.Messages[0].Role)
	assert.Equal(t, "Weather context.", env.Messages[0].Content.Text)
	assert.Equal(t, "user", env.Messages[1].Role)
}

func TestInjectSystemPromptBlockContent(t *testing.T) {
	env := &Envelope{Messages: []ChatMessage{
		{Role: "system", Content: MessageContent{IsBlocks: true, Blocks: []ContentBlock{
			{Type: "text", Text: "Persona."},
		}}},
	}}

	InjectSystemPrompt(env, "Market context.")

	blocks := env.Messages[0].Content.Blocks
	require.Len(t, blocks, 2)
	assert.Equal(t, "Market context.", blocks[1].Text)
}
