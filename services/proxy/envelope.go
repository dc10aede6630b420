// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package proxy normalizes inbound chat-completion requests before they
// reach the upstream model and translates the response stream back.
//
// # Description
//
// The proxy sits between farmer-facing clients and an OpenAI-compatible
// chat service. Inbound it decodes image blocks to text, detects the query
// language, translates to English, classifies intent, prunes the tool
// manifest, and injects the intent-specific system prompt. Outbound it
// relays the SSE stream, passing tool-call traffic through byte-exact and
// translating plain answers back to the farmer's language.
package proxy

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ImageURLBlock is the image payload of an image_url content block.
type ImageURLBlock struct {
	URL string `json:"url"`
}

// ContentBlock is one typed element of a block-list message content.
type ContentBlock struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *ImageURLBlock `json:"image_url,omitempty"`
}

// MessageContent is an OpenAI message content: either a plain string or a
// list of typed blocks. The wire shape is preserved through re-encoding.
type MessageContent struct {
	Text     string
	Blocks   []ContentBlock
	IsBlocks bool
}

// NewTextContent wraps a plain string.
func NewTextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		m.Text = s
		m.Blocks = nil
		m.IsBlocks = false
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return fmt.Errorf("content is neither a string nor a block list: %w", err)
	}
	m.Blocks = blocks
	m.IsBlocks = true
	return nil
}

func (m MessageContent) MarshalJSON() ([]byte, error) {
	if m.IsBlocks {
		return json.Marshal(m.Blocks)
	}
	return json.Marshal(m.Text)
}

// PlainText flattens the content to text. Block lists concatenate their
// text blocks; image blocks contribute nothing.
func (m MessageContent) PlainText() string {
	if !m.IsBlocks {
		return m.Text
	}
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

// ChatMessage is one turn of the conversation.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ToolEntry is one tool of the request manifest. Raw preserves the exact
// client bytes so pruning never reshapes a tool definition.
type ToolEntry struct {
	Raw  json.RawMessage
	Name string
}

func (t ToolEntry) MarshalJSON() ([]byte, error) {
	return t.Raw, nil
}

func (t *ToolEntry) UnmarshalJSON(data []byte) error {
	t.Raw = append(t.Raw[:0], data...)
	var probe struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	t.Name = probe.Function.Name
	return nil
}

// Envelope is the mutable view of one inbound chat-completion request.
//
// # Description
//
// Known fields (messages, tools, stream) are decoded for mutation; every
// other top-level field of the client request is carried through untouched
// so the upstream sees parameters the proxy does not understand.
type Envelope struct {
	Model    string
	Messages []ChatMessage
	Tools    []ToolEntry
	Stream   bool

	// Set by the proxy stages.
	DetectedLanguage string
	Intent           ChatIntent

	extra map[string]json.RawMessage
}

// ParseEnvelope decodes a chat-completion request body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("request body is not a JSON object: %w", err)
	}

	env := &Envelope{extra: raw}
	if v, ok := raw["model"]; ok {
		if err := json.Unmarshal(v, &env.Model); err != nil {
			return nil, fmt.Errorf("invalid model field: %w", err)
		}
	}
	if v, ok := raw["messages"]; ok {
		if err := json.Unmarshal(v, &env.Messages); err != nil {
			return nil, fmt.Errorf("invalid messages field: %w", err)
		}
	}
	if v, ok := raw["tools"]; ok {
		if err := json.Unmarshal(v, &env.Tools); err != nil {
			return nil, fmt.Errorf("invalid tools field: %w", err)
		}
	}
	if v, ok := raw["stream"]; ok {
		if err := json.Unmarshal(v, &env.Stream); err != nil {
			return nil, fmt.Errorf("invalid stream field: %w", err)
		}
	}
	return env, nil
}

// Encode serializes the envelope back to a request body, merging mutated
// fields over the preserved originals.
func (e *Envelope) Encode() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.extra))
	for k, v := range e.extra {
		out[k] = v
	}

	messages, err := json.Marshal(e.Messages)
	if err != nil {
		return nil, err
	}
	out["messages"] = messages

	if len(e.Tools) > 0 {
		toolBytes, err := json.Marshal(e.Tools)
		if err != nil {
			return nil, err
		}
		out["tools"] = toolBytes
	} else {
		delete(out, "tools")
	}

	return json.Marshal(out)
}

// LastUserIndex returns the index of the most recent user message, -1 if
// there is none.
func (e *Envelope) LastUserIndex() int {
	for i := len(e.Messages) - 1; i >= 0; i-- {
		if e.Messages[i].Role == "user" {
			return i
		}
	}
	return -1
}

// LastAssistantText returns the most recent non-empty assistant text.
func (e *Envelope) LastAssistantText() string {
	for i := len(e.Messages) - 1; i >= 0; i-- {
		if e.Messages[i].Role == "assistant" {
			if text := e.Messages[i].Content.PlainText(); text != "" {
				return text
			}
		}
	}
	return ""
}

// UserTurns returns up to n user messages, most recent first.
func (e *Envelope) UserTurns(n int) []string {
	var turns []string
	for i := len(e.Messages) - 1; i >= 0 && len(turns) < n; i-- {
		if e.Messages[i].Role == "user" {
			if text := e.Messages[i].Content.PlainText(); text != "" {
				turns = append(turns, text)
			}
		}
	}
	return turns
}
