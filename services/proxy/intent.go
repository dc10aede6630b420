// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/annadata-ai/ajrasakha/services/llm"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
)

// ChatIntent is the coarse request domain used for tool pruning.
type ChatIntent string

const (
	IntentWeather     ChatIntent = "WEATHER"
	IntentMarket      ChatIntent = "MARKET"
	IntentAgriculture ChatIntent = "AGRICULTURE"
)

// userTurnWindow is how many user turns the classifier sees.
const userTurnWindow = 3

const classifyPrompt = `Classify the topic of this farmer conversation into exactly one of:
WEATHER, MARKET, AGRICULTURE.

Recent user messages, most recent first:
%s

Answer with the single word only.`

// IntentClassifier assigns a chat request to a tool domain.
type IntentClassifier struct {
	client llm.LLMClient
}

func NewIntentClassifier(client llm.LLMClient) *IntentClassifier {
	return &IntentClassifier{client: client}
}

// Classify inspects the last user turns. Anything the model says that is
// not WEATHER or MARKET counts as AGRICULTURE.
func (c *IntentClassifier) Classify(ctx context.Context, env *Envelope) ChatIntent {
	turns := env.UserTurns(userTurnWindow)
	if len(turns) == 0 {
		return IntentAgriculture
	}

	var numbered strings.Builder
	for i, turn := range turns {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, turn)
	}

	temp := float32(0.0)
	output, err := c.client.Generate(ctx, fmt.Sprintf(classifyPrompt, numbered.String()),
		llm.GenerationParams{Temperature: &temp})
	if err != nil {
		slog.Warn("Intent classification failed, defaulting to agriculture", "error", err)
		return IntentAgriculture
	}

	switch strings.ToUpper(strings.TrimSpace(output)) {
	case string(IntentWeather):
		return IntentWeather
	case string(IntentMarket):
		return IntentMarket
	default:
		return IntentAgriculture
	}
}

// Tags excluded from the MARKET group: their content is already injected
// into the market system prompt.
const (
	tagMarketStateList = "market/state-list"
	tagMarketTodayDate = "market/today-date"
)

// knownTagGroups are the tag prefixes pruning understands. A tool with a
// tag outside these groups, or with no tag at all, is never pruned.
var knownTagGroups = []string{"market/", "weather/", "pop/", "golden/", "faq-videos/", "reviewed/"}

// allowedPrefixes maps each intent to the tag groups it keeps.
func allowedPrefixes(intent ChatIntent) []string {
	switch intent {
	case IntentMarket:
		return []string{"market/"}
	case IntentWeather:
		return []string{"weather/"}
	default:
		return []string{"pop/", "golden/", "faq-videos/", "reviewed/"}
	}
}

// PruneTools filters the request's tool manifest by intent.
//
// # Description
//
// tagFor resolves a tool name to its registry tag. Tools whose tag is in
// the intent's groups survive; tools with an unknown tag survive as well
// (the proxy cannot classify what it does not know). The two market tools
// whose content is folded into the system prompt are dropped under MARKET.
// If pruning would empty a non-empty list, the original list is returned
// unchanged.
func PruneTools(intent ChatIntent, entries []ToolEntry, tagFor func(name string) (string, bool)) []ToolEntry {
	if len(entries) == 0 {
		return entries
	}

	allowed := allowedPrefixes(intent)
	kept := make([]ToolEntry, 0, len(entries))
	for _, entry := range entries {
		tag, ok := tagFor(entry.Name)
		if !ok || !inKnownGroup(tag) {
			kept = append(kept, entry)
			continue
		}
		if intent == IntentMarket && (tag == tagMarketStateList || tag == tagMarketTodayDate) {
			continue
		}
		for _, prefix := range allowed {
			if strings.HasPrefix(tag, prefix) {
				kept = append(kept, entry)
				break
			}
		}
	}

	if len(kept) == 0 {
		slog.Warn("Tool pruning would empty the manifest, keeping original list",
			"intent", intent, "tools", len(entries))
		return entries
	}
	return kept
}

func inKnownGroup(tag string) bool {
	for _, prefix := range knownTagGroups {
		if strings.HasPrefix(tag, prefix) {
			return true
		}
	}
	return false
}

// SystemPromptFor builds the intent-specific system segment.
func SystemPromptFor(intent ChatIntent, manifest *statecrops.Manifest, now time.Time) string {
	switch intent {
	case IntentMarket:
		var table strings.Builder
		names := make([]string, 0, len(manifest.StateCodes))
		for name := range manifest.StateCodes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&table, "%s: %s\n", manifest.StateCodes[name], name)
		}
		return fmt.Sprintf(
			"Market context. Today's Date: %s. Use these state IDs when querying market prices:\n%s",
			now.Format("2006-01-02"), table.String())
	case IntentWeather:
		return "Weather context. Ask for the farmer's district if it is not already known before giving a forecast."
	default:
		return "Agricultural guidance. Before answering, confirm the farmer's state and the crop in question; retrieval tools require both."
	}
}

// InjectSystemPrompt appends the segment to an existing system message,
// or inserts a new system message at position 0.
func InjectSystemPrompt(env *Envelope, segment string) {
	for i := range env.Messages {
		if env.Messages[i].Role == "system" {
			content := env.Messages[i].Content
			if content.IsBlocks {
				content.Blocks = append(content.Blocks, ContentBlock{Type: "text", Text: segment})
			} else {
				content.Text = content.Text + "\n\n" + segment
			}
			env.Messages[i].Content = content
			return
		}
	}
	env.Messages = append([]ChatMessage{{
		Role:    "system",
		Content: NewTextContent(segment),
	}}, env.Messages...)
}
