// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/annadata-ai/ajrasakha/services/llm"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
)

const slotExtractionPrompt = `You are an information extractor for an Indian agricultural assistant.
Extract the following from the farmer's question and reply with ONLY a JSON object, no other text:
{
  "intent": one of "disease", "pest", "fertilizer", "general", "greeting",
  "state": the Indian state mentioned, or "" if none,
  "crop": the crop mentioned, or "" if none,
  "location_provided": true if any state or district is mentioned
}

Question: %s`

// SlotExtractor turns a raw query into a slot bundle.
//
// # Description
//
// Prompts the LLM for a strict JSON object, parses it leniently, and
// normalizes the extracted state against the state-crops manifest. Any
// failure, from the LLM being down to malformed output, yields the default
// bundle {intent: general, location_provided: false}; extraction never
// fails the request.
type SlotExtractor struct {
	client llm.LLMClient
	store  *statecrops.Store
}

// NewSlotExtractor creates an extractor over the given LLM and manifest.
func NewSlotExtractor(client llm.LLMClient, store *statecrops.Store) *SlotExtractor {
	return &SlotExtractor{client: client, store: store}
}

// rawSlots mirrors the JSON object the extraction prompt requests.
type rawSlots struct {
	Intent           string `json:"intent"`
	State            string `json:"state"`
	Crop             string `json:"crop"`
	LocationProvided bool   `json:"location_provided"`
}

// Extract produces the slot bundle for query.
func (e *SlotExtractor) Extract(ctx context.Context, query string) datatypes.Slots {
	temp := float32(0.0)
	output, err := e.client.Generate(ctx, fmt.Sprintf(slotExtractionPrompt, query),
		llm.GenerationParams{Temperature: &temp})
	if err != nil {
		slog.Warn("Slot extraction LLM call failed, using default slots", "error", err)
		return datatypes.DefaultSlots()
	}

	jsonBytes, err := ExtractJSON(output)
	if err != nil {
		slog.Warn("Slot extraction output was not JSON, using default slots",
			"error", err, "output", output)
		return datatypes.DefaultSlots()
	}

	var raw rawSlots
	if err := json.Unmarshal(jsonBytes, &raw); err != nil {
		slog.Warn("Slot extraction JSON did not match the expected shape, using default slots",
			"error", err)
		return datatypes.DefaultSlots()
	}

	slots := datatypes.Slots{
		Intent:           datatypes.ParseIntent(raw.Intent),
		CropName:         raw.Crop,
		LocationProvided: raw.LocationProvided,
	}

	if raw.State != "" {
		manifest := e.store.Current()
		if name, code, ok := manifest.NormalizeState(raw.State); ok {
			slots.StateName = name
			slots.StateCode = code
			slots.LocationProvided = true
		} else {
			slog.Debug("Extracted state did not normalize", "state", raw.State)
		}
	}

	return slots
}
