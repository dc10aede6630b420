// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/annadata-ai/ajrasakha/services/llm"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
)

const cropSynonymPrompt = `A farmer mentioned the crop "%s". We hold data for the
following crops in their state: %s.

If "%s" is a synonym, local name, or spelling variant of exactly one crop in
that list, answer with that crop name copied verbatim from the list. If it
matches none of them, answer with the single word: None.`

// CropValidator resolves an extracted crop name against the crops a source
// actually covers for a state.
//
// # Description
//
// Membership is checked case-insensitively first, then a synonym lookup is
// delegated to the LLM. The LLM may only pick an existing list member; any
// other answer, including an error, means the crop is not covered. The
// validator never invents a crop for a query that did not mention one.
type CropValidator struct {
	client llm.LLMClient
	store  *statecrops.Store
}

func NewCropValidator(client llm.LLMClient, store *statecrops.Store) *CropValidator {
	return &CropValidator{client: client, store: store}
}

// Validate returns the canonical crop name for source+stateCode. The second
// return is false when the crop is empty or not covered; callers skip the
// source in that case.
func (v *CropValidator) Validate(ctx context.Context, source statecrops.SourceKey, stateCode, crop string) (string, bool) {
	if crop == "" {
		return "", false
	}

	allowed := v.store.Current().Crops(source, stateCode)
	if len(allowed) == 0 {
		return "", false
	}

	for _, candidate := range allowed {
		if strings.EqualFold(candidate, crop) {
			return candidate, true
		}
	}

	temp := float32(0.0)
	output, err := v.client.Generate(ctx,
		fmt.Sprintf(cropSynonymPrompt, crop, strings.Join(allowed, ", "), crop),
		llm.GenerationParams{Temperature: &temp})
	if err != nil {
		slog.Warn("Crop synonym lookup failed, crop treated as uncovered",
			"crop", crop, "state_code", stateCode, "error", err)
		return "", false
	}

	answer := strings.TrimSpace(output)
	if strings.EqualFold(answer, "None") {
		return "", false
	}
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, answer) {
			return candidate, true
		}
	}

	slog.Debug("Crop synonym lookup answered outside the allow list",
		"crop", crop, "answer", answer)
	return "", false
}
