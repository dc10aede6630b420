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
	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
)

const relevancePrompt = `You are a strict relevance checker for an agricultural assistant.

Farmer's question:
%s

Retrieved context:
%s

Does the retrieved context contain information relevant to answering the
farmer's question? Answer with a single word: YES or NO.`

// RelevanceJudge asks the LLM whether retrieved records actually answer
// the query. An unreachable or confused LLM counts as NO: irrelevant
// context reaching the final prompt is worse than falling through to the
// next source.
type RelevanceJudge struct {
	client llm.LLMClient
}

func NewRelevanceJudge(client llm.LLMClient) *RelevanceJudge {
	return &RelevanceJudge{client: client}
}

// Judge reports whether records are relevant to the query.
func (j *RelevanceJudge) Judge(ctx context.Context, query string, records []datatypes.Record) bool {
	if len(records) == 0 {
		return false
	}

	var contextBlock strings.Builder
	for i, rec := range records {
		fmt.Fprintf(&contextBlock, "[%d] %s\n", i+1, rec.Text)
	}

	temp := float32(0.0)
	output, err := j.client.Generate(ctx, fmt.Sprintf(relevancePrompt, query, contextBlock.String()),
		llm.GenerationParams{Temperature: &temp})
	if err != nil {
		slog.Warn("Relevance judge LLM call failed, treating context as irrelevant", "error", err)
		return false
	}

	answer := strings.ToUpper(strings.TrimSpace(output))
	return strings.HasPrefix(answer, "YES")
}
