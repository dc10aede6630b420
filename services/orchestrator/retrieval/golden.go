// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// GoldenRetriever searches the curated golden QA store. Same protocol as
// the reviewed store: {state_code, crop} filter, at most MaxQARecords
// above QAScoreFloor.
type GoldenRetriever struct {
	client   *weaviate.Client
	embedder EmbeddingProvider
}

// NewGoldenRetriever creates a retriever over the GoldenQA class.
func NewGoldenRetriever(client *weaviate.Client, embedder EmbeddingProvider) *GoldenRetriever {
	return &GoldenRetriever{client: client, embedder: embedder}
}

var _ Retriever = (*GoldenRetriever)(nil)

// Retrieve returns golden answers for (query, state, crop).
func (r *GoldenRetriever) Retrieve(ctx context.Context, query string, f Filters) ([]datatypes.Record, error) {
	ctx, span := tracer.Start(ctx, "RetrieveGolden")
	defer span.End()

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("Failed to embed query for golden retrieval", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	result, err := r.client.GraphQL().Get().
		WithClassName("GoldenQA").
		WithFields(qaFields()...).
		WithWhere(stateCropFilter(f)).
		WithNearVector(r.client.GraphQL().NearVectorArgBuilder().
			WithVector(vector).
			WithCertainty(QAScoreFloor)).
		WithLimit(MaxQARecords).
		Do(ctx)
	if err != nil {
		slog.Error("Failed to search the GoldenQA class", "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.GoldenQAQueryResponse](result)
	if err != nil {
		slog.Error("Failed to parse golden search results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	records := make([]datatypes.Record, 0, len(parsed.Get.GoldenQA))
	for _, qa := range parsed.Get.GoldenQA {
		records = append(records, datatypes.Record{
			Source: datatypes.SourceGolden,
			Text:   qa.Answer,
			Metadata: map[string]any{
				"question":   qa.Question,
				"state_name": qa.StateName,
				"state_code": qa.StateCode,
				"crop":       qa.Crop,
			},
			Score: qa.Additional.Similarity(),
		})
	}
	slog.Debug("Golden retrieval complete", "count", len(records))
	return records, nil
}
