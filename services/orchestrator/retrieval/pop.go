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
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// PoPRetriever searches the state Package of Practices advisories. The
// filter is state-only: advisories cover many crops per chunk and the crop
// signal lives in the vector space.
type PoPRetriever struct {
	client   *weaviate.Client
	embedder EmbeddingProvider
}

// NewPoPRetriever creates a retriever over the PackageOfPractice class.
func NewPoPRetriever(client *weaviate.Client, embedder EmbeddingProvider) *PoPRetriever {
	return &PoPRetriever{client: client, embedder: embedder}
}

var _ Retriever = (*PoPRetriever)(nil)

// Retrieve returns advisory chunks for (query, state). The Crop filter
// field is ignored.
func (r *PoPRetriever) Retrieve(ctx context.Context, query string, f Filters) ([]datatypes.Record, error) {
	ctx, span := tracer.Start(ctx, "RetrievePoP")
	defer span.End()

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("Failed to embed query for PoP retrieval", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	stateFilter := filters.Where().
		WithPath([]string{"state_code"}).
		WithOperator(filters.Equal).
		WithValueString(f.StateCode)

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "state_code"},
		{Name: "crop"},
		{Name: "section"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName("PackageOfPractice").
		WithFields(fields...).
		WithWhere(stateFilter).
		WithNearVector(r.client.GraphQL().NearVectorArgBuilder().
			WithVector(vector)).
		WithLimit(MaxQARecords).
		Do(ctx)
	if err != nil {
		slog.Error("Failed to search the PackageOfPractice class", "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.PoPQueryResponse](result)
	if err != nil {
		slog.Error("Failed to parse PoP search results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	records := make([]datatypes.Record, 0, len(parsed.Get.PackageOfPractice))
	for _, pop := range parsed.Get.PackageOfPractice {
		records = append(records, datatypes.Record{
			Source: datatypes.SourcePoP,
			Text:   pop.Content,
			Metadata: map[string]any{
				"state_code": pop.StateCode,
				"crop":       pop.Crop,
				"section":    pop.Section,
			},
			Score: pop.Additional.Similarity(),
		})
	}
	slog.Debug("PoP retrieval complete", "count", len(records))
	return records, nil
}
