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

// ReviewedRetriever searches the expert-reviewed QA store.
//
// # Description
//
// Embeds the query and runs a nearVector search over the ReviewedQA class
// under a {state_code, crop} filter, keeping at most MaxQARecords results
// above the QAScoreFloor certainty.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying Weaviate client handles
// connection pooling.
type ReviewedRetriever struct {
	client   *weaviate.Client
	embedder EmbeddingProvider
}

// NewReviewedRetriever creates a retriever over the ReviewedQA class.
func NewReviewedRetriever(client *weaviate.Client, embedder EmbeddingProvider) *ReviewedRetriever {
	return &ReviewedRetriever{client: client, embedder: embedder}
}

var _ Retriever = (*ReviewedRetriever)(nil)

// Retrieve returns reviewed answers for (query, state, crop).
//
// # Inputs
//
//   - ctx: bounds the embedding call and the search.
//   - query: the canonical English question.
//   - f: state code and crop; both are applied as equality filters.
//
// # Outputs
//
//   - []datatypes.Record: at most 5 records with certainty above 0.7,
//     highest first.
//   - error: non-nil on embedding or search failure; already logged.
func (r *ReviewedRetriever) Retrieve(ctx context.Context, query string, f Filters) ([]datatypes.Record, error) {
	ctx, span := tracer.Start(ctx, "RetrieveReviewed")
	defer span.End()

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("Failed to embed query for reviewed retrieval", "error", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	result, err := r.client.GraphQL().Get().
		WithClassName("ReviewedQA").
		WithFields(qaFields()...).
		WithWhere(stateCropFilter(f)).
		WithNearVector(r.client.GraphQL().NearVectorArgBuilder().
			WithVector(vector).
			WithCertainty(QAScoreFloor)).
		WithLimit(MaxQARecords).
		Do(ctx)
	if err != nil {
		slog.Error("Failed to search the ReviewedQA class", "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ReviewedQAQueryResponse](result)
	if err != nil {
		slog.Error("Failed to parse reviewed search results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	records := make([]datatypes.Record, 0, len(parsed.Get.ReviewedQA))
	for _, qa := range parsed.Get.ReviewedQA {
		records = append(records, datatypes.Record{
			Source: datatypes.SourceReviewed,
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
	slog.Debug("Reviewed retrieval complete", "count", len(records))
	return records, nil
}

// qaFields is the field set shared by the reviewed and golden searches.
func qaFields() []graphql.Field {
	// Certainty (always [0,1]) rather than distance, which varies by metric.
	return []graphql.Field{
		{Name: "question"},
		{Name: "answer"},
		{Name: "state_name"},
		{Name: "state_code"},
		{Name: "crop"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}
}

// stateCropFilter builds the equality filter for (state_code, crop).
func stateCropFilter(f Filters) *filters.WhereBuilder {
	stateFilter := filters.Where().
		WithPath([]string{"state_code"}).
		WithOperator(filters.Equal).
		WithValueString(f.StateCode)

	if f.Crop == "" {
		return stateFilter
	}

	cropFilter := filters.Where().
		WithPath([]string{"crop"}).
		WithOperator(filters.Equal).
		WithValueString(f.Crop)

	return filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{stateFilter, cropFilter})
}
