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
	"sort"
	"sync/atomic"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

const (
	// tfidfWeight and embedWeight mix the lexical and semantic halves of
	// the hybrid FAQ score.
	tfidfWeight = 0.3
	embedWeight = 0.7

	// faqCandidateLimit is how many semantic candidates to pull before
	// hybrid re-ranking.
	faqCandidateLimit = 10

	// faqIndexScanLimit bounds the corpus scan when building the lexical
	// index.
	faqIndexScanLimit = 50000
)

// FAQVideoRetriever searches the FAQ video library.
//
// # Description
//
// Runs a hybrid search: semantic candidates come from a nearVector query
// over the FAQVideo class, then each candidate's title+transcript TF-IDF
// score is mixed in as 0.3*tfidf + 0.7*certainty. When the embedder is
// down the retriever degrades to pure TF-IDF over the in-memory index, so
// the video branch still produces hits.
//
// # Thread Safety
//
// Safe for concurrent use; the lexical index is swapped atomically on
// reload.
type FAQVideoRetriever struct {
	client   *weaviate.Client
	embedder EmbeddingProvider
	index    atomic.Pointer[TFIDFIndex]
}

// NewFAQVideoRetriever creates the retriever with an empty lexical index.
// Call ReloadIndex before first use to populate it.
func NewFAQVideoRetriever(client *weaviate.Client, embedder EmbeddingProvider) *FAQVideoRetriever {
	r := &FAQVideoRetriever{client: client, embedder: embedder}
	r.index.Store(NewTFIDFIndex())
	return r
}

// ReloadIndex rebuilds the lexical index from the FAQVideo class.
func (r *FAQVideoRetriever) ReloadIndex(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "ReloadFAQIndex")
	defer span.End()

	result, err := r.client.GraphQL().Get().
		WithClassName("FAQVideo").
		WithFields(faqFields()...).
		WithLimit(faqIndexScanLimit).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan the FAQVideo class: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.FAQVideoQueryResponse](result)
	if err != nil {
		return fmt.Errorf("failed to parse the FAQVideo scan: %w", err)
	}

	index := NewTFIDFIndex()
	for _, v := range parsed.Get.FAQVideo {
		index.Add(v.VideoURL, v.Title+" "+v.Transcript)
	}
	r.index.Store(index)
	slog.Info("Rebuilt FAQ video lexical index", "videos", index.Len())
	return nil
}

// Retrieve returns FAQ videos for query.
//
// # Inputs
//
//   - ctx: bounds the embedding call and the search.
//   - query: the canonical English question.
//   - maxResults: cap on hits; 0 or negative means MaxFAQRecords, values
//     above MaxFAQRecords are clamped.
//   - minSimilarity: hybrid score floor; 0 means FAQScoreFloor.
//
// # Outputs
//
//   - []datatypes.Record: hybrid-ranked hits, highest first.
//   - error: non-nil only when both the semantic and lexical paths failed.
func (r *FAQVideoRetriever) Retrieve(ctx context.Context, query string, maxResults int, minSimilarity float64) ([]datatypes.Record, error) {
	ctx, span := tracer.Start(ctx, "RetrieveFAQVideo")
	defer span.End()

	if maxResults <= 0 || maxResults > MaxFAQRecords {
		maxResults = MaxFAQRecords
	}
	if minSimilarity <= 0 {
		minSimilarity = FAQScoreFloor
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("Embedder unavailable, falling back to lexical FAQ search", "error", err)
		return r.lexicalOnly(ctx, query, maxResults, minSimilarity)
	}

	result, err := r.client.GraphQL().Get().
		WithClassName("FAQVideo").
		WithFields(faqFields()...).
		WithNearVector(r.client.GraphQL().NearVectorArgBuilder().
			WithVector(vector)).
		WithLimit(faqCandidateLimit).
		Do(ctx)
	if err != nil {
		slog.Error("Failed to search the FAQVideo class", "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.FAQVideoQueryResponse](result)
	if err != nil {
		slog.Error("Failed to parse FAQ video search results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	index := r.index.Load()
	records := make([]datatypes.Record, 0, len(parsed.Get.FAQVideo))
	for _, v := range parsed.Get.FAQVideo {
		lexical := index.Score(query, v.VideoURL)
		hybrid := tfidfWeight*lexical + embedWeight*v.Additional.Similarity()
		if hybrid < minSimilarity {
			continue
		}
		records = append(records, videoRecord(v.Title, v.VideoURL, v.Language, v.Transcript, hybrid))
	}

	sort.Slice(records, func(a, b int) bool { return records[a].Score > records[b].Score })
	if len(records) > maxResults {
		records = records[:maxResults]
	}
	slog.Debug("FAQ video retrieval complete", "count", len(records))
	return records, nil
}

// lexicalOnly serves hits from the in-memory index when embeddings are
// unavailable. Hybrid weighting does not apply; the raw TF-IDF score is
// the final score.
func (r *FAQVideoRetriever) lexicalOnly(ctx context.Context, query string, maxResults int, minSimilarity float64) ([]datatypes.Record, error) {
	_, span := tracer.Start(ctx, "RetrieveFAQVideoLexical")
	defer span.End()

	index := r.index.Load()
	hits := index.Search(query, maxResults)

	records := make([]datatypes.Record, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < minSimilarity {
			continue
		}
		records = append(records, videoRecord("", hit.Key, "", "", hit.Score))
	}
	return records, nil
}

func videoRecord(title, url, language, transcript string, score float64) datatypes.Record {
	return datatypes.Record{
		Source: datatypes.SourceVideo,
		Text:   title,
		Metadata: map[string]any{
			"video_url":  url,
			"language":   language,
			"transcript": transcript,
		},
		Score: score,
	}
}

func faqFields() []graphql.Field {
	return []graphql.Field{
		{Name: "title"},
		{Name: "transcript"},
		{Name: "video_url"},
		{Name: "language"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}
}
