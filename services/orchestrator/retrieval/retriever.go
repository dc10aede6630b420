// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval implements the similarity-search adapters over the four
// context backends: the reviewed QA store, the golden QA store, the state
// Package of Practices advisories, and the FAQ video library.
//
// Adapters share a failure contract: connectivity or encoding errors are
// logged and returned; callers in the orchestration graph degrade to an
// empty result and continue the cascade.
package retrieval

import (
	"context"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ajrasakha.orchestrator.retrieval")

const (
	// MaxQARecords caps reviewed/golden/PoP retrieval.
	MaxQARecords = 5

	// QAScoreFloor is the minimum certainty for reviewed/golden hits.
	QAScoreFloor = 0.7

	// MaxFAQRecords caps FAQ video retrieval.
	MaxFAQRecords = 3

	// FAQScoreFloor is the minimum hybrid score for FAQ video hits.
	FAQScoreFloor = 0.3
)

// EmbeddingProvider computes a vector for query text. Implemented by
// datatypes.Embedder; faked in tests.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Filters narrows a retrieval to a state and optionally a crop.
type Filters struct {
	StateCode string
	Crop      string
}

// Retriever is the shared adapter contract for the QA-style backends.
type Retriever interface {
	Retrieve(ctx context.Context, query string, f Filters) ([]datatypes.Record, error)
}
