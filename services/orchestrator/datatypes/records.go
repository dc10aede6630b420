// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// Source identifies the backend a record was retrieved from. The data
// cascade consults them in strict priority order REVIEWED > GOLDEN > POP;
// VIDEO runs on its own branch.
type Source string

const (
	SourceReviewed Source = "REVIEWED"
	SourceGolden   Source = "GOLDEN"
	SourcePoP      Source = "POP"
	SourceVideo    Source = "VIDEO"
)

// Record is a single retrieved context item. Immutable after retrieval.
//
// # Fields
//
//   - Source: which backend produced the record.
//   - Text: the answer or advisory text to place into the prompt context.
//   - Metadata: backend-specific fields (question, crop, state, video url).
//   - Score: similarity in [0,1]; Weaviate certainty for vector hits,
//     hybrid score for FAQ videos.
type Record struct {
	Source   Source         `json:"source"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"similarity_score"`
}

// MaxScore returns the highest similarity score in records, or 0 for an
// empty slice.
func MaxScore(records []Record) float64 {
	var max float64
	for _, r := range records {
		if r.Score > max {
			max = r.Score
		}
	}
	return max
}
