// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
)

const (
	// HighConfidenceThreshold short-circuits verification: S > 0.8 marks
	// the source relevant without a judge call.
	HighConfidenceThreshold = 0.8

	// VerifyThreshold is the floor for judge-verified hits: 0.7 < S <= 0.8
	// goes to the relevance judge, S <= 0.7 falls through.
	VerifyThreshold = 0.7
)

// SourceSlot holds one backend's contribution to the orchestration state.
// Relevant is a tri-state: nil until the source has been retrieved and
// judged, then the verdict. It is set only after Records is populated.
type SourceSlot struct {
	Records  []datatypes.Record
	Relevant *bool
	// Searched is set when the source's backend was actually queried.
	// It stays false when the cascade skipped the source, whether because
	// an earlier source settled, the state is not in the allow-list, or
	// crop validation failed.
	Searched bool
	// Crop is the allow-list-canonicalized crop used for this source's
	// retrieval filter.
	Crop string
}

// Superseded reports whether the cascade passed this slot by without
// querying its backend.
func (s *SourceSlot) Superseded() bool {
	return !s.Searched
}

// State is the per-request orchestration state threaded through the graph.
// It is owned by exactly one request. The video branch and the data branch
// write disjoint fields concurrently.
type State struct {
	RequestID string
	Query     string

	Slots datatypes.Slots

	Reviewed SourceSlot
	Golden   SourceSlot
	PoP      SourceSlot

	VideoRecords  []datatypes.Record
	VideoRelevant bool

	VideoSearchDone    bool
	DataSearchDone     bool
	UploadedToReviewer bool

	FinalPrompt string

	// videoDone is closed by the video branch; the synchronizer blocks on
	// it to implement the barrier.
	videoDone chan struct{}
}

// NewState creates the orchestration state for one request.
func NewState(requestID, query string) *State {
	return &State{
		RequestID: requestID,
		Query:     query,
		videoDone: make(chan struct{}),
	}
}

func setFlag(v bool) *bool {
	return &v
}
