// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline runs the retrieve-verify-fallback cascade for a single
// farmer question.
//
// # Description
//
// The pipeline is a state machine over *State. After slot extraction a
// guardrail router short-circuits greetings and location-less questions.
// Everything else forks: a video branch searches FAQ videos while the data
// branch walks the source cascade (reviewed answers, then golden answers,
// then packages of practice, then the human reviewer system). A barrier
// node joins the two branches before the final prompt is assembled.
//
// # Limitations
//
// Nodes never fail the request. Retrieval and LLM errors degrade that
// node's contribution to empty records or a false flag and the cascade
// continues.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/graph"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/retrieval"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
)

var tracer = otel.Tracer("ajrasakha.orchestrator.pipeline")

// Node names of the orchestration graph.
const (
	nodeIntentExtractor    = "intent_extractor"
	nodeHandleGreeting     = "handle_greeting"
	nodeHandleMissingState = "handle_missing_state"
	nodeFork               = "fork"
	nodeSearchVideo        = "search_video"
	nodeVerifyVideo        = "verify_video"
	nodeSearchReviewed     = "search_reviewed"
	nodeMarkReviewedHigh   = "mark_reviewed_high"
	nodeVerifyReviewed     = "verify_reviewed"
	nodeSearchGolden       = "search_golden"
	nodeMarkGoldenHigh     = "mark_golden_high"
	nodeVerifyGolden       = "verify_golden"
	nodeSearchPoP          = "search_pop"
	nodeVerifyPoP          = "verify_pop"
	nodeUploadToReviewer   = "upload_to_reviewer"
	nodeMarkDataDone       = "mark_data_done"
	nodeSynchronizer       = "synchronizer"
	nodeFormatFinalPrompt  = "format_final_prompt"
)

const (
	greetingResponse = "Namaste! I am Ajrasakha, your agricultural assistant. Ask me anything about your crops, pests, diseases, or fertilizers."

	missingStateResponse = "To give advice that fits your local conditions I need to know where you farm. Please tell me your state, and your district if you know it."
)

// Extractor produces a slot bundle from a raw query.
type Extractor interface {
	Extract(ctx context.Context, query string) datatypes.Slots
}

// Judge decides whether retrieved records answer the query.
type Judge interface {
	Judge(ctx context.Context, query string, records []datatypes.Record) bool
}

// Validator canonicalizes a crop name against a source's allow list. The
// second return is false when the crop is empty or not covered; the cascade
// skips the source on false.
type Validator interface {
	Validate(ctx context.Context, source statecrops.SourceKey, stateCode, crop string) (string, bool)
}

// Uploader files unanswerable questions with the reviewer system. The
// details map carries the optional ticket fields (district, season, domain).
type Uploader interface {
	Upload(ctx context.Context, question, stateName, crop string, details map[string]string) error
}

// VideoSearcher retrieves FAQ-video records for the video branch.
type VideoSearcher interface {
	Retrieve(ctx context.Context, query string, maxResults int, minSimilarity float64) ([]datatypes.Record, error)
}

var (
	_ Extractor     = (*SlotExtractor)(nil)
	_ Judge         = (*RelevanceJudge)(nil)
	_ Validator     = (*CropValidator)(nil)
	_ Uploader      = (*ReviewerClient)(nil)
	_ VideoSearcher = (*retrieval.FAQVideoRetriever)(nil)
)

// Deps bundles everything the pipeline needs. All fields are required.
type Deps struct {
	Extractor Extractor
	Judge     Judge
	Validator Validator
	Reviewer  Uploader
	Store     *statecrops.Store

	Reviewed retrieval.Retriever
	Golden   retrieval.Retriever
	PoP      retrieval.Retriever
	Video    VideoSearcher
}

// Pipeline owns the orchestration graph for ask requests.
type Pipeline struct {
	deps    Deps
	machine *graph.Machine[*State]
}

// NewPipeline builds the orchestration graph. It fails only on a
// malformed graph definition, which is a programming error.
func NewPipeline(deps Deps) (*Pipeline, error) {
	p := &Pipeline{deps: deps}

	machine, err := graph.NewBuilder[*State]("ask").
		Start(nodeIntentExtractor).
		AddNode(nodeIntentExtractor, p.extractSlots, p.routeGuardrail).
		AddNode(nodeHandleGreeting, p.handleGreeting, nil).
		AddNode(nodeHandleMissingState, p.handleMissingState, nil).
		AddNode(nodeFork, p.fork, graph.StaticRoute[*State](nodeSearchReviewed)).
		AddNode(nodeSearchVideo, p.searchVideo, graph.StaticRoute[*State](nodeVerifyVideo)).
		AddNode(nodeVerifyVideo, p.verifyVideo, nil).
		AddNode(nodeSearchReviewed, p.searchReviewed,
			cascadeRoute(func(s *State) *SourceSlot { return &s.Reviewed },
				nodeMarkReviewedHigh, nodeVerifyReviewed, nodeSearchGolden)).
		AddNode(nodeMarkReviewedHigh, markHigh(func(s *State) *SourceSlot { return &s.Reviewed }),
			graph.StaticRoute[*State](nodeMarkDataDone)).
		AddNode(nodeVerifyReviewed, p.verify(func(s *State) *SourceSlot { return &s.Reviewed }),
			verifiedRoute(func(s *State) *SourceSlot { return &s.Reviewed }, nodeSearchGolden)).
		AddNode(nodeSearchGolden, p.searchGolden,
			cascadeRoute(func(s *State) *SourceSlot { return &s.Golden },
				nodeMarkGoldenHigh, nodeVerifyGolden, nodeSearchPoP)).
		AddNode(nodeMarkGoldenHigh, markHigh(func(s *State) *SourceSlot { return &s.Golden }),
			graph.StaticRoute[*State](nodeMarkDataDone)).
		AddNode(nodeVerifyGolden, p.verify(func(s *State) *SourceSlot { return &s.Golden }),
			verifiedRoute(func(s *State) *SourceSlot { return &s.Golden }, nodeSearchPoP)).
		AddNode(nodeSearchPoP, p.searchPoP, p.routeAfterPoPSearch).
		AddNode(nodeVerifyPoP, p.verify(func(s *State) *SourceSlot { return &s.PoP }),
			verifiedRoute(func(s *State) *SourceSlot { return &s.PoP }, nodeUploadToReviewer)).
		AddNode(nodeUploadToReviewer, p.uploadToReviewer, graph.StaticRoute[*State](nodeMarkDataDone)).
		AddNode(nodeMarkDataDone, markDataDone, graph.StaticRoute[*State](nodeSynchronizer)).
		AddNode(nodeSynchronizer, synchronize, routeAfterBarrier).
		AddNode(nodeFormatFinalPrompt, formatFinalPrompt, nil).
		Build()
	if err != nil {
		return nil, err
	}

	p.machine = machine
	return p, nil
}

// Ask runs one question through the graph and returns the assembled
// prompt for the downstream chat model.
func (p *Pipeline) Ask(ctx context.Context, req *datatypes.AskRequest) (*datatypes.AskResponse, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Ask")
	defer span.End()

	start := time.Now()
	state := NewState(req.RequestID, req.Query)

	final, err := p.machine.Run(ctx, state)
	if err != nil {
		return nil, err
	}

	resp := datatypes.NewAskResponse(req.RequestID, final.FinalPrompt, final.UploadedToReviewer)
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}

// ====== Guardrail ======

func (p *Pipeline) extractSlots(ctx context.Context, s *State) *State {
	s.Slots = p.deps.Extractor.Extract(ctx, s.Query)
	slog.Info("Extracted slots",
		"request_id", s.RequestID,
		"intent", s.Slots.Intent,
		"state_code", s.Slots.StateCode,
		"crop", s.Slots.CropName)
	return s
}

func (p *Pipeline) routeGuardrail(s *State) string {
	switch {
	case s.Slots.Intent == datatypes.IntentGreeting:
		return nodeHandleGreeting
	case !s.Slots.HasLocation():
		return nodeHandleMissingState
	default:
		return nodeFork
	}
}

func (p *Pipeline) handleGreeting(ctx context.Context, s *State) *State {
	s.FinalPrompt = greetingResponse
	return s
}

func (p *Pipeline) handleMissingState(ctx context.Context, s *State) *State {
	s.FinalPrompt = missingStateResponse
	return s
}

// ====== Fork and Video Branch ======

// fork launches the video branch on its own goroutine. The branch owns
// the video fields of State and signals completion by closing videoDone;
// the data branch continues inline.
func (p *Pipeline) fork(ctx context.Context, s *State) *State {
	go func() {
		defer close(s.videoDone)
		if _, err := p.machine.RunFrom(ctx, nodeSearchVideo, s); err != nil {
			slog.Warn("Video branch aborted", "request_id", s.RequestID, "error", err)
			s.VideoSearchDone = true
		}
	}()
	return s
}

func (p *Pipeline) searchVideo(ctx context.Context, s *State) *State {
	records, err := p.deps.Video.Retrieve(ctx, s.Query, retrieval.MaxFAQRecords, retrieval.FAQScoreFloor)
	if err != nil {
		slog.Warn("FAQ video search failed", "request_id", s.RequestID, "error", err)
		return s
	}
	s.VideoRecords = records
	return s
}

func (p *Pipeline) verifyVideo(ctx context.Context, s *State) *State {
	if len(s.VideoRecords) > 0 {
		s.VideoRelevant = p.deps.Judge.Judge(ctx, s.Query, s.VideoRecords)
	}
	s.VideoSearchDone = true
	return s
}

// ====== Data Cascade ======

func (p *Pipeline) searchReviewed(ctx context.Context, s *State) *State {
	p.searchQASource(ctx, s, statecrops.SourceReviewed, p.deps.Reviewed, &s.Reviewed)
	return s
}

func (p *Pipeline) searchGolden(ctx context.Context, s *State) *State {
	p.searchQASource(ctx, s, statecrops.SourceGolden, p.deps.Golden, &s.Golden)
	return s
}

// searchQASource runs one QA source of the cascade: allow-list check, crop
// validation, then crop-filtered retrieval. A state outside the allow-list
// or a crop the validator cannot place skips the source entirely, leaving
// Searched false so the cascade falls through. Retrieval errors leave the
// slot searched but empty.
func (p *Pipeline) searchQASource(ctx context.Context, s *State, source statecrops.SourceKey, r retrieval.Retriever, slot *SourceSlot) {
	manifest := p.deps.Store.Current()
	if !manifest.SupportsState(source, s.Slots.StateCode) {
		slog.Debug("State not covered by source, skipping",
			"request_id", s.RequestID, "source", source, "state_code", s.Slots.StateCode)
		return
	}

	crop, ok := p.deps.Validator.Validate(ctx, source, s.Slots.StateCode, s.Slots.CropName)
	if !ok {
		slog.Debug("Crop not covered by source, skipping",
			"request_id", s.RequestID, "source", source,
			"state_code", s.Slots.StateCode, "crop", s.Slots.CropName)
		return
	}
	slot.Crop = crop
	slot.Searched = true

	records, err := r.Retrieve(ctx, s.Query, retrieval.Filters{
		StateCode: s.Slots.StateCode,
		Crop:      slot.Crop,
	})
	if err != nil {
		slog.Warn("Source retrieval failed, cascading past it",
			"request_id", s.RequestID, "source", source, "error", err)
		return
	}
	slot.Records = records
}

// searchPoP is filtered by state only: advisory chunks cover many crops
// and the crop signal lives in the vector space, so no crop validation
// gates this source.
func (p *Pipeline) searchPoP(ctx context.Context, s *State) *State {
	manifest := p.deps.Store.Current()
	if !manifest.SupportsState(statecrops.SourcePoP, s.Slots.StateCode) {
		slog.Debug("State not covered by PoP, skipping",
			"request_id", s.RequestID, "state_code", s.Slots.StateCode)
		return s
	}
	s.PoP.Searched = true

	records, err := p.deps.PoP.Retrieve(ctx, s.Query, retrieval.Filters{
		StateCode: s.Slots.StateCode,
	})
	if err != nil {
		slog.Warn("PoP retrieval failed, cascading past it",
			"request_id", s.RequestID, "error", err)
		return s
	}
	s.PoP.Records = records
	return s
}

// cascadeRoute applies the score thresholds after a QA-source search.
// Strictly above the high-confidence threshold skips verification; within
// the verify band the relevance judge decides; at or below it the cascade
// falls through to the next source.
func cascadeRoute(slot func(*State) *SourceSlot, high, verify, next string) graph.RouterFunc[*State] {
	return func(s *State) string {
		score := datatypes.MaxScore(slot(s).Records)
		switch {
		case score > HighConfidenceThreshold:
			return high
		case score > VerifyThreshold:
			return verify
		default:
			return next
		}
	}
}

// markHigh records a high-confidence hit without a judge call.
func markHigh(slot func(*State) *SourceSlot) graph.NodeFunc[*State] {
	return func(ctx context.Context, s *State) *State {
		slot(s).Relevant = setFlag(true)
		return s
	}
}

// verify asks the relevance judge about one source's records.
func (p *Pipeline) verify(slot func(*State) *SourceSlot) graph.NodeFunc[*State] {
	return func(ctx context.Context, s *State) *State {
		slot(s).Relevant = setFlag(p.deps.Judge.Judge(ctx, s.Query, slot(s).Records))
		return s
	}
}

// verifiedRoute settles the cascade on a YES verdict and falls through on NO.
func verifiedRoute(slot func(*State) *SourceSlot, next string) graph.RouterFunc[*State] {
	return func(s *State) string {
		if flag := slot(s).Relevant; flag != nil && *flag {
			return nodeMarkDataDone
		}
		return next
	}
}

// routeAfterPoPSearch sends non-empty PoP results to verification; an
// empty result means no source can answer and the question escalates.
func (p *Pipeline) routeAfterPoPSearch(s *State) string {
	if len(s.PoP.Records) > 0 {
		return nodeVerifyPoP
	}
	return nodeUploadToReviewer
}

func (p *Pipeline) uploadToReviewer(ctx context.Context, s *State) *State {
	details := map[string]string{
		"domain": string(s.Slots.Intent),
	}
	err := p.deps.Reviewer.Upload(ctx, s.Query, s.Slots.StateName, s.Slots.CropName, details)
	if err != nil {
		slog.Error("Reviewer upload failed", "request_id", s.RequestID, "error", err)
		return s
	}
	s.UploadedToReviewer = true
	return s
}

func markDataDone(ctx context.Context, s *State) *State {
	s.DataSearchDone = true
	return s
}

// ====== Barrier and Final Prompt ======

// synchronize blocks the data branch until the video branch has signalled
// completion. Context cancellation unblocks it; the machine's own context
// check then terminates the run.
func synchronize(ctx context.Context, s *State) *State {
	select {
	case <-s.videoDone:
	case <-ctx.Done():
	}
	return s
}

func routeAfterBarrier(s *State) string {
	if s.VideoSearchDone && s.DataSearchDone {
		return nodeFormatFinalPrompt
	}
	return nodeSynchronizer
}

func formatFinalPrompt(ctx context.Context, s *State) *State {
	s.FinalPrompt = BuildFinalPrompt(s)
	return s
}
