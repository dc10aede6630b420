// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/pipeline"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/retrieval"
)

// Tool names exposed to the upstream model.
const (
	NameAsk             = "ask_ajrasakha"
	NameGoldenContext   = "get_context_from_golden_dataset"
	NamePoPContext      = "get_context_from_package_of_practices"
	NameReviewedContext = "get_context_from_review_dataset"
	NameSearchFAQ       = "search_faq"
	NameUploadReviewer  = "upload_question_to_reviewer_system"
)

// contextParams is the shared JSON Schema for context retrieval tools.
func contextParams(withCrop bool) map[string]any {
	props := map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "The farmer's question in English",
		},
		"state_code": map[string]any{
			"type":        "string",
			"description": "Two-letter Indian state code, e.g. PB",
		},
	}
	if withCrop {
		props["crop"] = map[string]any{
			"type":        "string",
			"description": "The crop the question is about",
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"query"},
	}
}

// RegisterBuiltins wires the orchestration core into the registry.
//
// # Inputs
//
//   - p: the ask pipeline.
//   - reviewed, golden, pop: the per-source retrievers.
//   - faq: the FAQ-video retriever.
//   - reviewer: the reviewer ticket client.
func RegisterBuiltins(r *Registry, p *pipeline.Pipeline,
	reviewed, golden, pop retrieval.Retriever,
	faq pipeline.VideoSearcher, reviewer pipeline.Uploader) error {

	builtins := []*Tool{
		{
			Name:        NameAsk,
			Description: "Run the full agricultural retrieval cascade for a farmer's question and return a context-enriched prompt. Never returns the final answer.",
			Tag:         "core/ask",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The farmer's question",
					},
				},
				"required": []string{"query"},
			},
			Run: func(ctx context.Context, args json.RawMessage) (any, error) {
				req := &datatypes.AskRequest{}
				if err := json.Unmarshal(args, req); err != nil {
					return nil, fmt.Errorf("invalid ask arguments: %w", err)
				}
				req.EnsureDefaults()
				if err := req.Validate(); err != nil {
					return nil, err
				}
				resp, err := p.Ask(ctx, req)
				if err != nil {
					return nil, err
				}
				return resp.Prompt, nil
			},
		},
		{
			Name:        NameGoldenContext,
			Description: "Retrieve expert-curated golden Q&A records for a question, filtered by state and crop.",
			Tag:         "golden/context",
			Parameters:  contextParams(true),
			Run:         contextHandler(golden),
		},
		{
			Name:        NamePoPContext,
			Description: "Retrieve Package of Practices guidance for a question, filtered by state.",
			Tag:         "pop/context",
			Parameters:  contextParams(false),
			Run:         contextHandler(pop),
		},
		{
			Name:        NameReviewedContext,
			Description: "Retrieve human-reviewed Q&A records for a question, filtered by state and crop.",
			Tag:         "reviewed/context",
			Parameters:  contextParams(true),
			Run:         contextHandler(reviewed),
		},
		{
			Name:        NameSearchFAQ,
			Description: "Search FAQ videos by hybrid lexical and semantic similarity. Returns at most three videos.",
			Tag:         "faq-videos/search",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The farmer's question in English",
					},
					"max_results": map[string]any{
						"type":        "integer",
						"description": "Maximum videos to return, up to 3",
					},
					"min_similarity": map[string]any{
						"type":        "number",
						"description": "Similarity floor between 0 and 1",
					},
				},
				"required": []string{"query"},
			},
			Run: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req datatypes.FAQSearchRequest
				if err := json.Unmarshal(args, &req); err != nil {
					return nil, fmt.Errorf("invalid search_faq arguments: %w", err)
				}
				if err := req.Validate(); err != nil {
					return nil, err
				}
				records, err := faq.Retrieve(ctx, req.Query, req.MaxResults, req.MinSimilarity)
				if err != nil {
					return nil, err
				}
				return datatypes.RecordsResponse{Records: records}, nil
			},
		},
		{
			Name:        NameUploadReviewer,
			Description: "Escalate an unanswerable question to the human reviewer system as a high-priority ticket.",
			Tag:         "reviewed/upload",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question": map[string]any{
						"type":        "string",
						"description": "The question to escalate",
					},
					"state_name": map[string]any{
						"type":        "string",
						"description": "Full state name",
					},
					"crop": map[string]any{
						"type":        "string",
						"description": "The crop the question is about",
					},
					"details": map[string]any{
						"type":                 "object",
						"additionalProperties": map[string]any{"type": "string"},
						"description":          "Optional ticket fields: district, season, domain",
					},
				},
				"required": []string{"question"},
			},
			Run: func(ctx context.Context, args json.RawMessage) (any, error) {
				var req datatypes.ReviewerUploadRequest
				if err := json.Unmarshal(args, &req); err != nil {
					return nil, fmt.Errorf("invalid reviewer arguments: %w", err)
				}
				if err := req.Validate(); err != nil {
					return nil, err
				}
				if err := reviewer.Upload(ctx, req.Question, req.StateName, req.Crop, req.Details); err != nil {
					return nil, err
				}
				return datatypes.StatusResponse{Status: "uploaded"}, nil
			},
		},
	}

	for _, t := range builtins {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// contextHandler adapts a retriever to the tool calling convention.
func contextHandler(r retrieval.Retriever) Handler {
	return func(ctx context.Context, args json.RawMessage) (any, error) {
		var req datatypes.ContextRequest
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("invalid context arguments: %w", err)
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		records, err := r.Retrieve(ctx, req.Query, retrieval.Filters{
			StateCode: req.StateCode,
			Crop:      req.Crop,
		})
		if err != nil {
			return nil, err
		}
		return datatypes.RecordsResponse{Records: records}, nil
	}
}
