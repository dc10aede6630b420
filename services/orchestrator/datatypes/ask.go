// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	// MaxQuestionBytes is the maximum size of a single farmer question.
	MaxQuestionBytes = 32 * 1024 // 32KB
)

// askValidate is the validator instance for ask/tool datatypes.
var askValidate *validator.Validate

func init() {
	askValidate = validator.New()
	_ = askValidate.RegisterValidation("maxbytes", validateQuestionBytes)
}

// validateQuestionBytes enforces the byte (not rune) length cap on question
// fields to keep oversized payloads out of the extraction LLM.
func validateQuestionBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQuestionBytes
}

func generateUUID() string {
	return uuid.New().String()
}

// =============================================================================
// Ask Request/Response Types
// =============================================================================

// AskRequest is the body for POST /v1/ask, the HTTP face of the
// ask_ajrasakha tool.
//
// # Fields
//
//   - RequestID: unique identifier for tracing (UUID v4). Generated
//     server-side when absent.
//   - Timestamp: Unix milliseconds (UTC) when the request was created.
//   - Query: the farmer's question, canonical English, at most 32KB.
//
// # Validation
//
//   - Query: required, max 32768 bytes.
//   - RequestID: uuid4 when provided.
type AskRequest struct {
	RequestID string `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"`
	Query     string `json:"query" validate:"required,maxbytes"`
}

// Validate validates the AskRequest fields after JSON binding.
func (r *AskRequest) Validate() error {
	return askValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp when the client omitted
// them, so every request is traceable.
func (r *AskRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = generateUUID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// AskResponse carries the assembled prompt back to the caller. The prompt is
// the product of the orchestration graph; it is never the final answer.
type AskResponse struct {
	ResponseID         string `json:"response_id"`
	RequestID          string `json:"request_id"`
	Timestamp          int64  `json:"timestamp"`
	Prompt             string `json:"prompt"`
	UploadedToReviewer bool   `json:"uploaded_to_reviewer"`
	ProcessingTimeMs   int64  `json:"processing_time_ms,omitempty"`
}

// NewAskResponse creates an AskResponse with a generated ID and timestamp.
func NewAskResponse(requestID, prompt string, uploaded bool) *AskResponse {
	return &AskResponse{
		ResponseID:         generateUUID(),
		RequestID:          requestID,
		Timestamp:          time.Now().UnixMilli(),
		Prompt:             prompt,
		UploadedToReviewer: uploaded,
	}
}

// =============================================================================
// Retrieval Sub-Tool Request Types
// =============================================================================

// ContextRequest is the shared body for the dataset context tools
// (golden, reviewed, package-of-practices).
type ContextRequest struct {
	Query     string `json:"query" validate:"required,maxbytes"`
	StateCode string `json:"state_code" validate:"omitempty,len=2,uppercase"`
	Crop      string `json:"crop"`
}

// Validate validates the ContextRequest fields after JSON binding.
func (r *ContextRequest) Validate() error {
	return askValidate.Struct(r)
}

// FAQSearchRequest is the body for the search_faq tool.
type FAQSearchRequest struct {
	Query         string  `json:"query" validate:"required,maxbytes"`
	MaxResults    int     `json:"max_results" validate:"gte=0,lte=3"`
	MinSimilarity float64 `json:"min_similarity" validate:"gte=0,lte=1"`
}

// Validate validates the FAQSearchRequest fields after JSON binding.
func (r *FAQSearchRequest) Validate() error {
	return askValidate.Struct(r)
}

// ReviewerUploadRequest is the body for upload_question_to_reviewer_system.
type ReviewerUploadRequest struct {
	Question  string            `json:"question" validate:"required,maxbytes"`
	StateName string            `json:"state_name"`
	Crop      string            `json:"crop"`
	Details   map[string]string `json:"details"`
}

// Validate validates the ReviewerUploadRequest fields after JSON binding.
func (r *ReviewerUploadRequest) Validate() error {
	return askValidate.Struct(r)
}

// RecordsResponse is the common response wrapper for retrieval sub-tools.
type RecordsResponse struct {
	Records []Record `json:"records"`
}

// StatusResponse is the response wrapper for the reviewer-upload tool.
type StatusResponse struct {
	Status string `json:"status"`
}
