// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// Generic GraphQL Response Parser
// =============================================================================

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// This generic function encapsulates the marshal/unmarshal pattern required to
// convert Weaviate's dynamic response (map[string]models.JSONObject) into a
// strongly-typed Go struct. The target type T must have json tags matching
// the expected response shape.
//
// # Type Parameters
//
//   - T: The target struct type with json tags matching the response shape.
//
// # Inputs
//
//   - resp: The GraphQL response from Weaviate client's Do() method.
//
// # Outputs
//
//   - *T: Pointer to the parsed struct.
//   - error: Non-nil if response is nil or parsing fails.
//
// # Example
//
//	resp, err := client.GraphQL().Get().WithClassName("ReviewedQA").Do(ctx)
//	if err != nil { ... }
//
//	parsed, err := ParseGraphQLResponse[ReviewedQAQueryResponse](resp)
//	if err != nil { ... }
//
//	for _, qa := range parsed.Get.ReviewedQA {
//	    fmt.Println(qa.Answer)
//	}
//
// # Limitations
//
//   - Requires the target type to exactly match the expected response structure.
//   - Type mismatches will result in zero values, not errors.
//
// # Assumptions
//
//   - The response Data field is JSON-marshalable.
//   - The target type T has correct json tags.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// =============================================================================
// Common Weaviate Response Types
// =============================================================================

// QueryAdditional carries Weaviate's per-object metadata.
type QueryAdditional struct {
	ID        string   `json:"id"`
	Distance  *float32 `json:"distance"`
	Certainty *float32 `json:"certainty"`
}

// Similarity returns the certainty as a float64 in [0,1], 0 when absent.
func (a QueryAdditional) Similarity() float64 {
	if a.Certainty == nil {
		return 0
	}
	return float64(*a.Certainty)
}

// ReviewedQAQueryResponse represents the response from querying the
// ReviewedQA class.
type ReviewedQAQueryResponse struct {
	Get struct {
		ReviewedQA []ReviewedQAResult `json:"ReviewedQA"`
	} `json:"Get"`
}

// ReviewedQAResult is a single expert-reviewed question/answer pair.
type ReviewedQAResult struct {
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	StateName  string          `json:"state_name"`
	StateCode  string          `json:"state_code"`
	Crop       string          `json:"crop"`
	Additional QueryAdditional `json:"_additional"`
}

// GoldenQAQueryResponse represents the response from querying the
// GoldenQA class.
type GoldenQAQueryResponse struct {
	Get struct {
		GoldenQA []GoldenQAResult `json:"GoldenQA"`
	} `json:"Get"`
}

// GoldenQAResult is a single curated question/answer pair.
type GoldenQAResult struct {
	Question   string          `json:"question"`
	Answer     string          `json:"answer"`
	StateName  string          `json:"state_name"`
	StateCode  string          `json:"state_code"`
	Crop       string          `json:"crop"`
	Additional QueryAdditional `json:"_additional"`
}

// PoPQueryResponse represents the response from querying the
// PackageOfPractice class.
type PoPQueryResponse struct {
	Get struct {
		PackageOfPractice []PoPResult `json:"PackageOfPractice"`
	} `json:"Get"`
}

// PoPResult is a single state advisory chunk.
type PoPResult struct {
	Content    string          `json:"content"`
	StateCode  string          `json:"state_code"`
	Crop       string          `json:"crop"`
	Section    string          `json:"section"`
	Additional QueryAdditional `json:"_additional"`
}

// FAQVideoQueryResponse represents the response from querying the
// FAQVideo class.
type FAQVideoQueryResponse struct {
	Get struct {
		FAQVideo []FAQVideoResult `json:"FAQVideo"`
	} `json:"Get"`
}

// FAQVideoResult is a single FAQ video with its transcript.
type FAQVideoResult struct {
	Title      string          `json:"title"`
	Transcript string          `json:"transcript"`
	VideoURL   string          `json:"video_url"`
	Language   string          `json:"language"`
	Additional QueryAdditional `json:"_additional"`
}

// =============================================================================
// ToMap Methods for Property Structs
// =============================================================================

// ReviewedQAProperties represents the properties for creating a ReviewedQA
// object.
type ReviewedQAProperties struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	StateName string `json:"state_name"`
	StateCode string `json:"state_code"`
	Crop      string `json:"crop"`
	Timestamp int64  `json:"timestamp"`
}

// ToMap converts ReviewedQAProperties to the map format required by
// Weaviate's WithProperties() method.
func (p *ReviewedQAProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"question":   p.Question,
		"answer":     p.Answer,
		"state_name": p.StateName,
		"state_code": p.StateCode,
		"crop":       p.Crop,
		"timestamp":  p.Timestamp,
	}
}

// FAQVideoProperties represents the properties for creating a FAQVideo object.
type FAQVideoProperties struct {
	Title      string `json:"title"`
	Transcript string `json:"transcript"`
	VideoURL   string `json:"video_url"`
	Language   string `json:"language"`
	Timestamp  int64  `json:"timestamp"`
}

// ToMap converts FAQVideoProperties to the map format required by Weaviate's
// WithProperties() method.
func (p *FAQVideoProperties) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"title":      p.Title,
		"transcript": p.Transcript,
		"video_url":  p.VideoURL,
		"language":   p.Language,
		"timestamp":  p.Timestamp,
	}
}
