// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/annadata-ai/ajrasakha/pkg/retry"
)

// reviewerTicket is the payload the reviewer system expects for a new
// escalated question.
type reviewerTicket struct {
	Question string            `json:"question"`
	Priority string            `json:"priority"`
	Source   string            `json:"source"`
	Details  map[string]string `json:"details"`
	Context  string            `json:"context"`
}

// ReviewerClient files questions the cascade could not answer with the
// human reviewer system.
type ReviewerClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewReviewerClient(endpoint string) *ReviewerClient {
	return &ReviewerClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Upload files the question as a high-priority ticket. The reviewer system
// signals acceptance with 201 Created; anything else is an error.
//
// The details map supplies the optional ticket fields (district, season,
// domain); unknown keys are dropped so the ticket shape stays fixed. The
// explicit stateName and crop arguments win over entries in details.
func (r *ReviewerClient) Upload(ctx context.Context, question, stateName, crop string, details map[string]string) error {
	merged := map[string]string{
		"state":    "",
		"district": "",
		"crop":     "",
		"season":   "",
		"domain":   "",
	}
	for key, value := range details {
		if _, known := merged[key]; known {
			merged[key] = value
		}
	}
	if stateName != "" {
		merged["state"] = stateName
	}
	if crop != "" {
		merged["crop"] = crop
	}

	ticket := reviewerTicket{
		Question: question,
		Priority: "high",
		Source:   "ajrasakha-core",
		Details:  merged,
		Context:  "",
	}

	body, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to encode reviewer ticket: %w", err)
	}

	return retry.Do(ctx, "reviewer upload", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build reviewer request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("reviewer request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return retry.NewUpstreamError(resp.StatusCode,
				fmt.Sprintf("reviewer system rejected ticket: %s", string(msg)))
		}
		return nil
	})
}
