// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/annadata-ai/ajrasakha/pkg/retry"
)

type EmbeddingRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type EmbeddingResponse struct {
	Id        string    `json:"id"`
	Timestamp int       `json:"timestamp"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
	Dim       int       `json:"dim"`
}

// Embedder converts query text into vectors via the embedding sidecar.
//
// The service URL and model name are fixed at construction so that
// environment is read once at startup rather than per call.
type Embedder struct {
	serviceURL string
	modelName  string
	httpClient *http.Client
}

// NewEmbedder builds an Embedder against the given embedding service URL.
// modelName may be empty, in which case the sidecar's default model is used.
func NewEmbedder(serviceURL, modelName string) *Embedder {
	return &Embedder{
		serviceURL: serviceURL,
		modelName:  modelName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Embed requests a vector for text.
//
// # Description
//
//	POSTs {text, model} to the embedding service and returns the vector.
//	Transient failures (network, 5xx, 429) are retried with the shared
//	backoff policy; any other status surfaces immediately.
//
// # Inputs
//
//   - ctx: bounds the call including retries.
//   - text: the query text to embed.
//
// # Outputs
//
//   - []float32: the embedding vector.
//   - error: non-nil when the service is unreachable or returns non-200.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(EmbeddingRequest{Text: text, Model: e.modelName})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal the embedding request: %w", err)
	}

	var vector []float32
	err = retry.Do(ctx, "embed", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.serviceURL,
			bytes.NewReader(reqBody))
		if err != nil {
			return fmt.Errorf("failed to setup a new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to make the request to the embedding service: %w", err)
		}
		defer func(body io.ReadCloser) {
			if err := body.Close(); err != nil {
				slog.Warn("Failed to close the embedding response body", "error", err)
			}
		}(resp.Body)

		bodyBytes, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			return retry.NewUpstreamError(resp.StatusCode, string(bodyBytes))
		}

		var embResp EmbeddingResponse
		if err := json.Unmarshal(bodyBytes, &embResp); err != nil {
			return fmt.Errorf("failed to parse the response from the embedding service: %w", err)
		}
		vector = embResp.Vector
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}
