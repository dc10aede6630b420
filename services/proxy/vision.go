// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// visionProxyText is the text block that replaces an image. The wording
// tells the downstream model an image existed without sending it bytes.
const visionProxyText = "User has provided an image. The vision model predicts: %s with confidence %.2f%%. (This text replaced the actual image)."

type classifyRequest struct {
	ImageURL string `json:"image_url"`
}

type classifyResponse struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// VisionClient talks to the crop image classification service.
type VisionClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewVisionClient(baseURL string) *VisionClient {
	return &VisionClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Classify returns the predicted class and confidence for one image.
func (v *VisionClient) Classify(ctx context.Context, imageURL string) (string, float64, error) {
	body, err := json.Marshal(classifyRequest{ImageURL: imageURL})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", 0, fmt.Errorf("vision service returned %d: %s", resp.StatusCode, string(msg))
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", 0, fmt.Errorf("vision response was not JSON: %w", err)
	}
	return parsed.Class, parsed.Confidence, nil
}

// DecodeImages replaces every image_url block of every user message with
// a text proxy carrying the vision verdict. A classification failure
// leaves that block untouched; the request still goes upstream.
func (v *VisionClient) DecodeImages(ctx context.Context, env *Envelope) {
	for mi := range env.Messages {
		msg := &env.Messages[mi]
		if msg.Role != "user" || !msg.Content.IsBlocks {
			continue
		}
		for bi := range msg.Content.Blocks {
			block := &msg.Content.Blocks[bi]
			if block.Type != "image_url" || block.ImageURL == nil {
				continue
			}

			class, confidence, err := v.Classify(ctx, block.ImageURL.URL)
			if err != nil {
				slog.Warn("Vision classification failed, keeping image block", "error", err)
				continue
			}

			*block = ContentBlock{
				Type: "text",
				Text: fmt.Sprintf(visionProxyText, class, confidence*100),
			}
		}
	}
}
