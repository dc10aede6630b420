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

	"github.com/annadata-ai/ajrasakha/pkg/retry"
	"github.com/annadata-ai/ajrasakha/services/llm"
)

// LanguageEnglish is the canonical pipeline language. Detection defaults
// to it on any failure so the proxy degrades to a no-op.
const LanguageEnglish = "English"

const detectPrompt = `What language is the following conversation written in?
Answer with the language name as a single English word, e.g. English, Hindi, Tamil, Punjabi.

%s`

// LanguageDetector identifies the conversation language via the LLM.
type LanguageDetector struct {
	client llm.LLMClient
}

func NewLanguageDetector(client llm.LLMClient) *LanguageDetector {
	return &LanguageDetector{client: client}
}

// Detect returns the language of the last user turn, using the last
// non-empty assistant turn as additional context.
func (d *LanguageDetector) Detect(ctx context.Context, userText, assistantText string) string {
	sample := userText
	if assistantText != "" {
		sample = assistantText + "\n" + userText
	}
	if strings.TrimSpace(sample) == "" {
		return LanguageEnglish
	}

	temp := float32(0.0)
	output, err := d.client.Generate(ctx, fmt.Sprintf(detectPrompt, sample),
		llm.GenerationParams{Temperature: &temp})
	if err != nil {
		slog.Warn("Language detection failed, assuming English", "error", err)
		return LanguageEnglish
	}

	language := strings.TrimSpace(output)
	if idx := strings.IndexAny(language, " \n.,"); idx > 0 {
		language = language[:idx]
	}
	if language == "" {
		return LanguageEnglish
	}
	language = strings.ToLower(language)
	return strings.ToUpper(language[:1]) + language[1:]
}

// translateRequest is the translator service wire format.
type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// TranslatorClient talks to the translation service.
type TranslatorClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTranslatorClient(baseURL string) *TranslatorClient {
	return &TranslatorClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Translate converts text between languages. Translating English to
// English returns the input unchanged without a network call.
func (t *TranslatorClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.EqualFold(source, target) {
		return text, nil
	}

	body, err := json.Marshal(translateRequest{
		Text:           text,
		SourceLanguage: source,
		TargetLanguage: target,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode translate request: %w", err)
	}

	var translated string
	err = retry.Do(ctx, "translate", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			t.baseURL+"/translate", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("translator request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return retry.NewUpstreamError(resp.StatusCode,
				fmt.Sprintf("translator returned %d: %s", resp.StatusCode, string(msg)))
		}

		var parsed translateResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("translator response was not JSON: %w", err)
		}
		translated = parsed.TranslatedText
		return nil
	})
	if err != nil {
		return "", err
	}
	return translated, nil
}

// TranslateStream requests a streaming translation. The caller owns the
// returned body and must close it; it carries SSE data lines.
func (t *TranslatorClient) TranslateStream(ctx context.Context, text, source, target string) (io.ReadCloser, error) {
	body, err := json.Marshal(translateRequest{
		Text:           text,
		SourceLanguage: source,
		TargetLanguage: target,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/translate/stream", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translator stream request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, retry.NewUpstreamError(resp.StatusCode,
			fmt.Sprintf("translator stream returned %d: %s", resp.StatusCode, string(msg)))
	}
	return resp.Body, nil
}
