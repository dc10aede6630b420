// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat-completion endpoint.
// The deployed stack points it at the same upstream service the proxy
// forwards farmer chats to, so the utility calls (slot extraction, judging,
// detection) share one connection pool with the main conversation path.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client from the environment.
//
// # Environment
//
//   - UPSTREAM_LLM_URL: base URL of an OpenAI-compatible server. When set,
//     the API key is optional (local vLLM/llama.cpp deployments).
//   - OPENAI_API_KEY: bearer token; falls back to the container secret file.
//   - OPENAI_MODEL: model name, default "gpt-4o-mini".
func NewOpenAIClient() (*OpenAIClient, error) {
	baseURL := strings.TrimSuffix(os.Getenv("UPSTREAM_LLM_URL"), "/")
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_MODEL")

	if apiKey == "" {
		secretPath := "/run/secrets/openai_api_key"
		if apiKeyBytes, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the OpenAI API key from container secrets")
		}
	}
	if apiKey == "" && baseURL == "" {
		return nil, fmt.Errorf("neither OPENAI_API_KEY nor UPSTREAM_LLM_URL is set")
	}
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL + "/v1"
	}
	slog.Info("Initializing LLM client", "model", model, "base_url", cfg.BaseURL)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// NewOpenAIClientAt builds a client pinned to an explicit base URL and model.
// Used by tests and by components that must not share the default model.
func NewOpenAIClientAt(baseURL, apiKey, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

// Generate implements the LLMClient interface.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("LLM call failed", "error", err)
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("LLM returned no choices")
		return "", fmt.Errorf("LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
