// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proxy

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/observability"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/tools"
	"github.com/annadata-ai/ajrasakha/services/safety"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	serviceMetricsOnce sync.Once
	serviceMetrics     *observability.Metrics
)

func testMetrics() *observability.Metrics {
	serviceMetricsOnce.Do(func() {
		serviceMetrics = observability.InitMetrics()
	})
	return serviceMetrics
}

func serviceStore(t *testing.T) *statecrops.Store {
	t.Helper()
	m := statecrops.NewManifest()
	m.StateCodes["Punjab"] = "PB"
	m.AddCrop(statecrops.SourceReviewed, "PB", "Wheat")
	m.LastUpdated = time.Now().UTC()

	path := filepath.Join(t.TempDir(), "state_crops.json")
	require.NoError(t, m.WriteAtomic(path))

	store := statecrops.NewStore(path, nil)
	require.NoError(t, store.LoadFromDisk())
	return store
}

type serviceOptions struct {
	detector   *fakeLLM
	classifier *fakeLLM
	translator string
}

func newTestService(t *testing.T, upstreamURL string, opts serviceOptions) *Service {
	t.Helper()
	if opts.detector == nil {
		opts.detector = &fakeLLM{output: "English"}
	}
	if opts.classifier == nil {
		opts.classifier = &fakeLLM{output: "AGRICULTURE"}
	}
	if opts.translator == "" {
		opts.translator = "http://translator.invalid"
	}
	scanner, err := safety.NewScanner()
	require.NoError(t, err)

	return NewService(
		upstreamURL,
		NewLanguageDetector(opts.detector),
		NewTranslatorClient(opts.translator),
		NewVisionClient("http://vision.invalid"),
		NewIntentClassifier(opts.classifier),
		tools.NewRegistry(),
		serviceStore(t),
		testMetrics(),
		scanner,
	)
}

func proxyRouter(s *Service) *gin.Engine {
	router := gin.New()
	router.NoRoute(s.Forward())
	return router
}

func doRequest(router *gin.Engine, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func chatBody(t *testing.T, question string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"model": "llama-3",
		"messages": []map[string]any{
			{"role": "user", "content": question},
		},
	})
	require.NoError(t, err)
	return body
}

func TestForwardChatInjectsSystemPrompt(t *testing.T) {
	var upstreamBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamBody, _ = readAll(r)
		json.NewEncoder(w).Encode(map[string]any{
			"object": "chat.completion",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Sow in November."}},
			},
		})
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL, serviceOptions{})
	rec := doRequest(proxyRouter(svc), http.MethodPost, "/v1/chat/completions", chatBody(t, "When to sow wheat?"), nil)

	require.Equal(t, http.StatusOK, rec.Code)

	env, err := ParseEnvelope(upstreamBody)
	require.NoError(t, err)
	require.NotEmpty(t, env.Messages)
	assert.Equal(t, "system", env.Messages[0].Role)
	assert.Contains(t, env.Messages[0].Content.Text, "state")
	assert.Contains(t, rec.Body.String(), "Sow in November.")
}

func TestForwardChatTranslatesInbound(t *testing.T) {
	translator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(translateResponse{TranslatedText: "When should I sow wheat?"})
	}))
	defer translator.Close()

	var upstreamBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamBody, _ = readAll(r)
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "November."}},
		}})
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL, serviceOptions{
		detector:   &fakeLLM{output: "Hindi"},
		translator: translator.URL,
	})
	rec := doRequest(proxyRouter(svc), http.MethodPost, "/v1/chat/completions", chatBody(t, "gehu kab boye"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	env, err := ParseEnvelope(upstreamBody)
	require.NoError(t, err)
	idx := env.LastUserIndex()
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "When should I sow wheat?", env.Messages[idx].Content.PlainText())
}

func TestForwardChatUpstreamDown(t *testing.T) {
	svc := newTestService(t, "http://127.0.0.1:1", serviceOptions{})
	rec := doRequest(proxyRouter(svc), http.MethodPost, "/v1/chat/completions", chatBody(t, "hello"), nil)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Bad gateway"}`, rec.Body.String())
}

func TestForwardChatScansAnswerForBannedChemicals(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "Spray monocrotophos on the crop."}},
		}})
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL, serviceOptions{})
	rec := doRequest(proxyRouter(svc), http.MethodPost, "/v1/chat/completions", chatBody(t, "pest control?"), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(safetyScanHeader), "monocrotophos")
}

func TestForwardChatCleanAnswerHeader(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": "Use neem oil."}},
		}})
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL, serviceOptions{})
	rec := doRequest(proxyRouter(svc), http.MethodPost, "/v1/chat/completions", chatBody(t, "pest control?"), nil)

	assert.Equal(t, "clean", rec.Header().Get(safetyScanHeader))
}

func TestForwardChatStreamingRelay(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"choices":[{"index":0,"delta":{"content":"Sow in November."},"finish_reason":null}]}`,
		"data: [DONE]",
		"",
	}, "\n")
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(stream))
	}))
	defer upstream.Close()

	body, err := json.Marshal(map[string]any{
		"model":    "llama-3",
		"stream":   true,
		"messages": []map[string]any{{"role": "user", "content": "when to sow?"}},
	})
	require.NoError(t, err)

	svc := newTestService(t, upstream.URL, serviceOptions{})
	rec := doRequest(proxyRouter(svc), http.MethodPost, "/v1/chat/completions", body, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, stream, rec.Body.String())
}

// Requests that are not chat completions pass through untouched, method
// and body included.
func TestForwardPlainPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data":[{"id":"llama-3"}]}`))
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL, serviceOptions{})
	rec := doRequest(proxyRouter(svc), http.MethodGet, "/v1/models", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[{"id":"llama-3"}]}`, rec.Body.String())
}

// A chat body that is not a JSON object still reaches the upstream as-is.
func TestForwardChatUnparseableBodyForwardedRaw(t *testing.T) {
	var upstreamBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamBody, _ = readAll(r)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid"}`))
	}))
	defer upstream.Close()

	svc := newTestService(t, upstream.URL, serviceOptions{})
	rec := doRequest(proxyRouter(svc), http.MethodPost, "/v1/chat/completions", []byte("not json"), nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not json", string(upstreamBody))
}

func TestCopyHeadersStripsHopByHop(t *testing.T) {
	src := http.Header{
		"Content-Type":      {"application/json"},
		"Authorization":     {"Bearer token"},
		"Connection":        {"keep-alive, X-Custom-Drop"},
		"Keep-Alive":        {"timeout=5"},
		"Transfer-Encoding": {"chunked"},
		"X-Custom-Drop":     {"secret"},
		"X-Custom-Keep":     {"value"},
	}
	dst := http.Header{}
	copyHeaders(dst, src)

	assert.Equal(t, "application/json", dst.Get("Content-Type"))
	assert.Equal(t, "Bearer token", dst.Get("Authorization"))
	assert.Equal(t, "value", dst.Get("X-Custom-Keep"))
	assert.Empty(t, dst.Get("Connection"))
	assert.Empty(t, dst.Get("Keep-Alive"))
	assert.Empty(t, dst.Get("Transfer-Encoding"))
	assert.Empty(t, dst.Get("X-Custom-Drop"))
}

func readAll(r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}
