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
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/observability"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/tools"
	"github.com/annadata-ai/ajrasakha/services/safety"
)

var tracer = otel.Tracer("ajrasakha.proxy")

// hopByHopHeaders are stripped in both directions per RFC 7230 section 6.1.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// safetyScanHeader carries the banned-chemical verdict for answers the
// relay could inspect. Values are "clean" or a comma-joined substance list.
const safetyScanHeader = "X-Ajrasakha-Safety-Scan"

// Service is the chat-completion pre-processing proxy.
//
// # Description
//
// Chat-completion POSTs are decoded, enriched and forwarded: image blocks
// are replaced with vision-model captions, non-English questions are
// translated to English, the tool manifest is pruned to the classified
// intent and an intent-specific system prompt is injected. Every other
// request is forwarded untouched. Responses stream back through a
// StreamRelay that leaves tool-call turns byte for byte intact.
type Service struct {
	upstreamURL string
	httpClient  *http.Client
	detector    *LanguageDetector
	translator  *TranslatorClient
	vision      *VisionClient
	classifier  *IntentClassifier
	registry    *tools.Registry
	store       *statecrops.Store
	metrics     *observability.Metrics
	scanner     *safety.Scanner
}

func NewService(
	upstreamURL string,
	detector *LanguageDetector,
	translator *TranslatorClient,
	vision *VisionClient,
	classifier *IntentClassifier,
	registry *tools.Registry,
	store *statecrops.Store,
	metrics *observability.Metrics,
	scanner *safety.Scanner,
) *Service {
	return &Service{
		upstreamURL: strings.TrimRight(upstreamURL, "/"),
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		detector:    detector,
		translator:  translator,
		vision:      vision,
		classifier:  classifier,
		registry:    registry,
		store:       store,
		metrics:     metrics,
		scanner:     scanner,
	}
}

// Forward is the catch-all handler mounted behind the orchestrator's own
// routes. Chat completions get the full pre-processing treatment, anything
// else is a transparent passthrough to the upstream model server.
func (s *Service) Forward() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isChatCompletion(c.Request) {
			s.forwardChat(c)
			return
		}
		s.forwardPlain(c)
	}
}

func isChatCompletion(req *http.Request) bool {
	return req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/chat/completions")
}

// ====== Plain passthrough ======

func (s *Service) forwardPlain(c *gin.Context) {
	resp, err := s.sendUpstream(c.Request.Context(), c.Request.Method, c.Request.URL.RequestURI(), c.Request.Header, c.Request.Body)
	if err != nil {
		s.badGateway(c, err)
		s.metrics.RecordProxyRequest(true, false)
		return
	}
	defer resp.Body.Close()

	copyHeaders(c.Writer.Header(), resp.Header)
	c.Writer.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		slog.Warn("Passthrough response copy interrupted", "error", err)
	}
	s.metrics.RecordProxyRequest(true, resp.StatusCode < http.StatusInternalServerError)
}

// ====== Chat completion path ======

func (s *Service) forwardChat(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "proxy.forwardChat")
	defer span.End()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request body read failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read request body"})
		return
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		// Not an envelope we understand. Forward the raw bytes untouched.
		slog.Warn("Chat completion body did not parse, forwarding untouched", "error", err)
		s.forwardRaw(c, body)
		return
	}

	s.prepare(ctx, env)

	outBody, err := env.Encode()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "envelope re-encode failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode upstream request"})
		return
	}

	resp, err := s.sendUpstream(ctx, http.MethodPost, c.Request.URL.RequestURI(), c.Request.Header, bytes.NewReader(outBody))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream unreachable")
		s.badGateway(c, err)
		s.metrics.RecordProxyRequest(false, false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || !isEventStream(resp.Header) {
		s.writeScannedResponse(c, resp)
		s.metrics.RecordProxyRequest(false, resp.StatusCode == http.StatusOK)
		return
	}

	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()

	relay := NewStreamRelay(s.translator, env.DetectedLanguage, env.Stream)
	copyHeaders(c.Writer.Header(), resp.Header)
	c.Writer.WriteHeader(resp.StatusCode)
	if err := relay.Relay(ctx, resp.Body, c.Writer); err != nil {
		span.RecordError(err)
		slog.Warn("Stream relay interrupted", "error", err)
		s.metrics.RecordProxyRequest(relay.PassedThrough, false)
		return
	}
	span.SetAttributes(
		attribute.String("proxy.language", env.DetectedLanguage),
		attribute.String("proxy.intent", string(env.Intent)),
		attribute.Bool("proxy.tool_passthrough", relay.PassedThrough),
	)
	s.metrics.RecordProxyRequest(relay.PassedThrough, true)
}

// prepare runs the pre-processing stages in order: vision decoding,
// language detection, inbound translation, intent classification, tool
// pruning and system prompt injection. Each stage degrades independently;
// a stage failure never blocks the question from reaching the model.
func (s *Service) prepare(ctx context.Context, env *Envelope) {
	s.vision.DecodeImages(ctx, env)

	userText := ""
	if idx := env.LastUserIndex(); idx >= 0 {
		userText = env.Messages[idx].Content.PlainText()
	}
	env.DetectedLanguage = s.detector.Detect(ctx, userText, env.LastAssistantText())

	if env.DetectedLanguage != LanguageEnglish && userText != "" {
		translated, err := s.translator.Translate(ctx, userText, env.DetectedLanguage, LanguageEnglish)
		if err != nil {
			slog.Warn("Inbound translation failed, forwarding original text",
				"language", env.DetectedLanguage, "error", err)
		} else {
			idx := env.LastUserIndex()
			env.Messages[idx].Content = NewTextContent(translated)
			s.metrics.RecordTranslation(env.DetectedLanguage)
		}
	}

	env.Intent = s.classifier.Classify(ctx, env)
	if len(env.Tools) > 0 {
		before := len(env.Tools)
		env.Tools = PruneTools(env.Intent, env.Tools, s.registry.TagFor)
		if len(env.Tools) < before {
			s.metrics.RecordToolPruning(string(env.Intent))
		}
	}
	segment := SystemPromptFor(env.Intent, s.store.Current(), time.Now())
	InjectSystemPrompt(env, segment)
}

// forwardRaw ships an unparseable chat body upstream without modification.
func (s *Service) forwardRaw(c *gin.Context, body []byte) {
	resp, err := s.sendUpstream(c.Request.Context(), http.MethodPost, c.Request.URL.RequestURI(), c.Request.Header, bytes.NewReader(body))
	if err != nil {
		s.badGateway(c, err)
		s.metrics.RecordProxyRequest(true, false)
		return
	}
	defer resp.Body.Close()

	copyHeaders(c.Writer.Header(), resp.Header)
	c.Writer.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		slog.Warn("Raw chat response copy interrupted", "error", err)
	}
	s.metrics.RecordProxyRequest(true, resp.StatusCode == http.StatusOK)
}

// writeScannedResponse buffers a non-streaming completion, audits the
// assistant text for regulated agrochemicals and forwards the body with
// the verdict attached as a response header. Audit results are advisory;
// the answer itself is never blocked here.
func (s *Service) writeScannedResponse(c *gin.Context, resp *http.Response) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Warn("Chat response read interrupted", "error", err)
		copyHeaders(c.Writer.Header(), resp.Header)
		c.Writer.WriteHeader(resp.StatusCode)
		return
	}

	copyHeaders(c.Writer.Header(), resp.Header)
	if s.scanner != nil && resp.StatusCode == http.StatusOK {
		if text := completionText(body); text != "" {
			result := s.scanner.Scan(text)
			c.Writer.Header().Set(safetyScanHeader, scanHeaderValue(result))
			if result.ContainsBanned() {
				slog.Warn("Answer mentions a banned agrochemical", "detections", result.DetectedItems)
			}
		}
	}
	c.Writer.WriteHeader(resp.StatusCode)
	if _, err := c.Writer.Write(body); err != nil {
		slog.Warn("Chat response write interrupted", "error", err)
	}
}

// completionText pulls the assistant content out of a non-streaming
// completion body. Returns "" when the shape is not recognized.
func completionText(body []byte) string {
	var envelope struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Choices) == 0 {
		return ""
	}
	return envelope.Choices[0].Message.Content
}

func scanHeaderValue(result safety.ScanResult) string {
	if result.IsClean {
		return "clean"
	}
	names := make([]string, 0, len(result.DetectedItems))
	for _, d := range result.DetectedItems {
		names = append(names, d.Chemical)
	}
	return strings.Join(names, ",")
}

// ====== Upstream plumbing ======

func (s *Service) sendUpstream(ctx context.Context, method, requestURI string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.upstreamURL+requestURI, body)
	if err != nil {
		return nil, err
	}
	copyHeaders(req.Header, header)
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.httpClient.Do(req)
}

func (s *Service) badGateway(c *gin.Context, err error) {
	slog.Error("Upstream model server unreachable", "upstream", s.upstreamURL, "error", err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "Bad gateway"})
}

// copyHeaders copies all headers except hop-by-hop ones and any header
// named in the Connection header.
func copyHeaders(dst, src http.Header) {
	dropped := map[string]bool{}
	for _, h := range hopByHopHeaders {
		dropped[h] = true
	}
	for _, name := range src.Values("Connection") {
		for _, token := range strings.Split(name, ",") {
			dropped[http.CanonicalHeaderKey(strings.TrimSpace(token))] = true
		}
	}
	for name, values := range src {
		if dropped[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

func isEventStream(header http.Header) bool {
	return strings.HasPrefix(header.Get("Content-Type"), "text/event-stream")
}
