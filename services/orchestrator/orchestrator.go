// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package orchestrator assembles and runs the Ajrasakha service.
//
// # Description
//
// The orchestrator wires every component together: the Weaviate client,
// the retrieval cascade pipeline, the tool registry, the chat-completion
// proxy, the state-crops refresh scheduler and the observability stack.
// It owns the HTTP server lifecycle.
//
// # Usage
//
//	cfg := orchestrator.ConfigFromEnv()
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/annadata-ai/ajrasakha/services/llm"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/observability"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/pipeline"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/refresh"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/retrieval"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/routes"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/tools"
	"github.com/annadata-ai/ajrasakha/services/proxy"
	"github.com/annadata-ai/ajrasakha/services/safety"
)

// Service is the orchestrator lifecycle contract.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router exposes the configured engine for integration tests.
	Router() *gin.Engine

	// RefreshCrops rebuilds the state-crops manifest once and exits.
	RefreshCrops(ctx context.Context) error
}

// Config holds service configuration.
//
// # Fields
//
// All fields are optional; New applies defaults for zero values. A
// missing WeaviateURL disables retrieval-backed components and the
// service degrades to proxy-only mode.
type Config struct {
	// Port is the HTTP server port. Default: 12210.
	Port int

	// UpstreamLLMURL is the OpenAI-compatible model server the proxy
	// forwards to and the pipeline's judge/extractor call.
	UpstreamLLMURL string

	// WeaviateURL is the vector database URL. Optional.
	WeaviateURL string

	// EmbeddingServiceURL and EmbeddingModelName configure query
	// embedding for semantic retrieval.
	EmbeddingServiceURL string
	EmbeddingModelName  string

	// TranslatorURL is the translation service base URL.
	TranslatorURL string

	// VisionURL is the crop image classification service base URL.
	VisionURL string

	// ReviewerURL is the human reviewer ticket endpoint.
	ReviewerURL string

	// OTelEndpoint is the OpenTelemetry collector. Default:
	// "ajrasakha-otel-collector:4317".
	OTelEndpoint string

	// StateCropsPath is where the manifest is persisted. Default:
	// "./data/state_crops.json".
	StateCropsPath string

	// APIKey guards the v1 API group. Empty disables authentication.
	APIKey string

	// RefreshInterval is the background refresh cadence. Default: 1 hour.
	RefreshInterval time.Duration

	// GinMode sets the Gin framework mode. Default: GIN_MODE env or debug.
	GinMode string
}

// ConfigFromEnv builds a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Port:                envInt("AJRASAKHA_PORT", 12210),
		UpstreamLLMURL:      os.Getenv("UPSTREAM_LLM_URL"),
		WeaviateURL:         os.Getenv("WEAVIATE_SERVICE_URL"),
		EmbeddingServiceURL: os.Getenv("EMBEDDING_SERVICE_URL"),
		EmbeddingModelName:  os.Getenv("EMBEDDING_MODEL_NAME"),
		TranslatorURL:       os.Getenv("TRANSLATOR_SERVICE_URL"),
		VisionURL:           os.Getenv("VISION_SERVICE_URL"),
		ReviewerURL:         os.Getenv("REVIEWER_API_URL"),
		OTelEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		StateCropsPath:      os.Getenv("STATE_CROPS_PATH"),
		APIKey:              os.Getenv("AJRASAKHA_API_KEY"),
	}
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// service implements Service.
type service struct {
	config         Config
	router         *gin.Engine
	llmClient      llm.LLMClient
	weaviateClient *weaviate.Client
	store          *statecrops.Store
	pipeline       *pipeline.Pipeline
	registry       *tools.Registry
	metrics        *observability.Metrics
	proxy          *proxy.Service
	scheduler      *refresh.Scheduler
	tracerCleanup  func(context.Context)
}

var _ Service = (*service)(nil)

// New creates an orchestrator from the given configuration.
//
// # Description
//
// Initializes, in order: tracing, metrics, the Weaviate client, the
// state-crops store, the retrieval pipeline, the tool registry, the
// proxy and the refresh scheduler. Weaviate being unreachable is not
// fatal; the affected components are skipped and logged.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	s.metrics = observability.InitMetrics()

	if err := s.initWeaviate(); err != nil {
		slog.Warn("Weaviate initialization failed, running in proxy-only mode", "error", err)
	}

	s.llmClient, err = llm.NewOpenAIClient()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	if err := s.initStore(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize state-crops store: %w", err)
	}

	if err := s.initPipeline(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if err := s.initProxy(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize proxy: %w", err)
	}

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server. Blocks until the server stops.
func (s *service) Run() error {
	defer s.cleanup()

	if s.scheduler != nil {
		if err := s.scheduler.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start refresh scheduler: %w", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting Ajrasakha server", "port", s.config.Port)
	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

// RefreshCrops forces one manifest rebuild from Weaviate.
func (s *service) RefreshCrops(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("state-crops store is not initialized")
	}
	if err := s.store.ForceRefresh(ctx); err != nil {
		s.metrics.RecordManifestRefresh(false)
		return err
	}
	s.metrics.RecordManifestRefresh(true)
	return nil
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12210
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "ajrasakha-otel-collector:4317"
	}
	if cfg.StateCropsPath == "" {
		cfg.StateCropsPath = "./data/state_crops.json"
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 1 * time.Hour
	}
	return cfg
}

func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("ajrasakha")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

func (s *service) initWeaviate() error {
	weaviateURL := strings.Trim(s.config.WeaviateURL, "\"' ")
	if weaviateURL == "" {
		slog.Info("Weaviate URL not configured, retrieval components disabled")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return fmt.Errorf("invalid Weaviate URL: %s", weaviateURL)
	}

	s.weaviateClient, err = weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	datatypes.EnsureWeaviateSchema(s.weaviateClient)
	slog.Info("Weaviate client initialized", "url", weaviateURL)
	return nil
}

// initStore loads the state-crops manifest from disk and starts the
// file watcher. A missing manifest file is not fatal on a fresh install;
// the refresh scheduler populates it from Weaviate.
func (s *service) initStore() error {
	var builder statecrops.Builder
	if s.weaviateClient != nil {
		builder = statecrops.NewWeaviateBuilder(s.weaviateClient)
	}
	s.store = statecrops.NewStore(s.config.StateCropsPath, builder)

	if err := s.store.LoadFromDisk(); err != nil {
		slog.Warn("State-crops manifest not loaded, starting empty",
			"path", s.config.StateCropsPath, "error", err)
	}
	if err := s.store.Watch(); err != nil {
		slog.Warn("State-crops file watcher failed to start", "error", err)
	}
	return nil
}

// initPipeline builds the retrieval cascade and the tool registry.
// Without Weaviate the cascade cannot run; the service then answers
// /v1/ask with 503 and keeps the proxy path alive.
func (s *service) initPipeline() error {
	s.registry = tools.NewRegistry()

	if s.weaviateClient == nil {
		s.scheduler = refresh.NewScheduler(refresh.SchedulerConfig{
			Interval: s.config.RefreshInterval,
		}, refresh.NewManifestJob(s.store, s.metrics))
		return nil
	}

	embedder := datatypes.NewEmbedder(s.config.EmbeddingServiceURL, s.config.EmbeddingModelName)
	reviewed := retrieval.NewReviewedRetriever(s.weaviateClient, embedder)
	golden := retrieval.NewGoldenRetriever(s.weaviateClient, embedder)
	pop := retrieval.NewPoPRetriever(s.weaviateClient, embedder)
	faq := retrieval.NewFAQVideoRetriever(s.weaviateClient, embedder)

	deps := pipeline.Deps{
		Extractor: pipeline.NewSlotExtractor(s.llmClient, s.store),
		Judge:     pipeline.NewRelevanceJudge(s.llmClient),
		Validator: pipeline.NewCropValidator(s.llmClient, s.store),
		Reviewer:  pipeline.NewReviewerClient(s.config.ReviewerURL),
		Store:     s.store,
		Reviewed:  reviewed,
		Golden:    golden,
		PoP:       pop,
		Video:     faq,
	}

	p, err := pipeline.NewPipeline(deps)
	if err != nil {
		return err
	}
	s.pipeline = p

	if err := tools.RegisterBuiltins(s.registry, p, reviewed, golden, pop, faq, deps.Reviewer); err != nil {
		return err
	}

	s.scheduler = refresh.NewScheduler(refresh.SchedulerConfig{
		Interval: s.config.RefreshInterval,
	},
		refresh.NewManifestJob(s.store, s.metrics),
		refresh.NewFAQIndexJob(faq),
	)
	return nil
}

func (s *service) initProxy() error {
	scanner, err := safety.NewScanner()
	if err != nil {
		return fmt.Errorf("failed to load the banned chemical policy: %w", err)
	}

	s.proxy = proxy.NewService(
		s.config.UpstreamLLMURL,
		proxy.NewLanguageDetector(s.llmClient),
		proxy.NewTranslatorClient(s.config.TranslatorURL),
		proxy.NewVisionClient(s.config.VisionURL),
		proxy.NewIntentClassifier(s.llmClient),
		s.registry,
		s.store,
		s.metrics,
		scanner,
	)
	return nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("ajrasakha"))

	routes.SetupRoutes(s.router, routes.Deps{
		Pipeline: s.pipeline,
		Registry: s.registry,
		Store:    s.store,
		Metrics:  s.metrics,
		Proxy:    s.proxy,
		APIKey:   s.config.APIKey,
	})
}

func (s *service) cleanup() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.store != nil {
		s.store.Stop()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
