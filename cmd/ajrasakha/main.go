// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command ajrasakha runs the agricultural question-answering service.
//
// # Environment Variables
//
//   - AJRASAKHA_PORT: HTTP server port (default: 12210)
//   - UPSTREAM_LLM_URL: OpenAI-compatible model server base URL
//   - WEAVIATE_SERVICE_URL: vector database URL (optional)
//   - EMBEDDING_SERVICE_URL, EMBEDDING_MODEL_NAME: query embedding service
//   - TRANSLATOR_SERVICE_URL: translation service base URL
//   - VISION_SERVICE_URL: crop image classification service base URL
//   - REVIEWER_API_URL: human reviewer ticket endpoint
//   - STATE_CROPS_PATH: manifest location (default: ./data/state_crops.json)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector
//   - AJRASAKHA_API_KEY: shared API key for the v1 group (optional)
//
// # Usage
//
//	ajrasakha serve
//	ajrasakha refresh-crops
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/annadata-ai/ajrasakha/pkg/logging"
	"github.com/annadata-ai/ajrasakha/services/orchestrator"
)

func main() {
	var logLevel string

	root := &cobra.Command{
		Use:   "ajrasakha",
		Short: "Agricultural question answering for Indian farmers",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := logging.New(logging.Config{
				Level:   logging.ParseLevel(logLevel),
				Service: "ajrasakha",
				JSON:    true,
			})
			slog.SetDefault(logger.Slog())
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(), refreshCropsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := orchestrator.ConfigFromEnv()
			slog.Info("Starting Ajrasakha",
				"port", cfg.Port,
				"upstream_llm", cfg.UpstreamLLMURL,
				"weaviate", cfg.WeaviateURL,
			)

			svc, err := orchestrator.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			return svc.Run()
		},
	}
}

func refreshCropsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-crops",
		Short: "Rebuild the state-crops manifest from Weaviate and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := orchestrator.ConfigFromEnv()
			svc, err := orchestrator.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}

			if err := svc.RefreshCrops(cmd.Context()); err != nil {
				return fmt.Errorf("manifest refresh failed: %w", err)
			}
			slog.Info("State-crops manifest refreshed", "path", cfg.StateCropsPath)
			return nil
		},
	}
}
