// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/observability"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/pipeline"
)

var askTracer = otel.Tracer("ajrasakha.orchestrator.handlers")

// HandleAsk runs a farmer question through the orchestration pipeline and
// returns the context-enriched prompt.
//
// # Description
//
// Binds and validates the ask envelope, fills defaults for the request ID
// and timestamp, then invokes the pipeline. Pipeline-internal failures
// never surface as 5xx; only a malformed request or a broken graph does.
func HandleAsk(p *pipeline.Pipeline, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := askTracer.Start(c.Request.Context(), "HandleAsk")
		defer span.End()

		if p == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Retrieval backend not configured"})
			return
		}

		start := time.Now()

		var request datatypes.AskRequest
		if err := c.BindJSON(&request); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Failed to bind ask request JSON", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		request.EnsureDefaults()
		if err := request.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		span.SetAttributes(attribute.String("request_id", request.RequestID))
		slog.Info("Received ask request", "request_id", request.RequestID)

		response, err := p.Ask(ctx, &request)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Ask pipeline failed", "request_id", request.RequestID, "error", err)
			if metrics != nil {
				metrics.RecordAsk(observability.OutcomeError, time.Since(start).Seconds())
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Orchestration failed"})
			return
		}

		if metrics != nil {
			outcome := observability.OutcomeAnswered
			if response.UploadedToReviewer {
				outcome = observability.OutcomeEscalated
			}
			metrics.RecordAsk(outcome, time.Since(start).Seconds())
		}

		c.JSON(http.StatusOK, response)
	}
}
