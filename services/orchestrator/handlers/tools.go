// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/tools"
)

// ListTools returns the OpenAI-format tool manifest.
func ListTools(registry *tools.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tools": registry.Manifest()})
	}
}

// CallTool dispatches a tool call by path name. The request body is the
// tool's JSON arguments object.
func CallTool(registry *tools.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := askTracer.Start(c.Request.Context(), "CallTool")
		defer span.End()

		name := c.Param("name")
		span.SetAttributes(attribute.String("tool", name))

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			span.RecordError(err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
			return
		}
		if len(body) == 0 {
			body = []byte("{}")
		}
		if !json.Valid(body) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Arguments must be a JSON object"})
			return
		}

		result, err := registry.Call(ctx, name, body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if strings.HasPrefix(err.Error(), "unknown tool") {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			slog.Error("Tool call failed", "tool", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"result": result})
	}
}
