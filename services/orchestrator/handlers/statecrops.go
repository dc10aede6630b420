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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/codes"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/observability"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
)

// GetStateCrops returns the live state-crops manifest.
func GetStateCrops(store *statecrops.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, store.Current())
	}
}

// RefreshStateCrops forces a manifest rebuild from the vector stores,
// bypassing the staleness window.
func RefreshStateCrops(store *statecrops.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := askTracer.Start(c.Request.Context(), "RefreshStateCrops")
		defer span.End()

		if err := store.ForceRefresh(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("Forced manifest refresh failed", "error", err)
			if metrics != nil {
				metrics.RecordManifestRefresh(false)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Manifest refresh failed"})
			return
		}

		if metrics != nil {
			metrics.RecordManifestRefresh(true)
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "refreshed",
			"last_updated": store.Current().LastUpdated,
		})
	}
}
