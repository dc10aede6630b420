// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/handlers"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/middleware"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/observability"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/pipeline"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/tools"
	"github.com/annadata-ai/ajrasakha/services/proxy"
)

// Deps carries everything route registration needs.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Registry *tools.Registry
	Store    *statecrops.Store
	Metrics  *observability.Metrics
	Proxy    *proxy.Service

	// APIKey guards the v1 group. Empty disables authentication.
	APIKey string
}

// SetupRoutes registers all HTTP routes.
//
// # Description
//
// Health and metrics are unauthenticated. The v1 group carries the
// orchestration API. Every request that matches no registered route falls
// through to the chat-completion proxy, so the service is a drop-in
// base URL for OpenAI-compatible clients.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(middleware.APIKeyAuth(deps.APIKey))
	{
		v1.POST("/ask", handlers.HandleAsk(deps.Pipeline, deps.Metrics))
		v1.GET("/tools", handlers.ListTools(deps.Registry))
		v1.POST("/tools/:name", handlers.CallTool(deps.Registry))
		// State-crops manifest administration
		stateCrops := v1.Group("/state-crops")
		{
			stateCrops.GET("", handlers.GetStateCrops(deps.Store))
			stateCrops.POST("/refresh", handlers.RefreshStateCrops(deps.Store, deps.Metrics))
		}
	}

	if deps.Proxy != nil {
		router.NoRoute(deps.Proxy.Forward())
	}
}
