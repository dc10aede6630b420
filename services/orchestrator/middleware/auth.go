// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// # Description
//
// The auth middleware gates the API behind a shared key. When no key is
// configured every request is accepted, which keeps single-host village
// kiosk deployments zero-config while letting hosted deployments require
// a credential.
//
//	Request
//	   │
//	   ▼
//	APIKeyAuth
//	   │
//	   ├─► no key configured ──► next handler
//	   │
//	   ├─► "Authorization: Bearer <key>" matches ──► next handler
//	   │
//	   └─► otherwise ──► 401
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// bearerPrefix per RFC 6750.
const bearerPrefix = "Bearer "

// APIKeyAuth returns middleware that requires the configured API key.
//
// # Description
//
// An empty key disables authentication entirely. Key comparison is
// constant-time. The X-Api-Key header is accepted as an alternative to
// the Authorization header for clients that cannot set bearer tokens.
//
// # Inputs
//
//   - key: the shared secret. May be empty.
//
// # Outputs
//
//   - gin.HandlerFunc: aborts with 401 on a missing or wrong credential.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		candidate := c.GetHeader("X-Api-Key")
		if candidate == "" {
			header := c.GetHeader("Authorization")
			if strings.HasPrefix(header, bearerPrefix) {
				candidate = strings.TrimPrefix(header, bearerPrefix)
			}
		}

		if candidate == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing API key"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		c.Next()
	}
}
