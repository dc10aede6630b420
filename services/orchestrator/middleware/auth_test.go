// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func authRouter(key string) *gin.Engine {
	router := gin.New()
	router.Use(APIKeyAuth(key))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func get(router *gin.Engine, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		header http.Header
		want   int
	}{
		{"no key configured admits all", "", nil, http.StatusOK},
		{"bearer token accepted", "s3cret", http.Header{"Authorization": {"Bearer s3cret"}}, http.StatusOK},
		{"x-api-key accepted", "s3cret", http.Header{"X-Api-Key": {"s3cret"}}, http.StatusOK},
		{"missing credential rejected", "s3cret", nil, http.StatusUnauthorized},
		{"wrong key rejected", "s3cret", http.Header{"Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
		{"malformed scheme rejected", "s3cret", http.Header{"Authorization": {"Basic s3cret"}}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(authRouter(tt.key), tt.header)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
