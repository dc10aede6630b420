// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		llm  *fakeLLM
		want string
	}{
		{"plain answer", &fakeLLM{output: "Hindi"}, "Hindi"},
		{"lowercase", &fakeLLM{output: "punjabi"}, "Punjabi"},
		{"chatty answer keeps first word", &fakeLLM{output: "Bengali. The text is in Bengali."}, "Bengali"},
		{"empty answer", &fakeLLM{output: ""}, LanguageEnglish},
		{"model error", &fakeLLM{err: errors.New("timeout")}, LanguageEnglish},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewLanguageDetector(tt.llm)
			got := d.Detect(context.Background(), "kisi bhi sawal", "")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectEmptyTextSkipsModel(t *testing.T) {
	llmStub := &fakeLLM{output: "Hindi"}
	d := NewLanguageDetector(llmStub)

	got := d.Detect(context.Background(), "", "")
	assert.Equal(t, LanguageEnglish, got)
	assert.Empty(t, llmStub.lastPrompt)
}

func TestTranslate(t *testing.T) {
	var received translateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/translate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(translateResponse{TranslatedText: "When should I sow wheat?"})
	}))
	defer srv.Close()

	client := NewTranslatorClient(srv.URL)
	got, err := client.Translate(context.Background(), "gehu kab boni chahiye", "Hindi", "English")
	require.NoError(t, err)

	assert.Equal(t, "When should I sow wheat?", got)
	assert.Equal(t, "gehu kab boni chahiye", received.Text)
	assert.Equal(t, "Hindi", received.SourceLanguage)
	assert.Equal(t, "English", received.TargetLanguage)
}

// Same source and target language short-circuits without a network call.
func TestTranslateSameLanguageNoop(t *testing.T) {
	client := NewTranslatorClient("http://translator.invalid")
	got, err := client.Translate(context.Background(), "already english", "English", "english")
	require.NoError(t, err)
	assert.Equal(t, "already english", got)
}

func TestTranslateUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewTranslatorClient(srv.URL)
	_, err := client.Translate(context.Background(), "text", "Hindi", "English")
	assert.Error(t, err)
}

func TestTranslateStreamProxiesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/translate/stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"translated_text\":\"chunk\"}\n\ndata: [DONE]\n"))
	}))
	defer srv.Close()

	client := NewTranslatorClient(srv.URL)
	stream, err := client.TranslateStream(context.Background(), "text", "English", "Hindi")
	require.NoError(t, err)
	defer stream.Close()

	buf := make([]byte, 256)
	n, _ := stream.Read(buf)
	assert.Contains(t, string(buf[:n]), "chunk")
}
