// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// streamScanBuffer bounds one SSE line. Vision payloads never ride the
// response stream, so 1 MiB is generous.
const streamScanBuffer = 1 << 20

// bufferedLine holds one upstream SSE line in both forms: raw keeps the
// exact bytes read, line terminator included, so a flush replays the
// upstream framing byte for byte; text is the trimmed form the relay
// parses.
type bufferedLine struct {
	raw  string
	text string
}

// streamChunk is the subset of an OpenAI stream chunk the relay inspects.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string          `json:"content"`
			ToolCalls json.RawMessage `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamRelay forwards an upstream SSE response to the client.
//
// # Description
//
// The relay starts in buffering mode, accumulating raw lines and decoded
// content fragments. The first chunk carrying a tool_calls delta or a
// tool_calls finish reason flips it to pass-through: buffered lines are
// flushed verbatim and the rest of the stream is copied byte-exact. A
// stream that ends while still buffering holds a plain answer; if the
// conversation language is not English the collected text is translated
// back before it reaches the client.
type StreamRelay struct {
	translator *TranslatorClient

	// Language is the detected conversation language; English disables
	// outbound translation.
	Language string

	// ClientWantsStream mirrors the request's stream flag and selects
	// between proxying the translator's SSE stream and splicing the
	// translated text into the final envelope.
	ClientWantsStream bool

	// PassedThrough reports whether the relay switched to pass-through.
	// Valid after Relay returns.
	PassedThrough bool
}

func NewStreamRelay(translator *TranslatorClient, language string, clientWantsStream bool) *StreamRelay {
	return &StreamRelay{
		translator:        translator,
		Language:          language,
		ClientWantsStream: clientWantsStream,
	}
}

// Relay consumes the upstream body and writes the client response.
func (r *StreamRelay) Relay(ctx context.Context, upstream io.Reader, w http.ResponseWriter) error {
	flusher, _ := w.(http.Flusher)

	var (
		buffered []bufferedLine
		content  strings.Builder
	)

	reader := bufio.NewReaderSize(upstream, streamScanBuffer)

	for {
		raw, err := reader.ReadString('\n')
		line := strings.TrimRight(raw, "\r\n")
		if raw != "" {
			buffered = append(buffered, bufferedLine{raw: raw, text: line})
		}

		if isToolCallLine(line) {
			r.PassedThrough = true
			if ferr := flushLines(w, flusher, buffered); ferr != nil {
				return ferr
			}
			return copyVerbatim(reader, w, flusher)
		}

		if fragment, ok := decodeContent(line); ok {
			content.WriteString(fragment)
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("upstream stream read failed: %w", err)
		}
	}

	// End of stream while still buffering: a plain answer.
	text := content.String()
	if text == "" || r.Language == LanguageEnglish {
		return flushLines(w, flusher, buffered)
	}
	return r.translateOut(ctx, text, buffered, w, flusher)
}

// translateOut converts the assistant answer back to the farmer's
// language. Translation failure replays the English original; the farmer
// gets an answer either way.
func (r *StreamRelay) translateOut(ctx context.Context, text string, buffered []bufferedLine, w http.ResponseWriter, flusher http.Flusher) error {
	if r.ClientWantsStream {
		stream, err := r.translator.TranslateStream(ctx, text, LanguageEnglish, r.Language)
		if err != nil {
			slog.Warn("Streaming translation failed, replaying English answer", "error", err)
			return flushLines(w, flusher, buffered)
		}
		defer stream.Close()
		return copyVerbatim(stream, w, flusher)
	}

	translated, err := r.translator.Translate(ctx, text, LanguageEnglish, r.Language)
	if err != nil {
		slog.Warn("Translation failed, replaying English answer", "error", err)
		return flushLines(w, flusher, buffered)
	}

	spliced, err := spliceContent(buffered, translated)
	if err != nil {
		slog.Warn("Could not splice translated answer, replaying English answer", "error", err)
		return flushLines(w, flusher, buffered)
	}
	_, err = w.Write(spliced)
	return err
}

// isToolCallLine reports whether an SSE data line carries a tool call.
func isToolCallLine(line string) bool {
	payload, ok := strings.CutPrefix(line, "data: ")
	if !ok || payload == "[DONE]" {
		return false
	}
	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return false
	}
	for _, choice := range chunk.Choices {
		if len(choice.Delta.ToolCalls) > 0 && string(choice.Delta.ToolCalls) != "null" {
			return true
		}
		if choice.FinishReason == "tool_calls" {
			return true
		}
	}
	return false
}

// decodeContent extracts the delta content fragment from an SSE data line.
func decodeContent(line string) (string, bool) {
	payload, ok := strings.CutPrefix(line, "data: ")
	if !ok || payload == "[DONE]" {
		return "", false
	}
	var chunk streamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, chunk.Choices[0].Delta.Content != ""
}

// spliceContent builds a single non-stream completion envelope from the
// last buffered data chunk, replacing its payload with the full text.
func spliceContent(buffered []bufferedLine, text string) ([]byte, error) {
	for i := len(buffered) - 1; i >= 0; i-- {
		payload, ok := strings.CutPrefix(buffered[i].text, "data: ")
		if !ok || payload == "[DONE]" {
			continue
		}
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			continue
		}

		message, err := json.Marshal(map[string]any{
			"role":    "assistant",
			"content": text,
		})
		if err != nil {
			return nil, err
		}
		choice, err := json.Marshal([]map[string]json.RawMessage{{
			"index":         json.RawMessage("0"),
			"message":       message,
			"finish_reason": json.RawMessage(`"stop"`),
		}})
		if err != nil {
			return nil, err
		}
		envelope["choices"] = choice
		envelope["object"] = json.RawMessage(`"chat.completion"`)
		return json.Marshal(envelope)
	}
	return nil, fmt.Errorf("no JSON envelope found in buffered stream")
}

// flushLines replays buffered lines with their original terminators so
// the client sees the exact bytes the upstream sent.
func flushLines(w http.ResponseWriter, flusher http.Flusher, lines []bufferedLine) error {
	for _, line := range lines {
		if _, err := io.WriteString(w, line.raw); err != nil {
			return err
		}
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

func copyVerbatim(src io.Reader, w http.ResponseWriter, flusher http.Flusher) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
