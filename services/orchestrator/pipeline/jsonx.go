// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON object out of raw LLM output.
//
// # Description
//
//	LLM output is untrusted text: it may wrap the object in markdown
//	fences, prefix it with prose, or trail it with commentary. This strips
//	fenced code blocks, then takes the span from the first '{' to the last
//	'}' and validates it.
//
// # Inputs
//
//   - raw: the model's text output.
//
// # Outputs
//
//   - []byte: a valid JSON object ready for json.Unmarshal.
//   - error: non-nil when no valid object could be found.
func ExtractJSON(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)

	// Strip markdown fences: ```json ... ``` or ``` ... ```
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object found in model output")
	}
	candidate := []byte(text[start : end+1])

	if !json.Valid(candidate) {
		return nil, fmt.Errorf("model output is not valid JSON")
	}
	return candidate, nil
}
