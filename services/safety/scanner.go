// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package safety scans answer text for agrochemicals that are banned or
// restricted in India before the answer is returned to a farmer.
package safety

import (
	"fmt"
	"strings"

	"github.com/annadata-ai/ajrasakha/services/safety/enforcement"
	"gopkg.in/yaml.v3"
)

// Scanner holds the compiled banned-chemical rules and checks candidate
// answers against them.
type Scanner struct {
	Chemicals []Chemical
}

// NewScanner initializes a Scanner from the policy embedded in the binary.
//
// It performs the following operations:
// 1. Unmarshals the embedded YAML data.
// 2. Compiles all regex patterns.
// 3. Sorts chemicals by priority so banned substances are reported first.
//
// Returns an error if the embedded YAML is malformed or contains an
// invalid regex.
func NewScanner() (*Scanner, error) {
	var file BannedChemicalFile
	if err := yaml.Unmarshal(enforcement.BannedChemicalPatterns, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded chemicals file: %w", err)
	}

	if err := file.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex: %w", err)
	}

	file.SortByPriority()

	return &Scanner{Chemicals: file.Chemicals}, nil
}

// Scan audits a candidate answer for mentions of regulated substances.
//
// # Description
//
//	Every chemical pattern is checked against the full text. A chemical is
//	reported at most once no matter how many of its patterns match. The
//	result is clean only when no pattern matched at all.
//
// # Inputs
//
//   - text: the candidate answer in its original language.
//
// # Outputs
//
//   - ScanResult: verdict plus the list of detected substances.
func (s *Scanner) Scan(text string) ScanResult {
	var detections []Detection
	for _, chem := range s.Chemicals {
		for _, re := range chem.CompiledPatterns {
			match := re.FindString(text)
			if match != "" {
				detections = append(detections, Detection{
					Chemical:    chem.Name,
					Severity:    chem.Severity,
					MatchedText: strings.TrimSpace(match),
				})
				break
			}
		}
	}
	return ScanResult{
		IsClean:       len(detections) == 0,
		DetectedItems: detections,
	}
}

// ContainsBanned reports whether any detection carries the banned severity.
// Restricted substances pass this check; callers decide separately whether
// to attach a caution note.
func (r ScanResult) ContainsBanned() bool {
	for _, d := range r.DetectedItems {
		if d.Severity == Banned {
			return true
		}
	}
	return false
}
