// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

type Severity string

const (
	Banned     Severity = "banned"
	Restricted Severity = "restricted"
)

// BannedChemicalFile mirrors the structure of the embedded
// banned_chemicals.yaml document.
type BannedChemicalFile struct {
	Chemicals []Chemical `yaml:"chemicals"`
}

// Chemical is a single regulated substance together with the regex patterns
// that detect mentions of it, including common misspellings and trade names.
type Chemical struct {
	Name             string           `yaml:"name"`
	Description      string           `yaml:"description"`
	Severity         Severity         `yaml:"severity"`
	Priority         int              `yaml:"priority"`
	Patterns         []string         `yaml:"patterns"`
	CompiledPatterns []*regexp.Regexp `yaml:"-"`
}

func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	incoming := Severity(raw)
	switch incoming {
	case Banned, Restricted:
		*s = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Severity: %q", incoming)
	}
}

func (f *BannedChemicalFile) CompileRegexes() error {
	for i := range f.Chemicals {
		chem := &f.Chemicals[i]
		for _, raw := range chem.Patterns {
			re, err := regexp.Compile(raw)
			if err != nil {
				return fmt.Errorf("failed to compile the regex %s: %w", raw, err)
			}
			chem.CompiledPatterns = append(chem.CompiledPatterns, re)
		}
	}
	return nil
}

func (f *BannedChemicalFile) SortByPriority() {
	sort.Slice(f.Chemicals, func(i, j int) bool {
		return f.Chemicals[i].Priority > f.Chemicals[j].Priority
	})
}

// Detection records a single flagged substance in a scanned answer.
type Detection struct {
	Chemical    string   `json:"chemical"`
	Severity    Severity `json:"severity"`
	MatchedText string   `json:"matched_text"`
}

// ScanResult is the verdict for one piece of answer text.
type ScanResult struct {
	IsClean       bool        `json:"is_clean"`
	DetectedItems []Detection `json:"detected_items"`
}
