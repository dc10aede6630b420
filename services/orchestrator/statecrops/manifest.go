// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package statecrops manages the state-crops manifest: the per-source
// allow-lists of (state, crop) pairs that gate the retrieval cascade, plus
// the state-name-to-code map.
//
// The manifest is a generated artifact. It is rebuilt from the review store
// at most every six hours, written atomically (tmp + rename), and swapped
// into readers through an atomic pointer so lookups never block on refresh.
package statecrops

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// StalenessWindow is how old a manifest may get before a refresh is due.
const StalenessWindow = 6 * time.Hour

// SourceKey names a per-source allow-list inside the manifest.
type SourceKey string

const (
	SourceReviewed SourceKey = "reviewed"
	SourceGolden   SourceKey = "golden"
	SourcePoP      SourceKey = "pop"
)

// Manifest is the on-disk and in-memory shape of the state-crops artifact.
//
// # Fields
//
//   - StateCodes: full state name to two-letter code.
//   - Sources: per source, state code to sorted crop list.
//   - LastUpdated: RFC 3339 timestamp of the last rebuild; drives staleness.
type Manifest struct {
	StateCodes  map[string]string                 `json:"state_codes"`
	Sources     map[SourceKey]map[string][]string `json:"sources"`
	LastUpdated time.Time                         `json:"last_updated"`
}

// NewManifest returns an empty manifest with all maps allocated.
func NewManifest() *Manifest {
	return &Manifest{
		StateCodes: make(map[string]string),
		Sources: map[SourceKey]map[string][]string{
			SourceReviewed: {},
			SourceGolden:   {},
			SourcePoP:      {},
		},
	}
}

// IsStale reports whether the staleness window has elapsed since the last
// rebuild. A zero LastUpdated is always stale.
func (m *Manifest) IsStale(now time.Time) bool {
	return now.Sub(m.LastUpdated) >= StalenessWindow
}

// SupportsState reports whether the given source has any crops for the
// state code.
func (m *Manifest) SupportsState(source SourceKey, stateCode string) bool {
	return len(m.Sources[source][stateCode]) > 0
}

// Crops returns the allow-list for (source, stateCode), nil when the state
// is unsupported.
func (m *Manifest) Crops(source SourceKey, stateCode string) []string {
	return m.Sources[source][stateCode]
}

// NameForCode returns the full state name for a two-letter code.
func (m *Manifest) NameForCode(code string) (string, bool) {
	for name, c := range m.StateCodes {
		if c == code {
			return name, true
		}
	}
	return "", false
}

// NormalizeState resolves a raw extracted state value to a canonical
// (name, code) pair.
//
// # Description
//
//	Resolution order:
//	 1. exact case-insensitive match against known state names
//	 2. substring match in both directions ("West Bengal" vs "Bengal")
//	 3. a two-letter uppercase raw value is treated as a code
//
// # Inputs
//
//   - raw: the state as extracted from the query, any casing.
//
// # Outputs
//
//   - name, code: canonical values from the manifest.
//   - ok: false when nothing matched; callers fall back to no-location.
func (m *Manifest) NormalizeState(raw string) (name string, code string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", false
	}
	upper := strings.ToUpper(trimmed)

	for stateName, stateCode := range m.StateCodes {
		if strings.ToUpper(stateName) == upper {
			return stateName, stateCode, true
		}
	}

	for stateName, stateCode := range m.StateCodes {
		upperName := strings.ToUpper(stateName)
		if strings.Contains(upperName, upper) || strings.Contains(upper, upperName) {
			return stateName, stateCode, true
		}
	}

	if len(upper) == 2 && upper == trimmed {
		if stateName, found := m.NameForCode(upper); found {
			return stateName, upper, true
		}
	}

	return "", "", false
}

// AddCrop records a crop under (source, stateCode), keeping the list sorted
// and free of case-insensitive duplicates.
func (m *Manifest) AddCrop(source SourceKey, stateCode, crop string) {
	if stateCode == "" || crop == "" {
		return
	}
	if m.Sources[source] == nil {
		m.Sources[source] = make(map[string][]string)
	}
	existing := m.Sources[source][stateCode]
	for _, c := range existing {
		if strings.EqualFold(c, crop) {
			return
		}
	}
	existing = append(existing, crop)
	sort.Strings(existing)
	m.Sources[source][stateCode] = existing
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the manifest file: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse the manifest file: %w", err)
	}
	if m.StateCodes == nil {
		m.StateCodes = make(map[string]string)
	}
	if m.Sources == nil {
		m.Sources = make(map[SourceKey]map[string][]string)
	}
	return &m, nil
}

// WriteAtomic writes the manifest to path via a temporary file and rename,
// so a concurrent reader never observes a partial document.
func (m *Manifest) WriteAtomic(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal the manifest: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".state_crops-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create a temp manifest file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write the temp manifest file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close the temp manifest file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename the temp manifest file: %w", err)
	}
	return nil
}
