// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()
	s, err := NewScanner()
	require.NoError(t, err)
	require.NotEmpty(t, s.Chemicals)
	return s
}

func TestScan_CleanText(t *testing.T) {
	s := newTestScanner(t)
	res := s.Scan("Spray neem oil at 5ml per litre of water every 10 days.")
	assert.True(t, res.IsClean)
	assert.Empty(t, res.DetectedItems)
	assert.False(t, res.ContainsBanned())
}

func TestScan_DetectsBannedSubstance(t *testing.T) {
	s := newTestScanner(t)

	tests := []struct {
		name     string
		text     string
		chemical string
	}{
		{"direct name", "Apply monocrotophos 36 SL at 1.5 ml/l against stem borer.", "monocrotophos"},
		{"trade name", "Use Furadan granules in the root zone.", "carbofuran"},
		{"case insensitive", "ENDOSULFAN gives good control of aphids.", "endosulfan"},
		{"hyphenated variant", "methyl-parathion dust works well", "methyl parathion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Scan(tt.text)
			require.False(t, res.IsClean)
			require.Len(t, res.DetectedItems, 1)
			assert.Equal(t, tt.chemical, res.DetectedItems[0].Chemical)
			assert.Equal(t, Banned, res.DetectedItems[0].Severity)
			assert.True(t, res.ContainsBanned())
		})
	}
}

func TestScan_RestrictedIsNotBanned(t *testing.T) {
	s := newTestScanner(t)
	res := s.Scan("Chlorpyrifos 20 EC can be used for termite control in sugarcane.")
	require.False(t, res.IsClean)
	require.Len(t, res.DetectedItems, 1)
	assert.Equal(t, Restricted, res.DetectedItems[0].Severity)
	assert.False(t, res.ContainsBanned())
}

func TestScan_ChemicalReportedOnce(t *testing.T) {
	s := newTestScanner(t)
	res := s.Scan("Monocrotophos, also sold as Monocil, is an azodrin formulation.")
	require.False(t, res.IsClean)
	assert.Len(t, res.DetectedItems, 1)
}

func TestScan_MultipleChemicals(t *testing.T) {
	s := newTestScanner(t)
	res := s.Scan("Mix phorate granules with paraquat before sowing.")
	require.Len(t, res.DetectedItems, 2)
	// Banned substances sort ahead of restricted ones.
	assert.Equal(t, "phorate", res.DetectedItems[0].Chemical)
	assert.Equal(t, "paraquat", res.DetectedItems[1].Chemical)
}

func TestScan_NoSubstringFalsePositive(t *testing.T) {
	s := newTestScanner(t)
	// "thimetoxam"-like words must not trip the \b-anchored "thimet" pattern.
	res := s.Scan("Thiamethoxam 25 WG is a recommended seed treatment.")
	assert.True(t, res.IsClean)
}
