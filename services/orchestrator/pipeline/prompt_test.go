// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"fence without language tag", "```\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"surrounded by chatter", `Sure, here you go: {"a": 1} hope that helps`, `{"a": 1}`, false},
		{"nested braces", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`, false},
		{"no object", "there is nothing here", "", true},
		{"invalid json between braces", `{"a": }`, "", true},
		{"empty input", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}

func TestIntentInstructionMatrix(t *testing.T) {
	assert.Contains(t, intentInstruction(datatypes.IntentDisease), "Severity")
	assert.Contains(t, intentInstruction(datatypes.IntentPest), "ETL")
	assert.Contains(t, intentInstruction(datatypes.IntentFertilizer), "NPK")
	assert.Contains(t, intentInstruction(datatypes.IntentGeneral), "practical answer")
	assert.Contains(t, intentInstruction(datatypes.IntentGreeting), "practical answer")
}

func TestBuildFinalPromptSectionOrder(t *testing.T) {
	s := NewState("req-1", "stem borer in wheat")
	s.Slots = punjabSlots()
	s.Reviewed = SourceSlot{
		Records:  []datatypes.Record{qaRecord(datatypes.SourceReviewed, "Release Trichogramma cards.", 0.9)},
		Relevant: setFlag(true),
		Searched: true,
	}
	s.VideoRecords = []datatypes.Record{videoRec("Stem borer management", "https://videos.example/v1")}
	s.VideoRelevant = true

	prompt := BuildFinalPrompt(s)

	order := []string{
		personaLine,
		"ETL",
		"REVIEWED ANSWERS",
		"Release Trichogramma cards.",
		"GOLDEN ANSWERS",
		skippedLine,
		"PACKAGE OF PRACTICES",
		"VIDEO SOURCE",
		"https://videos.example/v1",
		"QUESTION: stem borer in wheat",
		"answered from existing knowledge sources",
	}
	last := -1
	for _, marker := range order {
		idx := strings.Index(prompt, marker)
		assert.Greater(t, idx, last, "marker %q out of order", marker)
		last = idx
	}
}

func TestBuildFinalPromptIrrelevantAndEscalated(t *testing.T) {
	s := NewState("req-2", "obscure question")
	s.Slots = punjabSlots()
	s.Reviewed = SourceSlot{
		Records:  []datatypes.Record{qaRecord(datatypes.SourceReviewed, "Off-topic.", 0.75)},
		Relevant: setFlag(false),
		Searched: true,
	}
	s.Golden = SourceSlot{Relevant: setFlag(false), Searched: true, Records: []datatypes.Record{qaRecord(datatypes.SourceGolden, "Also off-topic.", 0.72)}}
	s.UploadedToReviewer = true

	prompt := BuildFinalPrompt(s)

	assert.Equal(t, 2, strings.Count(prompt, irrelevantLine))
	assert.Contains(t, prompt, noVideoLine)
	assert.Contains(t, prompt, "forwarded to a human expert")
	assert.NotContains(t, prompt, "Off-topic.\n\nGOLDEN")
}

func TestBuildFinalPromptDistinguishesEmptyFromSkipped(t *testing.T) {
	s := NewState("req-3", "late blight in potato")
	s.Slots = punjabSlots()
	s.Reviewed = SourceSlot{Searched: true}
	s.Golden = SourceSlot{
		Records:  []datatypes.Record{qaRecord(datatypes.SourceGolden, "Spray mancozeb at first symptoms.", 0.85)},
		Relevant: setFlag(true),
		Searched: true,
	}

	prompt := BuildFinalPrompt(s)

	reviewedBlock := between(t, prompt, "REVIEWED ANSWERS", "GOLDEN ANSWERS")
	assert.Contains(t, reviewedBlock, noRecordsLine)
	assert.NotContains(t, reviewedBlock, skippedLine)

	popBlock := between(t, prompt, "PACKAGE OF PRACTICES", "VIDEO SOURCE")
	assert.Contains(t, popBlock, skippedLine)
	assert.NotContains(t, popBlock, noRecordsLine)
}

// between returns the slice of s strictly inside the first occurrence of the
// two markers.
func between(t *testing.T, s, start, end string) string {
	t.Helper()
	i := strings.Index(s, start)
	j := strings.Index(s, end)
	if i < 0 || j < 0 || j < i {
		t.Fatalf("markers %q and %q not ordered in prompt", start, end)
	}
	return s[i+len(start) : j]
}
