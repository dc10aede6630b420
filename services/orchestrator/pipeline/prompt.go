// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"
	"strings"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
)

const (
	personaLine = "You are Ajrasakha, an agricultural assistant for Indian farmers. Answer in clear, practical language a farmer can act on."

	skippedLine    = "Skipped (higher-priority data found)"
	irrelevantLine = "Data flagged as irrelevant by validation system."
	noRecordsLine  = "No records found."
	noVideoLine    = "VIDEO SOURCE: No relevant video found."
)

// intentInstruction selects the answer-structure guidance for the final
// prompt based on the classified intent.
func intentInstruction(intent datatypes.Intent) string {
	switch intent {
	case datatypes.IntentDisease:
		return "Structure your answer as: Description of the disease, Identification (how the farmer can confirm it in the field), Severity, and Control measures."
	case datatypes.IntentPest:
		return "Structure your answer as: Economic Threshold Level (ETL), Symptoms of infestation, and Chemical and Biological Control options."
	case datatypes.IntentFertilizer:
		return "Structure your answer around NPK recommendations and long-term Soil Health."
	default:
		return "Give a direct, practical answer grounded in the context below."
	}
}

// renderSourceBlock renders the context section for one data source. A
// slot the cascade never queried renders the skipped line; a queried slot
// with no hits renders the no-records line.
func renderSourceBlock(label string, slot SourceSlot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", label)
	switch {
	case slot.Relevant != nil && !*slot.Relevant:
		b.WriteString(irrelevantLine)
	case slot.Superseded():
		b.WriteString(skippedLine)
	case len(slot.Records) == 0:
		b.WriteString(noRecordsLine)
	default:
		for i, rec := range slot.Records {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[%d] %s", i+1, rec.Text)
		}
	}
	return b.String()
}

// renderVideoBlock renders the FAQ-video section.
func renderVideoBlock(relevant bool, records []datatypes.Record) string {
	if !relevant || len(records) == 0 {
		return noVideoLine
	}
	var b strings.Builder
	b.WriteString("VIDEO SOURCE:\n")
	for i, rec := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		url, _ := rec.Metadata["video_url"].(string)
		fmt.Fprintf(&b, "[%d] %s (%s)", i+1, rec.Text, url)
	}
	return b.String()
}

// BuildFinalPrompt assembles the downstream LLM prompt from the finished
// pipeline state. Section order is fixed: persona, intent guidance, the
// three data-source blocks, the video block, the original question, and
// the reviewer status line.
func BuildFinalPrompt(s *State) string {
	sections := []string{
		personaLine,
		intentInstruction(s.Slots.Intent),
		"CONTEXT:",
		renderSourceBlock("REVIEWED ANSWERS", s.Reviewed),
		renderSourceBlock("GOLDEN ANSWERS", s.Golden),
		renderSourceBlock("PACKAGE OF PRACTICES", s.PoP),
		renderVideoBlock(s.VideoRelevant, s.VideoRecords),
		fmt.Sprintf("QUESTION: %s", s.Query),
	}

	if s.UploadedToReviewer {
		sections = append(sections, "Apologize that verified local guidance is not yet available for this question, and tell the farmer it has been forwarded to a human expert for review.")
	} else {
		sections = append(sections, "Note: answered from existing knowledge sources.")
	}

	return strings.Join(sections, "\n\n")
}
