// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the slot bundle extracted from a farmer query. For
// retrieved records see records.go; for Weaviate query parsing see
// weaviate_query.go.
package datatypes

import "strings"

// Intent is the question category extracted from a farmer query. It selects
// the answer-structure matrix in the final prompt and gates the greeting
// short-circuit.
type Intent string

const (
	IntentDisease    Intent = "disease"
	IntentPest       Intent = "pest"
	IntentFertilizer Intent = "fertilizer"
	IntentGeneral    Intent = "general"
	IntentGreeting   Intent = "greeting"
)

// ParseIntent maps a raw model output onto a known Intent. Anything
// unrecognized becomes IntentGeneral.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentDisease:
		return IntentDisease
	case IntentPest:
		return IntentPest
	case IntentFertilizer:
		return IntentFertilizer
	case IntentGreeting:
		return IntentGreeting
	default:
		return IntentGeneral
	}
}

// Slots is the structured extraction from a raw query. Exactly one bundle is
// produced per request; StateCode is either empty or a known two-letter code.
//
// # Fields
//
//   - Intent: question category, defaults to IntentGeneral.
//   - StateName: full state name as canonicalized against the state map.
//   - StateCode: two-letter state code, empty when the state is unknown.
//   - CropName: the crop as extracted, canonicalized later by validation.
//   - LocationProvided: whether the query carried any usable location.
type Slots struct {
	Intent           Intent `json:"intent"`
	StateName        string `json:"state"`
	StateCode        string `json:"state_code"`
	CropName         string `json:"crop"`
	LocationProvided bool   `json:"location_provided"`
}

// DefaultSlots is the fallback bundle used when extraction output cannot be
// parsed.
func DefaultSlots() Slots {
	return Slots{
		Intent:           IntentGeneral,
		LocationProvided: false,
	}
}

// HasLocation reports whether either the state name or code is known.
func (s Slots) HasLocation() bool {
	return s.StateName != "" || s.StateCode != ""
}
