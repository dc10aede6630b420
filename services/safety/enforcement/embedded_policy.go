// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file bridges the build system and the runtime logic. It uses the Go
embed package to bake banned_chemicals.yaml directly into the compiled
binary so that the safety rules travel with the executable and cannot be
edited on the host filesystem.
*/

package enforcement

import (
	_ "embed"
)

// BannedChemicalPatterns holds the raw byte content of 'banned_chemicals.yaml'.
//
// The list tracks pesticides and agrochemicals whose use is prohibited or
// restricted in India under the Insecticides Act. Every answer produced by
// the retrieval cascade is scanned against these patterns before it reaches
// a farmer.
//
//go:embed banned_chemicals.yaml
var BannedChemicalPatterns []byte
