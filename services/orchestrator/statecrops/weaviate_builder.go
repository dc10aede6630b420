// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package statecrops

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ajrasakha.orchestrator.statecrops")

// scanLimit bounds how many objects a rebuild pulls per class. The QA
// stores are in the tens of thousands, well under this.
const scanLimit = 100000

// indianStates seeds the name-to-code map so codes resolve even for states
// that have no records yet.
var indianStates = map[string]string{
	"Andhra Pradesh":    "AP",
	"Arunachal Pradesh": "AR",
	"Assam":             "AS",
	"Bihar":             "BR",
	"Chhattisgarh":      "CG",
	"Goa":               "GA",
	"Gujarat":           "GJ",
	"Haryana":           "HR",
	"Himachal Pradesh":  "HP",
	"Jharkhand":         "JH",
	"Karnataka":         "KA",
	"Kerala":            "KL",
	"Madhya Pradesh":    "MP",
	"Maharashtra":       "MH",
	"Manipur":           "MN",
	"Meghalaya":         "ML",
	"Mizoram":           "MZ",
	"Nagaland":          "NL",
	"Odisha":            "OD",
	"Punjab":            "PB",
	"Rajasthan":         "RJ",
	"Sikkim":            "SK",
	"Tamil Nadu":        "TN",
	"Telangana":         "TS",
	"Tripura":           "TR",
	"Uttar Pradesh":     "UP",
	"Uttarakhand":       "UK",
	"West Bengal":       "WB",
}

// WeaviateBuilder rebuilds the manifest by scanning the QA and advisory
// classes for their (state, crop) pairs.
type WeaviateBuilder struct {
	client *weaviate.Client
}

// NewWeaviateBuilder creates a builder over the given client.
func NewWeaviateBuilder(client *weaviate.Client) *WeaviateBuilder {
	return &WeaviateBuilder{client: client}
}

var _ Builder = (*WeaviateBuilder)(nil)

// Build scans ReviewedQA, GoldenQA and PackageOfPractice and assembles
// per-source allow-lists.
//
// # Outputs
//
//   - *Manifest: freshly built, LastUpdated left for the caller to stamp.
//   - error: non-nil when the review store scan fails; the golden and PoP
//     scans degrade to empty allow-lists with a logged warning.
func (b *WeaviateBuilder) Build(ctx context.Context) (*Manifest, error) {
	ctx, span := tracer.Start(ctx, "BuildStateCropsManifest")
	defer span.End()

	m := NewManifest()
	for name, code := range indianStates {
		m.StateCodes[name] = code
	}

	if err := b.scanReviewed(ctx, m); err != nil {
		return nil, err
	}
	if err := b.scanGolden(ctx, m); err != nil {
		slog.Warn("Golden scan failed during manifest rebuild, allow-list left empty",
			"error", err)
	}
	if err := b.scanPoP(ctx, m); err != nil {
		slog.Warn("PoP scan failed during manifest rebuild, allow-list left empty",
			"error", err)
	}
	return m, nil
}

func (b *WeaviateBuilder) scanReviewed(ctx context.Context, m *Manifest) error {
	fields := []graphql.Field{
		{Name: "state_name"},
		{Name: "state_code"},
		{Name: "crop"},
	}
	result, err := b.client.GraphQL().Get().
		WithClassName("ReviewedQA").
		WithFields(fields...).
		WithLimit(scanLimit).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan the ReviewedQA class: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.ReviewedQAQueryResponse](result)
	if err != nil {
		return fmt.Errorf("failed to parse the ReviewedQA scan: %w", err)
	}

	for _, qa := range parsed.Get.ReviewedQA {
		if qa.StateName != "" {
			if _, known := m.StateCodes[qa.StateName]; !known && qa.StateCode != "" {
				m.StateCodes[qa.StateName] = qa.StateCode
			}
		}
		m.AddCrop(SourceReviewed, qa.StateCode, qa.Crop)
	}
	return nil
}

func (b *WeaviateBuilder) scanGolden(ctx context.Context, m *Manifest) error {
	fields := []graphql.Field{
		{Name: "state_name"},
		{Name: "state_code"},
		{Name: "crop"},
	}
	result, err := b.client.GraphQL().Get().
		WithClassName("GoldenQA").
		WithFields(fields...).
		WithLimit(scanLimit).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan the GoldenQA class: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.GoldenQAQueryResponse](result)
	if err != nil {
		return fmt.Errorf("failed to parse the GoldenQA scan: %w", err)
	}

	for _, qa := range parsed.Get.GoldenQA {
		if qa.StateName != "" {
			if _, known := m.StateCodes[qa.StateName]; !known && qa.StateCode != "" {
				m.StateCodes[qa.StateName] = qa.StateCode
			}
		}
		m.AddCrop(SourceGolden, qa.StateCode, qa.Crop)
	}
	return nil
}

func (b *WeaviateBuilder) scanPoP(ctx context.Context, m *Manifest) error {
	fields := []graphql.Field{
		{Name: "state_code"},
		{Name: "crop"},
	}
	result, err := b.client.GraphQL().Get().
		WithClassName("PackageOfPractice").
		WithFields(fields...).
		WithLimit(scanLimit).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan the PackageOfPractice class: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.PoPQueryResponse](result)
	if err != nil {
		return fmt.Errorf("failed to parse the PackageOfPractice scan: %w", err)
	}

	for _, pop := range parsed.Get.PackageOfPractice {
		m.AddCrop(SourcePoP, pop.StateCode, pop.Crop)
	}
	return nil
}
