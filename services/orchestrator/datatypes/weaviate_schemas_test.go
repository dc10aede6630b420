// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

// =============================================================================
// ReviewedQA Schema Tests
// =============================================================================

func TestGetReviewedQASchema_ReturnsValidClass(t *testing.T) {
	schema := GetReviewedQASchema()

	require.NotNil(t, schema)
	assert.Equal(t, "ReviewedQA", schema.Class)
	assert.Equal(t, "none", schema.Vectorizer)
	assert.Contains(t, schema.Description, "reviewed")
}

func TestGetReviewedQASchema_HasRequiredProperties(t *testing.T) {
	schema := GetReviewedQASchema()

	expectedProperties := []string{
		"question",
		"answer",
		"state_name",
		"state_code",
		"crop",
		"timestamp",
	}

	require.NotNil(t, schema.Properties)
	assert.Len(t, schema.Properties, len(expectedProperties))

	propertyNames := make(map[string]bool)
	for _, prop := range schema.Properties {
		propertyNames[prop.Name] = true
	}

	for _, expected := range expectedProperties {
		assert.True(t, propertyNames[expected], "Missing property: %s", expected)
	}
}

func TestGetReviewedQASchema_FilterablePropertiesUseFieldTokenization(t *testing.T) {
	schema := GetReviewedQASchema()

	for _, prop := range schema.Properties {
		switch prop.Name {
		case "state_name", "state_code", "crop":
			require.NotNil(t, prop.IndexFilterable, "%s should be filterable", prop.Name)
			assert.True(t, *prop.IndexFilterable)
			assert.Equal(t, "field", prop.Tokenization, "Tokenization mismatch for %s", prop.Name)
		}
	}
}

// =============================================================================
// GoldenQA Schema Tests
// =============================================================================

func TestGetGoldenQASchema_ReturnsValidClass(t *testing.T) {
	schema := GetGoldenQASchema()

	require.NotNil(t, schema)
	assert.Equal(t, "GoldenQA", schema.Class)
	assert.Equal(t, "none", schema.Vectorizer)
	assert.Contains(t, schema.Description, "golden")
}

func TestGetGoldenQASchema_PropertyDataTypes(t *testing.T) {
	schema := GetGoldenQASchema()

	propertyDataTypes := map[string]string{
		"question":   "text",
		"answer":     "text",
		"state_name": "text",
		"state_code": "text",
		"crop":       "text",
		"timestamp":  "number",
	}

	assert.Len(t, schema.Properties, len(propertyDataTypes))

	for _, prop := range schema.Properties {
		expectedType, exists := propertyDataTypes[prop.Name]
		require.True(t, exists, "Unexpected property: %s", prop.Name)
		require.NotEmpty(t, prop.DataType, "DataType for %s should not be empty", prop.Name)
		assert.Equal(t, expectedType, prop.DataType[0], "DataType mismatch for %s", prop.Name)
	}
}

// =============================================================================
// PackageOfPractice Schema Tests
// =============================================================================

func TestGetPackageOfPracticeSchema_ReturnsValidClass(t *testing.T) {
	schema := GetPackageOfPracticeSchema()

	require.NotNil(t, schema)
	assert.Equal(t, "PackageOfPractice", schema.Class)
	assert.Equal(t, "none", schema.Vectorizer)
}

func TestGetPackageOfPracticeSchema_PropertyDataTypes(t *testing.T) {
	schema := GetPackageOfPracticeSchema()

	propertyDataTypes := map[string]string{
		"content":    "text",
		"state_code": "text",
		"crop":       "text",
		"section":    "text",
		"timestamp":  "number",
	}

	assert.Len(t, schema.Properties, len(propertyDataTypes))

	for _, prop := range schema.Properties {
		expectedType, exists := propertyDataTypes[prop.Name]
		require.True(t, exists, "Unexpected property: %s", prop.Name)
		require.NotEmpty(t, prop.DataType)
		assert.Equal(t, expectedType, prop.DataType[0], "DataType mismatch for %s", prop.Name)
	}
}

// =============================================================================
// FAQVideo Schema Tests
// =============================================================================

func TestGetFAQVideoSchema_ReturnsValidClass(t *testing.T) {
	schema := GetFAQVideoSchema()

	require.NotNil(t, schema)
	assert.Equal(t, "FAQVideo", schema.Class)
	assert.Equal(t, "none", schema.Vectorizer)
	assert.Contains(t, schema.Description, "video")
}

func TestGetFAQVideoSchema_HasRequiredProperties(t *testing.T) {
	schema := GetFAQVideoSchema()

	expectedProperties := []string{
		"title",
		"transcript",
		"video_url",
		"language",
		"timestamp",
	}

	require.NotNil(t, schema.Properties)
	assert.Len(t, schema.Properties, len(expectedProperties))

	propertyNames := make(map[string]bool)
	for _, prop := range schema.Properties {
		propertyNames[prop.Name] = true
	}

	for _, expected := range expectedProperties {
		assert.True(t, propertyNames[expected], "Missing property: %s", expected)
	}
}

// =============================================================================
// Schema Consistency Tests
// =============================================================================

func TestSchemas_AllUseNoneVectorizer(t *testing.T) {
	schemas := map[string]*models.Class{
		"ReviewedQA":        GetReviewedQASchema(),
		"GoldenQA":          GetGoldenQASchema(),
		"PackageOfPractice": GetPackageOfPracticeSchema(),
		"FAQVideo":          GetFAQVideoSchema(),
	}

	for name, schema := range schemas {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, "none", schema.Vectorizer, "embeddings are computed externally")
			require.NotNil(t, schema.InvertedIndexConfig)
			assert.True(t, schema.InvertedIndexConfig.IndexNullState)
			assert.True(t, schema.InvertedIndexConfig.IndexTimestamps)
		})
	}
}

func TestSchemas_PropertiesHaveDescriptions(t *testing.T) {
	schemas := map[string]*models.Class{
		"ReviewedQA":        GetReviewedQASchema(),
		"GoldenQA":          GetGoldenQASchema(),
		"PackageOfPractice": GetPackageOfPracticeSchema(),
		"FAQVideo":          GetFAQVideoSchema(),
	}

	for name, schema := range schemas {
		t.Run(name, func(t *testing.T) {
			for _, prop := range schema.Properties {
				assert.NotEmpty(t, prop.Description, "property %s has no description", prop.Name)
			}
		})
	}
}
