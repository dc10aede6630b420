// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

func GetReviewedQASchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "ReviewedQA",
		Description: "An expert-reviewed question and answer pair from the field team.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "question",
				DataType:     []string{"text"},
				Description:  "The farmer's original question.",
				Tokenization: "word",
			},
			{
				Name:         "answer",
				DataType:     []string{"text"},
				Description:  "The reviewed answer text.",
				Tokenization: "word",
			},
			{
				Name:            "state_name",
				DataType:        []string{"text"},
				Description:     "Full Indian state name, e.g. 'Punjab'.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "state_code",
				DataType:        []string{"text"},
				Description:     "Two-letter state code, e.g. 'PB'.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "crop",
				DataType:        []string{"text"},
				Description:     "The crop the answer applies to.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the pair was reviewed.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func GetGoldenQASchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "GoldenQA",
		Description: "A curated question and answer pair from the golden dataset.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "question",
				DataType:     []string{"text"},
				Description:  "The canonical question.",
				Tokenization: "word",
			},
			{
				Name:         "answer",
				DataType:     []string{"text"},
				Description:  "The curated answer text.",
				Tokenization: "word",
			},
			{
				Name:            "state_name",
				DataType:        []string{"text"},
				Description:     "Full Indian state name.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "state_code",
				DataType:        []string{"text"},
				Description:     "Two-letter state code.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "crop",
				DataType:        []string{"text"},
				Description:     "The crop the answer applies to.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the pair was curated.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func GetPackageOfPracticeSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "PackageOfPractice",
		Description: "A chunk of a state agricultural department Package of Practices advisory.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "The advisory text chunk.",
				Tokenization: "word",
			},
			{
				Name:            "state_code",
				DataType:        []string{"text"},
				Description:     "Two-letter state code the advisory was published for.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "crop",
				DataType:        []string{"text"},
				Description:     "The crop the advisory covers.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "section",
				DataType:        []string{"text"},
				Description:     "Advisory section, e.g. 'sowing', 'plant protection'.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the chunk was ingested.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func GetFAQVideoSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       "FAQVideo",
		Description: "A frequently-asked-question video with its transcript.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexNullState:  true,
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:         "title",
				DataType:     []string{"text"},
				Description:  "The video title.",
				Tokenization: "word",
			},
			{
				Name:         "transcript",
				DataType:     []string{"text"},
				Description:  "Full transcript of the video audio.",
				Tokenization: "word",
			},
			{
				Name:            "video_url",
				DataType:        []string{"text"},
				Description:     "Public URL of the video.",
				Tokenization:    "field",
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "language",
				DataType:        []string{"text"},
				Description:     "Spoken language of the video.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "timestamp",
				DataType:        []string{"number"},
				Description:     "Unix milliseconds when the video was ingested.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func EnsureWeaviateSchema(client *weaviate.Client) {
	// A list of functions that return our schema definitions.
	schemaGetters := []func() *models.Class{
		GetReviewedQASchema,
		GetGoldenQASchema,
		GetPackageOfPracticeSchema,
		GetFAQVideoSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		// Check if the class already exists.
		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
		if err != nil {
			// If it doesn't exist, the client returns an error. We can now create it.
			slog.Info("Schema not found, creating it...", "class", class.Class)
			err := client.Schema().ClassCreator().WithClass(class).Do(context.Background())
			if err != nil {
				// If we fail to create it, it's a fatal error.
				log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
}
