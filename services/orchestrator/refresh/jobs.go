// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package refresh

import (
	"context"

	"github.com/annadata-ai/ajrasakha/services/orchestrator/observability"
	"github.com/annadata-ai/ajrasakha/services/orchestrator/statecrops"
)

// ManifestJob rebuilds the state-crops manifest from Weaviate when it has
// gone stale.
type ManifestJob struct {
	store   *statecrops.Store
	metrics *observability.Metrics
}

func NewManifestJob(store *statecrops.Store, metrics *observability.Metrics) *ManifestJob {
	return &ManifestJob{store: store, metrics: metrics}
}

func (j *ManifestJob) Name() string { return "state_crops_manifest" }

func (j *ManifestJob) Run(ctx context.Context) error {
	refreshed, err := j.store.RefreshIfStale(ctx)
	if err != nil {
		if j.metrics != nil {
			j.metrics.RecordManifestRefresh(false)
		}
		return err
	}
	if refreshed && j.metrics != nil {
		j.metrics.RecordManifestRefresh(true)
	}
	return nil
}

// Indexer is the FAQ retriever surface this package needs.
type Indexer interface {
	ReloadIndex(ctx context.Context) error
}

// FAQIndexJob rebuilds the lexical index over FAQ video transcripts.
type FAQIndexJob struct {
	indexer Indexer
}

func NewFAQIndexJob(indexer Indexer) *FAQIndexJob {
	return &FAQIndexJob{indexer: indexer}
}

func (j *FAQIndexJob) Name() string { return "faq_video_index" }

func (j *FAQIndexJob) Run(ctx context.Context) error {
	return j.indexer.ReloadIndex(ctx)
}

var (
	_ Job = (*ManifestJob)(nil)
	_ Job = (*FAQIndexJob)(nil)
)
