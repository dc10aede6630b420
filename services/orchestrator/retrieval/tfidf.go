// Copyright (C) 2026 Annadata AI (engineering@annadata.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// TFIDFIndex holds term statistics over the FAQ video corpus for the
// lexical half of the hybrid search.
//
// # Description
//
// Weights use ln(1+tf) * ln(1+N/df) with cosine normalization, so scores
// land in [0,1] and mix cleanly with embedding certainty.
//
// # Thread Safety
//
// Safe for concurrent use. Queries take a read lock; the index is built
// once and replaced wholesale on reload.
type TFIDFIndex struct {
	mu     sync.RWMutex
	docs   map[string]map[string]int // docKey -> term -> raw count
	df     map[string]int
	nTotal int
}

// NewTFIDFIndex returns an empty index.
func NewTFIDFIndex() *TFIDFIndex {
	return &TFIDFIndex{
		docs: make(map[string]map[string]int),
		df:   make(map[string]int),
	}
}

// Add indexes a document under key. Re-adding a key replaces nothing; the
// index is rebuilt from scratch on reload instead.
func (i *TFIDFIndex) Add(key, text string) {
	terms := tokenize(text)
	if len(terms) == 0 {
		return
	}

	counts := make(map[string]int)
	for _, term := range terms {
		counts[term]++
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.docs[key]; exists {
		return
	}
	i.docs[key] = counts
	for term := range counts {
		i.df[term]++
	}
	i.nTotal++
}

// Len returns the number of indexed documents.
func (i *TFIDFIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.nTotal
}

// Score returns the cosine similarity between query and the document at
// key, 0 when the key is unknown or nothing overlaps.
func (i *TFIDFIndex) Score(query, key string) float64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	counts, ok := i.docs[key]
	if !ok {
		return 0
	}
	return i.cosine(queryCounts(query), counts)
}

// ScoredDoc is one lexical search hit.
type ScoredDoc struct {
	Key   string
	Score float64
}

// Search ranks all indexed documents against query, highest first,
// returning at most topK hits with a positive score.
func (i *TFIDFIndex) Search(query string, topK int) []ScoredDoc {
	i.mu.RLock()
	defer i.mu.RUnlock()

	qCounts := queryCounts(query)
	var hits []ScoredDoc
	for key, counts := range i.docs {
		if s := i.cosine(qCounts, counts); s > 0 {
			hits = append(hits, ScoredDoc{Key: key, Score: s})
		}
	}

	sort.Slice(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// cosine computes the normalized dot product of the weighted query and
// document vectors. Callers hold at least the read lock.
func (i *TFIDFIndex) cosine(qCounts, dCounts map[string]int) float64 {
	if i.nTotal == 0 || len(qCounts) == 0 {
		return 0
	}

	var dot, qNorm, dNorm float64
	for term, qc := range qCounts {
		qw := math.Log(1+float64(qc)) * i.idf(term)
		qNorm += qw * qw
		if dc, ok := dCounts[term]; ok {
			dw := math.Log(1+float64(dc)) * i.idf(term)
			dot += qw * dw
		}
	}
	for term, dc := range dCounts {
		dw := math.Log(1+float64(dc)) * i.idf(term)
		dNorm += dw * dw
	}

	if dot == 0 || qNorm == 0 || dNorm == 0 {
		return 0
	}
	return dot / (math.Sqrt(qNorm) * math.Sqrt(dNorm))
}

// idf returns ln(1+N/df) for a term, 0 for unseen terms.
func (i *TFIDFIndex) idf(term string) float64 {
	df := i.df[term]
	if df == 0 {
		return 0
	}
	return math.Log(1 + float64(i.nTotal)/float64(df))
}

func queryCounts(query string) map[string]int {
	counts := make(map[string]int)
	for _, term := range tokenize(query) {
		counts[term]++
	}
	return counts
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
