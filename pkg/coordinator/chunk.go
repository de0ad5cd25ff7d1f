// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package coordinator

import (
	"encoding/json"
	"time"
)

// Status is a ChunkState's lifecycle status (spec.md I5: pending ->
// processing -> completed).
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// ChunkState is the serialized value held per-field in the coordination
// service's chunks hash (spec.md §4.1 "Persistent state").
type ChunkState struct {
	ChunkID     int    `json:"chunkId"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
	Status      Status `json:"status"`
	WorkerID    string `json:"workerId,omitempty"`
	LastUpdate  string `json:"lastUpdate,omitempty"` // RFC3339; empty until first touched

	ProcessedCount    int `json:"processedCount"`
	ProvidersCreated  int `json:"providersCreated"`
	ProductsCreated   int `json:"productsCreated"`
	ProductsUpdated   int `json:"productsUpdated"`
	HistoriesFilled   int `json:"historiesFilled"`
	MultimediaCreated int `json:"multimediaCreated"`
	DuplicatesSkipped int `json:"duplicatesSkipped"`
	Errors            int `json:"errors"`
}

// Result carries the per-chunk metrics the driver (C8) aggregates and
// reports back to the scheduler via MarkChunkCompleted (spec.md §4.2).
type Result struct {
	Processed         int
	ProvidersCreated  int
	ProductsCreated   int
	ProductsUpdated   int
	HistoriesFilled   int
	MultimediaCreated int
	DuplicatesSkipped int
	Errors            int
}

func (c ChunkState) marshal() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalChunk(raw string) (ChunkState, error) {
	var c ChunkState
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ChunkState{}, err
	}
	return c, nil
}

func nowRFC3339(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}
