package video

import (
	"time"

	"github.com/eric2788/vidpost/pkg/ds"
)

type BatchStatus string

const (
	BatchIdle     BatchStatus = "idle"
	BatchRunning  BatchStatus = "running"
	BatchFinished BatchStatus = "finished"
	BatchFailed   BatchStatus = "failed"
)

type ItemState string

const (
	ItemQueued    ItemState = "queued"
	ItemLoading   ItemState = "loading"
	ItemConverted ItemState = "converted"
	ItemErrored   ItemState = "errored"
)

// File is one submitted video before it enters the registry.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Item is the tracked state of one submitted video.
// Items are values inside an immutable Snapshot and must not be modified in place.
type Item struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	ContentType        string     `json:"content_type,omitempty"`
	Size               int64      `json:"size"`
	PreviewURL         string     `json:"preview_url,omitempty"`
	IsLoading          bool       `json:"is_loading"`
	ConversionProgress int        `json:"conversion_progress"`
	ConvertedAt        *time.Time `json:"converted_at,omitempty"`
	TranscribedAt      *time.Time `json:"transcribed_at,omitempty"`
	LastError          string     `json:"last_error,omitempty"`

	// Source is released once the item has been converted, unless kept for reconversion.
	Source []byte `json:"-"`
}

func (i Item) State() ItemState {
	switch {
	case i.IsLoading:
		return ItemLoading
	case i.ConvertedAt != nil:
		return ItemConverted
	case i.LastError != "":
		return ItemErrored
	default:
		return ItemQueued
	}
}

// Snapshot is an immutable view of the whole batch.
type Snapshot struct {
	Version                 uint64                      `json:"version"`
	Items                   ds.OrderedMap[string, Item] `json:"items"`
	Status                  BatchStatus                 `json:"status"`
	IsConverting            bool                        `json:"is_converting"`
	FinishedConversionAt    *time.Time                  `json:"finished_conversion_at,omitempty"`
	IsTranscribing          bool                        `json:"is_transcribing"`
	FinishedTranscriptionAt *time.Time                  `json:"finished_transcription_at,omitempty"`
	LastError               string                      `json:"last_error,omitempty"`
}

func emptySnapshot() Snapshot {
	return Snapshot{
		Items:  ds.NewOrderedMap[string, Item](),
		Status: BatchIdle,
	}
}

// IDs returns the item ids in processing order.
func (s Snapshot) IDs() []string {
	return s.Items.Keys()
}

func (s Snapshot) Get(id string) (Item, bool) {
	return s.Items.Get(id)
}
