package video

import (
	"fmt"
	"time"

	"github.com/eric2788/vidpost/utils"
)

type ActionType string

const (
	ActionUpload              ActionType = "upload"
	ActionRemove              ActionType = "remove"
	ActionStartConversion     ActionType = "start_conversion"
	ActionFinishConversion    ActionType = "finish_conversion"
	ActionMarkLoading         ActionType = "mark_loading"
	ActionUpdateProgress      ActionType = "update_progress"
	ActionMarkConverted       ActionType = "mark_converted"
	ActionMarkTranscribed     ActionType = "mark_transcribed"
	ActionStartTranscription  ActionType = "start_transcription"
	ActionFinishTranscription ActionType = "finish_transcription"
	ActionError               ActionType = "error"
)

// Action describes one state transition. Only the fields relevant to Type are read.
type Action struct {
	Type     ActionType
	ID       string
	Items    []Item
	Progress int
	Err      string
	At       time.Time
	// KeepSource retains the source bytes on mark_converted so the item can be converted again.
	KeepSource bool
}

// Reduce applies a to s and returns the next snapshot. s is never modified.
// A transition that changes nothing returns s as is, with the same version.
func Reduce(s Snapshot, a Action) (Snapshot, error) {
	next := s
	switch a.Type {
	case ActionUpload:
		items := s.Items
		for _, item := range a.Items {
			if items.Has(item.ID) {
				return s, fmt.Errorf("video %s already exists", item.ID)
			}
			items = items.Set(item.ID, item)
		}
		next.Items = items

	case ActionRemove:
		item, ok := s.Items.Get(a.ID)
		if !ok {
			return s, &ItemNotFoundError{ID: a.ID}
		} else if item.IsLoading {
			return s, ErrItemBusy
		}
		next.Items = s.Items.Delete(a.ID)

	case ActionStartConversion:
		if s.Status == BatchRunning {
			return s, ErrAlreadyConverting
		}
		next.Status = BatchRunning
		next.IsConverting = true
		next.FinishedConversionAt = nil
		next.LastError = ""

	case ActionFinishConversion:
		if s.Status != BatchRunning {
			return s, ErrNotConverting
		}
		at := a.At
		next.Status = BatchFinished
		next.IsConverting = false
		next.FinishedConversionAt = &at

	case ActionMarkLoading:
		return updateItem(s, a.ID, func(item Item) (Item, error) {
			if item.IsLoading {
				return item, fmt.Errorf("%w: %s is already loading", ErrInvalidTransition, item.ID)
			}
			item.IsLoading = true
			item.ConversionProgress = 0
			item.ConvertedAt = nil
			item.TranscribedAt = nil
			item.LastError = ""
			return item, nil
		})

	case ActionUpdateProgress:
		item, ok := s.Items.Get(a.ID)
		if !ok {
			return s, &ItemNotFoundError{ID: a.ID}
		}
		progress := utils.Clamp(a.Progress, 0, 100)
		// late events after the item left loading are dropped
		if !item.IsLoading || item.ConversionProgress == progress {
			return s, nil
		}
		return updateItem(s, a.ID, func(item Item) (Item, error) {
			item.ConversionProgress = progress
			return item, nil
		})

	case ActionMarkConverted:
		return updateItem(s, a.ID, func(item Item) (Item, error) {
			if !item.IsLoading {
				return item, fmt.Errorf("%w: %s is not loading", ErrInvalidTransition, item.ID)
			}
			at := a.At
			item.IsLoading = false
			item.ConversionProgress = 100
			item.ConvertedAt = &at
			if !a.KeepSource {
				item.Source = nil
			}
			return item, nil
		})

	case ActionMarkTranscribed:
		return updateItem(s, a.ID, func(item Item) (Item, error) {
			if item.ConvertedAt == nil {
				return item, fmt.Errorf("%w: %s is not converted yet", ErrInvalidTransition, item.ID)
			}
			at := a.At
			item.TranscribedAt = &at
			return item, nil
		})

	case ActionStartTranscription:
		if s.IsTranscribing {
			return s, ErrAlreadyTranscribing
		}
		next.IsTranscribing = true
		next.FinishedTranscriptionAt = nil

	case ActionFinishTranscription:
		if !s.IsTranscribing {
			return s, ErrNotTranscribing
		}
		at := a.At
		next.IsTranscribing = false
		next.FinishedTranscriptionAt = &at

	case ActionError:
		next.Status = BatchFailed
		next.IsConverting = false
		next.IsTranscribing = false
		next.LastError = a.Err
		if item, ok := s.Items.Get(a.ID); ok {
			item.IsLoading = false
			item.LastError = a.Err
			next.Items = s.Items.Set(a.ID, item)
		}

	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}

	next.Version = s.Version + 1
	return next, nil
}

func updateItem(s Snapshot, id string, fn func(Item) (Item, error)) (Snapshot, error) {
	item, ok := s.Items.Get(id)
	if !ok {
		return s, &ItemNotFoundError{ID: id}
	}
	updated, err := fn(item)
	if err != nil {
		return s, err
	}
	next := s
	next.Items = s.Items.Set(id, updated)
	next.Version = s.Version + 1
	return next, nil
}
