package video

import (
	"errors"
	"fmt"
)

var (
	ErrItemBusy            = errors.New("video is being converted")
	ErrAlreadyConverting   = errors.New("conversion already running")
	ErrNotConverting       = errors.New("no conversion running")
	ErrAlreadyTranscribing = errors.New("transcription already running")
	ErrNotTranscribing     = errors.New("no transcription running")
	ErrUnknownAction       = errors.New("unknown action")
)

// ItemNotFoundError is returned when an action targets an id that is not in the registry.
type ItemNotFoundError struct {
	ID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("video %s not found", e.ID)
}

// IsItemNotFound reports whether err is, or wraps, an ItemNotFoundError.
func IsItemNotFound(err error) bool {
	var nf *ItemNotFoundError
	return errors.As(err, &nf)
}

var ErrInvalidTransition = errors.New("invalid state transition")
