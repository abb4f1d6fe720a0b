package storage

import "errors"

var (
	ErrInvalidToken      = errors.New("invalid or already used upload token")
	ErrInvalidKey        = errors.New("invalid object key")
	ErrObjectNotFound    = errors.New("object not found")
	ErrObjectBusy        = errors.New("object is being written")
	ErrInsufficientSpace = errors.New("insufficient disk space")
)
