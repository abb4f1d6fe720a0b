package upload

import "fmt"

// SignedURLError means no destination could be obtained for an item.
type SignedURLError struct {
	ItemID string
	Err    error
}

func (e *SignedURLError) Error() string {
	return fmt.Sprintf("signed url request for video %s failed: %v", e.ItemID, e.Err)
}

func (e *SignedURLError) Unwrap() error {
	return e.Err
}

// TransportError means the bytes did not reach the destination.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("push to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
