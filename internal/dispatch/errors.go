package dispatch

import "errors"

// Sentinel errors for the dispatch service layer.
var (
	ErrNotFound    = errors.New("send candidate not found")
	ErrAlreadySent = errors.New("candidate has already been sent")
	ErrNoProfile   = errors.New("tenant has no profile")
)
