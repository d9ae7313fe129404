package ingest

import "errors"

var (
	ErrUnknownToken     = errors.New("tracking token does not match any candidate")
	ErrUnknownRecipient = errors.New("no sent candidate for recipient address")
)
