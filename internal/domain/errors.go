package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrConnectionUnavailable = errors.New("ledger connection unavailable")
	ErrSubmissionRejected    = errors.New("submission rejected")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidName           = errors.New("invalid campaign name")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrConsistencyFault      = errors.New("consistency fault")
)
