package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidFeedback  = errors.New("invalid feedback")
	ErrStoreUnavailable = errors.New("store unavailable")
)
