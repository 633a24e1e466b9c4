package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrInvalidDate       = errors.New("invalid date")
	ErrBusy              = errors.New("another repair is in progress")
	ErrNotConfigured     = errors.New("not configured")
	ErrUpstream          = errors.New("upstream error")
)
