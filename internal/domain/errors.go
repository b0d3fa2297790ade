package domain

import "errors"

// Sentinel errors for the drive subsystem. Services return these (possibly
// wrapped with %w); handlers map them to stable machine-readable kinds.
var (
	ErrAuthRequired  = errors.New("authentication required")
	ErrInvalidName   = errors.New("invalid name")
	ErrAccessDenied  = errors.New("access denied")
	ErrNotFound      = errors.New("not found")
	ErrDuplicatePath = errors.New("a folder with this path already exists")
	ErrInvalidMove   = errors.New("cannot move folder into itself or its own subfolder")
	ErrPathConflict  = errors.New("restore path is occupied by a live folder")
	ErrRootImmutable = errors.New("root folder cannot be modified")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrInvalidRange  = errors.New("requested range not satisfiable")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrIOFailure     = errors.New("storage io failure")
)
