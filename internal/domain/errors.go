package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("resource not found")
	ErrConflict              = errors.New("conflict")
	ErrNotConnected          = errors.New("chat not connected")
	ErrConnectFailed         = errors.New("chat connect failed")
	ErrManifestUnavailable   = errors.New("cache manifest unavailable")
	ErrArchiveIncomplete     = errors.New("archive copy incomplete")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
