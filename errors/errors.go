package errors

import "fmt"

var (
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrDuplicateUsername = fmt.Errorf("username already taken")
	ErrNotFound          = fmt.Errorf("not found")
	ErrBadPassword       = fmt.Errorf("bad password")
	ErrPasswordRequired  = fmt.Errorf("password required")
	ErrForbidden         = fmt.Errorf("forbidden")
	ErrUnauthorized      = fmt.Errorf("not authenticated")
	ErrStorageFailure    = fmt.Errorf("storage failure")
	ErrTokenGeneration   = fmt.Errorf("token generation failed")
	ErrInvalidToken      = fmt.Errorf("invalid token")
	ErrBlobTooLarge      = fmt.Errorf("payload exceeds size limit")
	ErrBlobFormat        = fmt.Errorf("unsupported image format")
	ErrWorkerPanic       = fmt.Errorf("worker panic")
)
