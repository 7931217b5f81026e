package services

import (
	"errors"
	"fmt"
)

// Fehlerarten, die per errors.Is klassifiziert werden.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrUpstream    = errors.New("upstream error")
	ErrNetwork     = errors.New("network error")
	ErrPersistence = errors.New("persistence error")
)

// wrap hängt die Fehlerart an eine konkrete Ursache.
func wrap(kind error, msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", msg, kind)
	}
	return fmt.Errorf("%s: %w: %w", msg, kind, err)
}

// maxReportedErrors begrenzt die Fehlerliste in Batch-Reports.
const maxReportedErrors = 10
