package domain

import (
	"errors"
	"fmt"
)

var (
	ErrExtraction   = errors.New("extraction failed")
	ErrIndexWrite   = errors.New("index write failed")
	ErrIndexRead    = errors.New("index read failed")
	ErrGeneration   = errors.New("generation failed")
	ErrInvalidQuery = errors.New("invalid query")

	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
