// internal/game/errors.go
//
// Error taxonomy for game actions.
// Every rule violation is an *ActionError whose Kind is one of the sentinels below
// and whose Message is shown to players verbatim. Store failures wrap
// ErrStoreUnavailable or ErrConflict with fmt.Errorf("%w").

package game

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is; the HTTP layer maps each to a status.
var (
	ErrNotFound            = errors.New("game not found")
	ErrValidation          = errors.New("validation failed")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidPhase        = errors.New("invalid phase")
	ErrGameFull            = errors.New("game is full")
	ErrAllocationExhausted = errors.New("game code allocation exhausted")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrConflict            = errors.New("concurrent update conflict")
)

// ActionError carries a user-facing message together with its kind.
type ActionError struct {
	Kind    error
	Message string
}

func (e *ActionError) Error() string { return e.Message }

func (e *ActionError) Unwrap() error { return e.Kind }

func actionErr(kind error, format string, args ...any) error {
	return &ActionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds an ErrValidation error with a client-visible message.
func Validationf(format string, args ...any) error {
	return actionErr(ErrValidation, format, args...)
}
