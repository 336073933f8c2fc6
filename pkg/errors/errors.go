package errors

import stderrors "errors"

// Metadata keys attached to quota errors.
const (
	MetaRemainingSeconds = "remaining_seconds"
	MetaRemainingAmount  = "remaining_amount"
	MetaItem             = "item"
	MetaNPC              = "npc"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // User-facing message
	Metadata map[string]string // Additional context for templating
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Kind returns the taxonomy category of the error's code.
func (e *Error) Kind() Kind {
	return e.Code.Kind()
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata for message templating.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrSystemDisabled  = New(CodeSystemDisabled, "sell system disabled")
	ErrFeatureDisabled = New(CodeFeatureOff, "feature disabled")
	ErrNPCNotFound     = New(CodeNPCNotFound, "npc not found")
	ErrSessionNotFound = New(CodeSessionNotFound, "no open session")
	ErrNPCDisabled     = New(CodeNPCDisabled, "npc disabled")
	ErrOnCooldown      = New(CodeOnCooldown, "on cooldown")
	ErrLimitReached    = New(CodeLimitReached, "daily limit reached")
	ErrLimitExceeded   = New(CodeLimitExceeded, "daily limit exceeded")
	ErrNoSellableItems = New(CodeNoSellableItems, "no sellable items")
	ErrInvalidItem     = New(CodeInvalidItem, "item not purchasable")
	ErrSlotsFull       = New(CodeSlotsFull, "sell slots full")
	ErrInvalidNPCID    = New(CodeInvalidNPCID, "invalid npc id")
	ErrNPCExists       = New(CodeNPCExists, "npc already exists")
	ErrSpawnFailed     = New(CodeSpawnFailed, "spawn failed")
	ErrSpawnInProgress = New(CodeSpawnInProgress, "spawn already in progress")
	ErrInvalidConfig   = New(CodeInvalidConfig, "invalid configuration")
)

// As extracts the domain error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the taxonomy category of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind()
	}
	return KindInternal
}

// CodeOf returns the code of err, CodeUnknown for foreign errors.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}
