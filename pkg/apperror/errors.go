package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidCredentials() *AppError {
	return New("SEC_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrInvalidSweepToken() *AppError {
	return New("SEC_003", "Invalid sweep token", http.StatusForbidden)
}

// ---- Subscription Business Logic (SUB) ----

func ErrNotFound(entity string) *AppError {
	return New("SUB_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrDuplicateOrder() *AppError {
	return New("SUB_002", "Order number already exists", http.StatusConflict)
}

func ErrNoActiveSubscription() *AppError {
	return New("SUB_003", "No active subscription for this user and plan", http.StatusNotFound)
}

func ErrNoMandate() *AppError {
	return New("SUB_004", "Subscription has no gateway mandate to cancel", http.StatusConflict)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("SUB_005", fmt.Sprintf("Illegal order transition %s -> %s", from, to), http.StatusConflict)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// ErrLedgerUnavailable signals that the webhook ledger write failed. It is
// the one webhook-path error surfaced with a retryable status so the
// gateway re-delivers the event.
func ErrLedgerUnavailable(err error) *AppError {
	return Wrap("SYS_002", "Webhook ledger unavailable", http.StatusServiceUnavailable, err)
}

// ErrEventInFlight signals that a concurrent delivery of the same
// fingerprint holds the ledger claim. Retryable: by the time the gateway
// redelivers, the winner has marked the entry processed.
func ErrEventInFlight() *AppError {
	return New("SYS_004", "Event already being processed", http.StatusServiceUnavailable)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a validation error.
func Validation(message string) *AppError {
	return New("SUB_006", message, http.StatusBadRequest)
}
