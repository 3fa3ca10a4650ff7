// Package errors provides the categorized error taxonomy shared by the
// service and API layers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents rejected input (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents missing resources
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents state conflicts (duplicates, insufficient funds)
	CategoryConflict ErrorCategory = "conflict"
	// CategoryAuthorization represents authorization failures
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryProvider represents external data provider failures
	CategoryProvider ErrorCategory = "provider"
	// CategoryDatabase represents database failures
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache failures
	CategoryCache ErrorCategory = "cache"
	// CategorySystem represents everything else (5xx)
	CategorySystem ErrorCategory = "system"
)

// Error codes used across the service layer.
const (
	CodeInvalidInput           = "INVALID_INPUT"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeUnknownTransactionType = "UNKNOWN_TRANSACTION_TYPE"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodePortfolioNotFound      = "PORTFOLIO_NOT_FOUND"
	CodeAssetNotFound          = "ASSET_NOT_FOUND"
	CodeTransactionNotFound    = "TRANSACTION_NOT_FOUND"
	CodeEmailTaken             = "EMAIL_TAKEN"
	CodeDuplicateAsset         = "DUPLICATE_ASSET"
	CodeConversionUnavailable  = "CONVERSION_UNAVAILABLE"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInternal               = "INTERNAL_ERROR"
	CodeDatabase               = "DATABASE_ERROR"
	CodeCache                  = "CACHE_ERROR"
)

// CategorizedError carries a category and an HTTP status alongside the
// machine-readable code returned to API clients.
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Ledger errors

// NewInvalidAmount rejects a non-positive transaction amount.
func NewInvalidAmount(amount string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidAmount,
		Message:    fmt.Sprintf("amount must be greater than zero, got %s", amount),
		Details:    map[string]interface{}{"amount": amount},
	}
}

// NewUnknownTransactionType rejects a type that is neither deposit nor withdraw.
func NewUnknownTransactionType(t string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeUnknownTransactionType,
		Message:    fmt.Sprintf("unsupported transaction type: %s", t),
		Details:    map[string]interface{}{"type": t},
	}
}

// NewInsufficientFunds rejects a withdrawal exceeding the account balance.
func NewInsufficientFunds(accountID string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeInsufficientFunds,
		Message:    "insufficient balance for withdrawal",
		Details:    map[string]interface{}{"accountId": accountID},
	}
}

// Not-found errors

// NewNotFound creates a not found error for the given resource kind.
func NewNotFound(code, resource, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       code,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details:    map[string]interface{}{"resource": resource, "id": id},
	}
}

// NewAccountNotFound reports a missing account.
func NewAccountNotFound(id string) *CategorizedError {
	return NewNotFound(CodeAccountNotFound, "account", id)
}

// NewUserNotFound reports a missing user.
func NewUserNotFound(id string) *CategorizedError {
	return NewNotFound(CodeUserNotFound, "user", id)
}

// NewPortfolioNotFound reports a missing portfolio.
func NewPortfolioNotFound(id string) *CategorizedError {
	return NewNotFound(CodePortfolioNotFound, "portfolio", id)
}

// NewAssetNotFound reports a missing asset within a portfolio.
func NewAssetNotFound(symbol string) *CategorizedError {
	return NewNotFound(CodeAssetNotFound, "asset", symbol)
}

// Conflict errors

// NewEmailTaken rejects a registration with an already-used email.
func NewEmailTaken(email string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeEmailTaken,
		Message:    fmt.Sprintf("email already registered: %s", email),
		Details:    map[string]interface{}{"email": email},
	}
}

// NewDuplicateAsset rejects adding a symbol already held in a portfolio.
func NewDuplicateAsset(symbol string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConflict,
		StatusCode: http.StatusConflict,
		Code:       CodeDuplicateAsset,
		Message:    fmt.Sprintf("portfolio already holds asset: %s", symbol),
		Details:    map[string]interface{}{"symbol": symbol},
	}
}

// NewInvalidInput rejects malformed request input.
func NewInvalidInput(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidInput,
		Message:    reason,
	}
}

// NewUnauthorized reports a failed credential check.
func NewUnauthorized(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       CodeUnauthorized,
		Message:    message,
	}
}

// Provider errors

// NewConversionUnavailable reports that no exchange rate has ever been
// fetched, so conversion must fail closed rather than return zero.
func NewConversionUnavailable(from, to string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusServiceUnavailable,
		Code:       CodeConversionUnavailable,
		Message:    fmt.Sprintf("no exchange rate available for %s->%s", from, to),
		Details:    map[string]interface{}{"from": from, "to": to},
		Cause:      cause,
	}
}

// System errors

// NewInternal wraps an unexpected failure.
func NewInternal(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabase wraps a database failure.
func NewDatabase(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("database error during %s", operation),
		Details:    map[string]interface{}{"operation": operation},
		Cause:      cause,
	}
}

// NewCache wraps a cache failure.
func NewCache(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeCache,
		Message:    fmt.Sprintf("cache error during %s", operation),
		Details:    map[string]interface{}{"operation": operation},
		Cause:      cause,
	}
}

// Categorize converts an arbitrary error into a CategorizedError,
// defaulting to an internal error.
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}
	var ce *CategorizedError
	if stderrors.As(err, &ce) {
		return ce
	}
	return NewInternal("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if ce := Categorize(err); ce != nil {
		return ce.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUserError reports whether the error maps to a 4xx status.
func IsUserError(err error) bool {
	ce := Categorize(err)
	return ce != nil && ce.StatusCode >= 400 && ce.StatusCode < 500
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code string) bool {
	var ce *CategorizedError
	if stderrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}
