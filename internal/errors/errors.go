// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrAuthExpired         = errors.New("access token expired")
	ErrOffline             = errors.New("broker unreachable")
	ErrMarketClosed        = errors.New("market is closed")
	ErrBadQuote            = errors.New("quote has no usable last price")
	ErrInsufficientHistory = errors.New("insufficient history to seed RSI")
	ErrOrderRejected       = errors.New("order rejected by broker")
	ErrConfigInvalid       = errors.New("invalid configuration")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrCredentialAccess    = errors.New("credential access denied")
)

// BrokerError represents an error response from the broker API.
type BrokerError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *BrokerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broker error [%s %d]: %s: %v", e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("broker error [%s %d]: %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *BrokerError) Unwrap() error {
	return e.Err
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(endpoint string, statusCode int, message string, err error) *BrokerError {
	return &BrokerError{Endpoint: endpoint, StatusCode: statusCode, Message: message, Err: err}
}

// OrderError represents a failed order placement.
type OrderError struct {
	Symbol   string
	Exchange string
	Side     string
	Reason   string
	Err      error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error %s %s:%s: %s: %v", e.Side, e.Exchange, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error %s %s:%s: %s", e.Side, e.Exchange, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(symbol, exchange, side, reason string, err error) *OrderError {
	return &OrderError{Symbol: symbol, Exchange: exchange, Side: side, Reason: reason, Err: err}
}

// GuardrailError reports a trade blocked by a guardrail. It is a skip, not
// a failure: the cycle records it and moves on.
type GuardrailError struct {
	Guardrail string
	Reason    string
}

func (e *GuardrailError) Error() string {
	return fmt.Sprintf("guardrail [%s]: %s", e.Guardrail, e.Reason)
}

// NewGuardrailError creates a new GuardrailError.
func NewGuardrailError(guardrail, reason string) *GuardrailError {
	return &GuardrailError{Guardrail: guardrail, Reason: reason}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
