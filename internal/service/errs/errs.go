// Package errs holds the error taxonomy shared by the domain, the coordinator
// and the adapters. Callers classify errors with errors.As.
package errs

import "fmt"

// ValidationError is returned when a request violates a business rule.
// The caller must correct the request; it is never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidStateTransitionError is returned when an order is asked to move to a
// state that is not reachable from its current one.
type InvalidStateTransitionError struct {
	Operation string
	From      string
}

func (e *InvalidStateTransitionError) Error() string {
	from := e.From
	if from == "" {
		from = "UNINITIALIZED"
	}

	return fmt.Sprintf("Order is not in correct state for %s operation! Current state: %s", e.Operation, from)
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Could not find %s with %s id : %s", e.Entity, e.Entity, e.ID)
}

// PersistenceError is returned when a write did not produce a saved representation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "Could not " + e.Op
	}

	return fmt.Sprintf("Could not %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ProducerSubmissionError is returned when the broker client rejects a send
// before accepting it.
type ProducerSubmissionError struct {
	Topic string
	Key   string
	Err   error
}

func (e *ProducerSubmissionError) Error() string {
	return fmt.Sprintf("Error on producer with key: %s, topic: %s: %v", e.Key, e.Topic, e.Err)
}

func (e *ProducerSubmissionError) Unwrap() error {
	return e.Err
}

// DeliveryError completes a send handle when the broker fails a message after
// accepting it.
type DeliveryError struct {
	Topic string
	Key   string
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("Failed to deliver message with key: %s to topic: %s: %v", e.Key, e.Topic, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
