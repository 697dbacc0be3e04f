package dispatch

import (
	"errors"
	"fmt"
)

// ErrGatewayRequired is returned when an engine is built without a delivery gateway.
var ErrGatewayRequired = errors.New("dispatch: delivery gateway is required")

// TransitionError indicates a lifecycle move the notification state machine does not allow.
type TransitionError struct {
	NotificationID string
	From           State
	To             State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("notification %s: no transition from %s to %s", e.NotificationID, e.From, e.To)
}

func NewTransitionError(id string, from, to State) *TransitionError {
	return &TransitionError{NotificationID: id, From: from, To: to}
}

// IsTransitionError reports whether err wraps a TransitionError.
func IsTransitionError(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}

// DeliveryError wraps a gateway failure with the notification it concerned.
type DeliveryError struct {
	NotificationID string
	Err            error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver notification %s: %v", e.NotificationID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
