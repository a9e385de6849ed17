package notify

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy. Transport layers map
// these onto response statuses: missing payload is a client error, render
// failures are server errors, delivery failures are gateway errors.
var (
	ErrMissingPayload = errors.New("missing payload")
	ErrRender         = errors.New("render failed")
	ErrDelivery       = errors.New("delivery failed")
)

// WrapRender annotates an error from the template collaborator.
func WrapRender(err error) error {
	if err == nil {
		return ErrRender
	}
	return fmt.Errorf("%w: %v", ErrRender, err)
}

// WrapDelivery annotates an error from the delivery collaborator.
func WrapDelivery(err error) error {
	if err == nil {
		return ErrDelivery
	}
	return fmt.Errorf("%w: %v", ErrDelivery, err)
}
