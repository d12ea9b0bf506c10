package core

import "errors"

var (
	// ErrInvalidDetection is returned when model output does not match the detection contract
	ErrInvalidDetection = errors.New("invalid detection result")
	// ErrEmptyReply is returned when the model produced no reply text
	ErrEmptyReply = errors.New("empty reply from model")
	// ErrDelivery is returned when the email provider rejected the reply
	ErrDelivery = errors.New("failed to deliver reply")
	// ErrRunNotFound is returned when a run id is unknown to the store
	ErrRunNotFound = errors.New("run not found")
)
