package domain

import "errors"

var (
	ErrEmptyMessage    = errors.New("empty message")
	ErrMessageTooLong  = errors.New("message too long")
	ErrInvalidUser     = errors.New("invalid user id")
	ErrNotParticipant  = errors.New("user is not a participant of the dialog")
	ErrMessageNotFound = errors.New("message not found")
)
