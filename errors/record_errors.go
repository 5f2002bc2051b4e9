package errors

import "errors"

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrDatabaseOperation = errors.New("database operation failed")
	ErrInvalidRecordData = errors.New("invalid record data")
	ErrInvalidContainer  = errors.New("invalid container name")
	ErrInternalServer    = errors.New("internal server error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTimeRange  = errors.New("invalid time range")
)
