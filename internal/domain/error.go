package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidPath     = errors.New("invalid path")
	ErrEmptyCompletion = errors.New("empty response from model")
	ErrInvalidEnvelope = errors.New("AI returned invalid JSON format")
	ErrQueueFull       = errors.New("worker queue full")
	ErrLockTimeout     = errors.New("job is busy")
	ErrNoProvider      = errors.New("no AI provider for model")
	ErrAlreadyExists   = errors.New("entity already exists")
)
