package model

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrDuplicateID         = errors.New("position id already in use")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidPayload      = errors.New("invalid hook payload")
	ErrInvalidAmount       = errors.New("invalid amount")

	// ErrOverflow and ErrUnderflow mean the ledger and its positions have
	// diverged. They are never user-correctable.
	ErrOverflow  = errors.New("arithmetic overflow")
	ErrUnderflow = errors.New("arithmetic underflow")

	ErrAlreadyInitialized = errors.New("ledger already initialized")
	ErrNotInitialized     = errors.New("ledger not initialized")
)
