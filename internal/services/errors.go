package services

import "errors"

var (
	ErrNotOwner         = errors.New("order belongs to another account")
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrOrderNotPending  = errors.New("order is not pending")
	ErrMethodDisabled   = errors.New("payment method not enabled")
	ErrAlreadyPaid      = errors.New("payment already approved")
	ErrInvalidLogin     = errors.New("invalid email or password")
	ErrEmailTaken       = errors.New("email already registered")
	ErrGatewayUnknown   = errors.New("gateway for method not configured")
	ErrAttemptNotFound  = errors.New("no payment attempt for order")
	ErrInvalidSignature = errors.New("webhook signature verification failed")
)
