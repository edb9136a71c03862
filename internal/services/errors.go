package services

import "errors"

var (
	ErrRangeTooLong   = errors.New("projection range too long")
	ErrPaymentTooLow  = errors.New("payment does not cover monthly interest")
	ErrInvalidMonths  = errors.New("months must be between 1 and 1200")
	ErrNotInitialized = errors.New("service not properly initialized")
)
