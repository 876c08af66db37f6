package services

import "errors"

var (
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidRule wraps rule validation failures.
	ErrInvalidRule      = errors.New("invalid rule")
	ErrRuleLimitReached = errors.New("rule limit reached for current plan")
)
