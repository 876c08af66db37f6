package repository

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrAccountNotFound   = errors.New("ad account not found")
	ErrRuleNotFound      = errors.New("rule not found")
	ErrActionLogNotFound = errors.New("action log not found")
	ErrTokenNotFound     = errors.New("platform token not found")
)
