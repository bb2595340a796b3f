package exception

import "errors"

// General errors
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidConfig   = errors.New("invalid config")
)
