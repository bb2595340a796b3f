package exception

import "errors"

var fatal = []error{
	ErrFeedUnauthorized,
	ErrFeedEmptyTickers,
	ErrStorageUnwritable,
	ErrWebSocketRetriesExhausted,
	ErrInvalidConfig,
}

// IsFatal reports whether err should stop the unit that produced it instead of
// being logged and skipped.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range fatal {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
