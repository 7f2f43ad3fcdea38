package errors

import (
	goerrors "errors"
	"strings"
)

// IsAuthError reports whether err looks like an authentication failure on the
// upstream brokerage. Typed AUTH_ERROR values match directly; otherwise the
// error signature is checked for the known unauthorized patterns.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	var fe *FolioError
	if goerrors.As(err, &fe) && fe.Code == ErrCodeAuth {
		return true
	}

	msg := strings.ToLower(err.Error())
	authPatterns := []string{
		"unauthorized",
		"401",
		"authentication",
	}
	for _, pattern := range authPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsTransientError reports whether err is a transport-class failure worth
// retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	var fe *FolioError
	if goerrors.As(err, &fe) {
		return fe.Code == ErrCodeTransport
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"network is unreachable",
		"no route to host",
		"eof",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsConfigError reports whether err is a fatal configuration error.
func IsConfigError(err error) bool {
	var fe *FolioError
	return goerrors.As(err, &fe) && fe.Code == ErrCodeConfig
}
