package moodle

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed webservice call.
type ErrorKind int

// Failure classes returned by the client.
const (
	KindTimeout ErrorKind = iota
	KindConnectionFailure
	KindHTTPError
	KindRemoteException
	KindMalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionFailure:
		return "connection_failure"
	case KindHTTPError:
		return "http_error"
	case KindRemoteException:
		return "remote_exception"
	case KindMalformedResponse:
		return "malformed_response"
	default:
		return "unknown"
	}
}

// APIError is the error type returned by every client call. RemoteException
// carries the Moodle error envelope's errorcode so callers can branch on
// semantically significant codes.
type APIError struct {
	Kind       ErrorKind
	Function   string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindHTTPError:
		return fmt.Sprintf("moodle %s: unexpected status %d", e.Function, e.StatusCode)
	case KindRemoteException:
		return fmt.Sprintf("moodle %s: remote exception %s: %s", e.Function, e.Code, e.Message)
	case KindMalformedResponse:
		return fmt.Sprintf("moodle %s: malformed response: %s", e.Function, e.Message)
	default:
		return fmt.Sprintf("moodle %s: %s: %v", e.Function, e.Kind, e.Err)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRemoteException reports whether err is a remote exception carrying one
// of the given error codes. With no codes it matches any remote exception.
func IsRemoteException(err error, codes ...string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != KindRemoteException {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, code := range codes {
		if apiErr.Code == code {
			return true
		}
	}
	return false
}
