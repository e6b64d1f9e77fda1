package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// APIError is a non-2xx response from the futures API.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Msg        string `json:"msg"`
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("binance http %d code %d: %s", e.HTTPStatus, e.Code, e.Msg)
	}
	return fmt.Sprintf("binance http %d: %s", e.HTTPStatus, e.Msg)
}

var temporaryCodes = map[int]struct{}{
	-1001: {}, // disconnected
	-1003: {}, // too many requests
	-1007: {}, // timeout waiting for backend
	-1015: {}, // too many new orders
	-1016: {}, // service shutting down
	-1021: {}, // timestamp outside recvWindow
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	if e == nil {
		return false
	}
	switch {
	case e.HTTPStatus == http.StatusTooManyRequests, e.HTTPStatus == http.StatusTeapot:
		return true
	case e.HTTPStatus >= 500:
		return true
	}
	_, ok := temporaryCodes[e.Code]
	return ok
}

// IsTemporary classifies any error returned by Client. Transport failures are
// temporary; caller cancellation and client-side errors are not.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
