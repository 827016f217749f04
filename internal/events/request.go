package events

import (
	"net/http"
	"time"
)

// HTTPStart is published when the server accepts a request. RequestID is the
// value echoed in the X-Request-ID response header.
type HTTPStart struct {
	Request   *http.Request
	RequestID string
}

type HTTPFinish struct {
	Request   *http.Request
	RequestID string
	Status    int
	Duration  time.Duration
}

// OperationStart is published once the operation has been parsed and before
// any resolver or access check runs.
type OperationStart struct {
	OperationName string
	OperationType string
	Query         string
}

// OperationFinish carries every error in the response. Denied counts the
// subset raised by access checks.
type OperationFinish struct {
	OperationName string
	OperationType string
	Query         string
	Errors        []error
	Denied        int
	Duration      time.Duration
}
