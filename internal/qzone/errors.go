package qzone

import "fmt"

// TransportError reports a connection failure or a non-2xx status on a
// single protocol call.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ApplicationError reports a structured failure from the remote despite
// transport success, e.g. a nonzero result code embedded in an HTML
// response. It must never be treated as success.
type ApplicationError struct {
	Op   string
	Code int64
	Body string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: remote returned code %d", e.Op, e.Code)
}

// ParseError reports a response whose shape the client did not expect.
// Callers treat it as "no items this cycle" rather than a fatal condition.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: parse failed: %v", e.Op, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// PublishError reports a failed post publish or image upload: either a
// transport failure or a payload missing the expected success marker.
type PublishError struct {
	Reason string
	Err    error
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("publish failed: %s: %v", e.Reason, e.Err)
	}
	return "publish failed: " + e.Reason
}

func (e *PublishError) Unwrap() error { return e.Err }

// RemoteStatusError is the expected "nothing to read" outcome of ListFeed:
// the remote reported a nonzero status (restricted visibility, rate
// limiting) or filtering left nothing new. It is a normal per-cycle result,
// not a fault.
type RemoteStatusError struct {
	Code    int
	Message string
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("feed unavailable (code %d): %s", e.Code, e.Message)
}
