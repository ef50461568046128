// Package event defines the invocation envelope and the top-level router.
//
// Every inbound invocation — an HTTP request or a delivered queue batch —
// is normalized into an Event before dispatch, and every handler answers
// with a uniform Response. The router's only job is classification and
// delegation; all real work happens in the handlers.
package event

import (
	"encoding/json"
	"net/http"
)

// QueueRecord is one delivered queue message.
type QueueRecord struct {
	MessageID string
	Body      string
}

// Event is the normalized invocation envelope.
type Event struct {
	// Records is non-empty for queue deliveries.
	Records []QueueRecord

	// HTTP fields, set for webhook invocations.
	HTTPMethod string
	Query      map[string]string
	Headers    http.Header
	Body       []byte
}

// Response is the uniform handler result.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// JSONResponse builds a response with a JSON body.
func JSONResponse(statusCode int, payload any) Response {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"message":"internal error"}`,
		}
	}
	return Response{
		StatusCode: statusCode,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

// MessageResponse builds an error-style response body `{"message": ...}`.
func MessageResponse(statusCode int, message string) Response {
	return JSONResponse(statusCode, map[string]string{"message": message})
}

// RedirectResponse builds a 302 response to the given location.
func RedirectResponse(location string) Response {
	return Response{
		StatusCode: http.StatusFound,
		Headers:    map[string]string{"Location": location},
	}
}

// EmptyResponse builds a bare 200 response.
func EmptyResponse() Response {
	return Response{StatusCode: http.StatusOK}
}
