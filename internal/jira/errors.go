package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"syscall"

	"github.com/pitabwire/jiramcp/model"
)

// APIError is a failed Jira call. Message is the text shown to the caller.
type APIError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Cause }

// Code maps the failure onto an error envelope code.
func (e *APIError) Code() string {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return model.ErrUnauthorized
	case http.StatusForbidden:
		return model.ErrForbidden
	case http.StatusNotFound:
		return model.ErrNotFound
	case http.StatusTooManyRequests:
		return model.ErrRateLimited
	case 0:
		return model.ErrBackendUnavailable
	}
	return model.ErrBackendError
}

// errorBody is Jira's error response shape.
type errorBody struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// statusError converts a non-2xx response into an APIError.
func statusError(status int, body []byte) *APIError {
	switch status {
	case http.StatusUnauthorized:
		return &APIError{StatusCode: status, Message: "Authentication failed. Please check your Jira email and API token."}
	case http.StatusForbidden:
		return &APIError{StatusCode: status, Message: "Access denied. Please check your Jira permissions."}
	case http.StatusNotFound:
		return &APIError{StatusCode: status, Message: "Resource not found. Please check your project key or issue key."}
	}

	detail := fmt.Sprintf("Request failed with status code %d", status)
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		msgs := append([]string(nil), eb.ErrorMessages...)
		fields := make([]string, 0, len(eb.Errors))
		for field := range eb.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			msgs = append(msgs, field+": "+eb.Errors[field])
		}
		if len(msgs) > 0 {
			detail = strings.Join(msgs, "; ")
		}
	}
	return &APIError{StatusCode: status, Message: "Jira API error: " + detail}
}

// transportError converts a failure to reach Jira into an APIError.
func transportError(domain string, err error) *APIError {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return &APIError{
			Message: fmt.Sprintf("Cannot connect to Jira server at %s. Please check the domain and ensure the server is running.", domain),
			Cause:   err,
		}
	}
	return &APIError{Message: "Jira API error: " + err.Error(), Cause: err}
}
