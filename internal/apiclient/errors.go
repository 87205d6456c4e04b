package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/psds-microservice/helpdesk-client/internal/errs"
)

// APIError is a non-2xx response. It unwraps to the errs sentinel for
// its status, so callers can use errors.Is for the category and
// errors.As for the server detail:
//
//	var apiErr *apiclient.APIError
//	if errors.As(err, &apiErr) {
//	    fmt.Println(apiErr.Detail)
//	}
type APIError struct {
	StatusCode int
	// Detail is the server-provided "detail" text, or the raw body.
	Detail string
	Method string
	Path   string

	kind error
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("apiclient: %s %s: %d: %v", e.Method, e.Path, e.StatusCode, e.kind)
	}
	return fmt.Sprintf("apiclient: %s %s: %d: %v: %s", e.Method, e.Path, e.StatusCode, e.kind, e.Detail)
}

func (e *APIError) Unwrap() error { return e.kind }

// Detail returns the server detail carried by err, or "" if err is not
// an *APIError.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	return ""
}

func newAPIError(req request, status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		Detail:     parseDetail(body),
		Method:     req.method,
		Path:       req.path,
		kind:       classify(status, req.public),
	}
}

func classify(status int, public bool) error {
	switch {
	case status == http.StatusUnauthorized && public:
		return errs.ErrInvalidCredentials
	case status == http.StatusUnauthorized:
		return errs.ErrAuthExpired
	case status == http.StatusBadRequest && public:
		return errs.ErrInvalidCredentials
	case status == http.StatusBadRequest:
		return errs.ErrBadRequest
	case status == http.StatusForbidden:
		return errs.ErrForbidden
	case status == http.StatusNotFound:
		return errs.ErrTicketNotFound
	case status == http.StatusConflict:
		return errs.ErrIllegalTransition
	case status == http.StatusUnprocessableEntity:
		return errs.ErrValidation
	case status >= 500:
		return errs.ErrServer
	default:
		return errs.ErrBadRequest
	}
}

// parseDetail extracts {"detail": ...}. FastAPI-style validation
// errors carry a list under detail; their "msg" fields are joined.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return string(envelope.Detail)
}
