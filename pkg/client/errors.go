package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies gateway failures so callers can pick a recovery policy.
type Kind int

const (
	// KindUnknown is never produced by the gateway itself.
	KindUnknown Kind = iota
	// KindUnauthenticated covers a missing token and 401 responses.
	KindUnauthenticated
	// KindRequest is a 4xx carrying a server supplied message.
	KindRequest
	// KindNotFound is a 404.
	KindNotFound
	// KindNotReady marks insights that have not been generated yet.
	KindNotReady
	// KindServer is a 5xx.
	KindServer
	// KindNetwork means no response was received.
	KindNetwork
	// KindDecode means a success response could not be parsed.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindRequest:
		return "request"
	case KindNotFound:
		return "not_found"
	case KindNotReady:
		return "not_ready"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// GenericMessage is shown for failures that carry no usable server message.
const GenericMessage = "Something went wrong. Please try again."

// ErrUnauthenticated is returned before any network attempt when no token is stored.
var ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Op: "auth", Message: "User not authenticated"}

// Error is the structured failure returned by every gateway call.
type Error struct {
	Kind      Kind
	Op        string
	Status    int
	Message   string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("client: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a status-less target of the same kind, so errors.Is(err,
// ErrUnauthenticated) holds for both the fail-fast case and 401 responses.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Status == 0 && t.Kind == e.Kind
}

// KindOf returns the classification of err, or KindUnknown.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsUnauthenticated reports whether err means the credential is missing or rejected.
func IsUnauthenticated(err error) bool {
	return KindOf(err) == KindUnauthenticated
}

// IsNotReady reports whether err is the transient "insights not generated" condition.
func IsNotReady(err error) bool {
	return KindOf(err) == KindNotReady
}

// Message returns the text to show a user for err. Server supplied messages
// are surfaced verbatim; transport and decode failures get a generic message.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch apiErr.Kind {
	case KindNetwork, KindDecode, KindUnknown:
		return GenericMessage
	default:
		if apiErr.Message == "" {
			return GenericMessage
		}
		return apiErr.Message
	}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindRequest
	}
}

// errorBody is the FastAPI style error envelope. detail is either a string
// or a list of validation issues.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type validationIssue struct {
	Msg string `json:"msg"`
}

func parseErrorMessage(body []byte) string {
	var env errorBody
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if len(env.Detail) > 0 {
		var text string
		if err := json.Unmarshal(env.Detail, &text); err == nil && text != "" {
			return text
		}
		var issues []validationIssue
		if err := json.Unmarshal(env.Detail, &issues); err == nil {
			msgs := make([]string, 0, len(issues))
			for _, issue := range issues {
				if issue.Msg != "" {
					msgs = append(msgs, issue.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return env.Message
}
