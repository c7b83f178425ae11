package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoProvider         = errors.New("no AI service available")
	ErrInvalidProviderKey = errors.New("invalid provider key")
	ErrProviderTimeout    = errors.New("provider timed out")
)

// ProviderError is the only error shape that leaves a backend adapter.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Provider == "" {
		return msg
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Provider, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NoProviderError is returned when a stage needs a backend and none is registered.
func NoProviderError() error {
	return &ProviderError{Message: "No AI service available", Err: ErrNoProvider}
}

func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// errorMessageFromBody digs the human message out of the error payloads the
// supported backends send: {"error":{"message"}}, {"error":"..."}, {"message"}.
func errorMessageFromBody(raw []byte) string {
	var probe struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		s := strings.TrimSpace(string(raw))
		if len(s) > 300 {
			s = s[:300]
		}
		return s
	}
	if len(probe.Error) > 0 && string(probe.Error) != "null" {
		var obj struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if json.Unmarshal(probe.Error, &obj) == nil && obj.Message != "" {
			return obj.Message
		}
		var s string
		if json.Unmarshal(probe.Error, &s) == nil && s != "" {
			return s
		}
	}
	if probe.Message != "" {
		return probe.Message
	}
	return probe.Detail
}
