package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is the uniform error for non-2xx backend responses, carrying the
// backend's detail message when one was provided.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// errorBody matches the backend's FastAPI-style error payload.
type errorBody struct {
	Detail string `json:"detail"`
}

// apiErrorFrom drains resp and builds an APIError, falling back to a generic
// message when the body carries no usable detail.
func apiErrorFrom(resp *http.Response) *APIError {
	defer resp.Body.Close()

	msg := ""
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil {
		var body errorBody
		if jerr := json.Unmarshal(data, &body); jerr == nil {
			msg = body.Detail
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
