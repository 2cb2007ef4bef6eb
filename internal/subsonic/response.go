package subsonic

import (
	"encoding/json"
	"fmt"

	"github.com/opd-ai/go-sonic/internal/media"
)

// Error codes defined by the Subsonic API.
const (
	CodeGeneric              = 0
	CodeMissingParameter     = 10
	CodeClientTooOld         = 20
	CodeServerTooOld         = 30
	CodeWrongCredentials     = 40
	CodeTokenAuthUnsupported = 41
	CodeNotAuthorized        = 50
	CodeTrialExpired         = 60
	CodeNotFound             = 70
)

// APIError is the error object carried inside a failed subsonic-response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error includes the Subsonic error code and message.
func (e *APIError) Error() string {
	return fmt.Sprintf("subsonic error %d: %s", e.Code, e.Message)
}

// HTTPError reports a non-200 HTTP status.
type HTTPError struct {
	StatusCode int
	Path       string
}

// Error reports the HTTP status of the failed request.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.Path)
}

type envelope struct {
	Response json.RawMessage `json:"subsonic-response"`
}

type responseStatus struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Error   *APIError `json:"error"`
}

// decodeEnvelope unwraps {"subsonic-response": {...}} and checks its status.
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &media.BackendError{Op: "decode response", Err: err}
	}
	if len(env.Response) == 0 {
		return nil, &media.BackendError{Op: "decode response", Err: fmt.Errorf("missing subsonic-response")}
	}

	var st responseStatus
	if err := json.Unmarshal(env.Response, &st); err != nil {
		return nil, &media.BackendError{Op: "decode response", Err: err}
	}
	if st.Status != "ok" {
		if st.Error != nil {
			return nil, &media.BackendError{Op: "response", Err: st.Error}
		}
		return nil, &media.BackendError{Op: "response", Err: fmt.Errorf("status %q", st.Status)}
	}
	return env.Response, nil
}
