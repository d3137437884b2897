package gistcache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/always-cache/gist-cache/pkg/upstream"
)

// Error kinds used in the "error" field of JSON error bodies.
const (
	ErrorUpstream         = "upstream_error"
	ErrorNotFound         = "not_found"
	ErrorInvalidResponse  = "invalid_response"
	ErrorMethodNotAllowed = "method_not_allowed"
	ErrorInternal         = "internal_error"
)

const invalidResponseMessage = "GitHub returned non-json"

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNotFound
	OutcomeUpstreamError
	OutcomeInvalidPayload
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not-found"
	case OutcomeUpstreamError:
		return "upstream-error"
	case OutcomeInvalidPayload:
		return "invalid-payload"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the classified result of one upstream call.
type Outcome struct {
	Kind OutcomeKind
	// Payload is the upstream JSON body, set for OutcomeSuccess only.
	Payload []byte
	// Message is the client-visible error message for the failure kinds.
	Message string
}

// Classify maps an upstream call to an outcome. The first matching rule wins:
// transport failure, upstream 404, body that is not JSON, and otherwise success.
// Statuses other than 404 are not inspected, a JSON error body from the upstream
// is passed through as a success.
func Classify(username string, res upstream.Response, err error) Outcome {
	if err != nil {
		return Outcome{Kind: OutcomeUpstreamError, Message: err.Error()}
	}
	if res.StatusCode == http.StatusNotFound {
		return Outcome{Kind: OutcomeNotFound, Message: fmt.Sprintf("user %s not found", username)}
	}
	if !json.Valid(res.Body) {
		return Outcome{Kind: OutcomeInvalidPayload, Message: invalidResponseMessage}
	}
	return Outcome{Kind: OutcomeSuccess, Payload: res.Body}
}

// StatusCode is the status sent to the client for the outcome.
func (o Outcome) StatusCode() int {
	switch o.Kind {
	case OutcomeSuccess:
		return http.StatusOK
	case OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// ErrorKind is the "error" field of the body, empty for successes.
func (o Outcome) ErrorKind() string {
	switch o.Kind {
	case OutcomeNotFound:
		return ErrorNotFound
	case OutcomeUpstreamError:
		return ErrorUpstream
	case OutcomeInvalidPayload:
		return ErrorInvalidResponse
	default:
		return ""
	}
}

// Write sends the outcome to the client.
func (o Outcome) Write(w http.ResponseWriter) {
	if o.Kind == OutcomeSuccess {
		writeJSON(w, http.StatusOK, o.Payload)
		return
	}
	writeError(w, o.StatusCode(), o.ErrorKind(), o.Message)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	// usernames end up in messages verbatim
	enc.SetEscapeHTML(false)
	if err := enc.Encode(errorBody{Error: kind, Message: message}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, status, buf.Bytes())
}
