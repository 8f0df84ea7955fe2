package types

import "time"

const (
	SourceWeb = "web"
	SourceCLI = "cli"
)

const (
	// OutcomeSuccess means the backend answered 2xx.
	OutcomeSuccess = "success"
	// OutcomeFailure means the backend answered non-2xx with a JSON message.
	OutcomeFailure = "failure"
	// OutcomeError means the request did not complete or the response was not JSON.
	OutcomeError = "error"
)

// Action is one journaled control attempt. Credentials are never part of it.
type Action struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Source     string    `json:"source"`
	Mode       string    `json:"mode"`
	Outcome    string    `json:"outcome"`
	HTTPStatus int       `json:"http_status,omitempty"`
	// Message is the text shown to the operator.
	Message string `json:"message"`
}

func (a Action) Succeeded() bool { return a.Outcome == OutcomeSuccess }
