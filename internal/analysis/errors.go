package analysis

import (
	"errors"
	"sort"
	"strings"
)

// NoResultsMessage is shown to users when no evidence was found
const NoResultsMessage = "No recent posts found for this token. Try another symbol."

// ErrNoResults means the token produced no usable posts. Not a failure.
var ErrNoResults = errors.New("no recent posts found for this token")

// Pipeline stages, also used as metric labels
const (
	StageFetch = "fetch"
	StageRank  = "rank"
	StageModel = "model"
	StageUsage = "usage"
)

// ValidationError carries field-level input problems found before any network call
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	if len(msgs) == 0 {
		return "Invalid form data"
	}
	return strings.Join(msgs, " ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// CollaboratorError wraps a failed call to the evidence source or the model
type CollaboratorError struct {
	Err   error
	Stage string
}

func (e *CollaboratorError) Error() string {
	return e.Err.Error()
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
