package pipeline

import "fmt"

// Status is the outcome of one stage
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusPartial
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	case StatusPartial:
		return "partial"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is what a stage returns. It is not modified after being returned.
type Result struct {
	Status  Status
	Message string
	Data    map[string]any
	Errors  []string
}

// Success creates a successful result; data is merged into the context
func Success(message string, data map[string]any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

// Failure creates a failed result
func Failure(message string, errs ...string) Result {
	return Result{Status: StatusFailure, Message: message, Errors: errs}
}

// Partial creates a result for work that was only partly done
func Partial(message string, data map[string]any, errs ...string) Result {
	return Result{Status: StatusPartial, Message: message, Data: data, Errors: errs}
}

// OK reports whether the stage succeeded
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}
