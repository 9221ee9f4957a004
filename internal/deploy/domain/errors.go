package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ArgumentErrorMessage is what a run reports when its components could not
// be constructed from the supplied arguments.
const ArgumentErrorMessage = "Argument error. Please check input arguments"

// ArgError reports an invalid constructor or CLI argument. It is raised before
// any side effect.
type ArgError struct {
	Arg    string
	Reason string
}

// NewArgError creates an ArgError for the named argument.
func NewArgError(arg, reason string) *ArgError {
	return &ArgError{Arg: arg, Reason: reason}
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Arg, e.Reason)
}

// IsArgError reports whether err is, or wraps, an ArgError.
func IsArgError(err error) bool {
	var ae *ArgError
	return errors.As(err, &ae)
}

// FieldError names one field path that failed schema validation.
type FieldError struct {
	Field       string
	Description string
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Description
}

func joinFields(fields []FieldError) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "; ")
}

// LoadError reports a manifest that could not be read, parsed or validated.
type LoadError struct {
	Path   string
	Op     string // "reading", "parsing" or "validating"
	Fields []FieldError
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("%s manifest file %s", e.Op, e.Path)
	if len(e.Fields) > 0 {
		return msg + ": " + joinFields(e.Fields)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// FetchError reports a credential provider failure for one repository.
type FetchError struct {
	RepoURI string
	Fields  []FieldError
	Err     error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetching credentials for %s", e.RepoURI)
	if len(e.Fields) > 0 {
		return msg + ": credentials do not conform to expected schema: " + joinFields(e.Fields)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Category groups phase failures for reporting.
type Category int

const (
	CategoryFetch     Category = iota // credential provider
	CategoryApply                     // secret creation or service account patch
	CategoryLifecycle                 // release uninstall or install
)

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

var categoryNames = [...]string{
	CategoryFetch:     "fetch",
	CategoryApply:     "apply",
	CategoryLifecycle: "lifecycle",
}

// PhaseError is the single aggregate error of a fan-out phase in which at
// least one member failed.
type PhaseError struct {
	Category Category
	Phase    string
	Err      error
}

// NewPhaseError wraps err as the failure of phase.
func NewPhaseError(c Category, phase string, err error) *PhaseError {
	return &PhaseError{Category: c, Phase: phase, Err: err}
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("error %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }
