// Package builderr defines the structured, human-readable error values
// produced during graph construction. Every build-phase failure is
// fatal; this type exists so the CLI can print a diagnostic that names
// the offending component.
package builderr

import "fmt"

// Code is a stable identifier for a class of build failure.
type Code string

const (
	ModuleBuild        Code = "module_build"
	TransformerConfig  Code = "transformer_config"
	TransformerStarved Code = "transformer_starved"
	PipeMissingEnd     Code = "pipe_missing_endpoint"
	PipeKindMismatch   Code = "pipe_kind_mismatch"
	ConfigParse        Code = "config_parse"
)

// E is a build-phase error carrying the failing component's name and an
// optional wrapped cause.
type E struct {
	Code      Code
	Component string
	Msg       string
	Err       error
}

func (e *E) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s %q: %s", e.Code, e.Component, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *E) Unwrap() error { return e.Err }

func New(code Code, component, format string, args ...any) *E {
	return &E{Code: code, Component: component, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, component string, err error) *E {
	return &E{Code: code, Component: component, Msg: err.Error(), Err: err}
}
