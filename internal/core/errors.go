package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a package is not known to the registry.
	ErrNotFound = errors.New("not found")

	ErrToolInvocation      = errors.New("tool invocation failed")
	ErrIncompatibleVersion = errors.New("incompatible tool version")
	ErrMalformedOutput     = errors.New("malformed tool output")
	ErrDuplicateName       = errors.New("duplicate dependency name")
	ErrUnknownName         = errors.New("unknown dependency name")
	ErrCanceled            = errors.New("operation canceled")
)

// ToolInvocationError is returned when an external package manager command
// exits non-zero, cannot be started, or prints nothing usable.
type ToolInvocationError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *ToolInvocationError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Command)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

func (e *ToolInvocationError) Unwrap() error {
	return e.Err
}

func (e *ToolInvocationError) Is(target error) bool {
	return target == ErrToolInvocation
}

// IncompatibleToolVersionError is returned for a tool release known to
// produce broken listings.
type IncompatibleToolVersionError struct {
	Tool    string
	Version string
}

func (e *IncompatibleToolVersionError) Error() string {
	return fmt.Sprintf("%s@%s doesn't work with proddeps. Please update %s: %s install -g %s",
		e.Tool, e.Version, e.Tool, e.Tool, e.Tool)
}

func (e *IncompatibleToolVersionError) Is(target error) bool {
	return target == ErrIncompatibleVersion
}

// MalformedOutputError is returned when tool output does not contain exactly
// one tree document, or the document cannot be decoded.
type MalformedOutputError struct {
	Count int // matching lines found
	Err   error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse dependency tree: %v", e.Err)
	}
	return fmt.Sprintf("expected exactly one dependency tree in tool output, found %d", e.Count)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Err
}

func (e *MalformedOutputError) Is(target error) bool {
	return target == ErrMalformedOutput
}

// DuplicateNameError is returned when two top-level dependencies share a name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("dependency %s appears more than once in the tree", e.Name)
}

func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// UnknownNameError is returned when a requested dependency is not a
// top-level dependency of the project.
type UnknownNameError struct {
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("dependency not found: %s", e.Name)
}

func (e *UnknownNameError) Is(target error) bool {
	return target == ErrUnknownName
}

// CancellationError is returned when the caller aborts an operation.
type CancellationError struct {
	Err error // context error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("operation canceled: %v", e.Err)
}

func (e *CancellationError) Unwrap() error {
	return e.Err
}

func (e *CancellationError) Is(target error) bool {
	return target == ErrCanceled
}

// NotFoundError wraps ErrNotFound with additional context.
type NotFoundError struct {
	Ecosystem string
	Name      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: package %s not found", e.Ecosystem, e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
