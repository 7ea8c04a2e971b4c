package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrInsufficientHistory = errors.New("not enough labeled history to train")
	ErrModelUnavailable    = errors.New("risk model unavailable")
	ErrDuplicateRule       = errors.New("duplicate rule for port")
	ErrHostDown            = errors.New("target host is down")

	// ErrProbe and ErrPersistence classify failures for errors.Is.
	ErrProbe       = errors.New("probe failure")
	ErrPersistence = errors.New("persistence failure")
)

// ProbeError reports an unreachable target or a transport failure in the probe.
type ProbeError struct {
	Target string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Target, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

func (e *ProbeError) Is(target error) bool { return target == ErrProbe }

// PersistenceError reports a store that could not complete an operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// DispatchError aggregates the emits that failed after the scan record was saved.
type DispatchError struct {
	ScanID   uint
	Failures []error
}

func (e *DispatchError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("dispatch for scan %d: %d emit(s) failed: %s", e.ScanID, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *DispatchError) Unwrap() []error { return e.Failures }
