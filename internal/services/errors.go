package services

import (
	"errors"
	"fmt"
	"strings"

	"ribodb/internal/ledger"
)

var (
	// ErrExternalTool marks a tool that exited non-zero. Retried on a later run.
	ErrExternalTool = errors.New("external tool error")
	// ErrRejected marks a data-quality verdict about the item itself.
	ErrRejected = errors.New("rejected")
	// ErrNoResult marks a tool that exited cleanly without usable output.
	ErrNoResult = errors.New("no usable result")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// LedgerStatus maps a stage error to the ledger status recorded for the item.
func LedgerStatus(err error) ledger.Status {
	switch {
	case err == nil:
		return ledger.StatusPass
	case errors.Is(err, ErrExternalTool):
		return ledger.StatusError
	default:
		return ledger.StatusFail
	}
}

// StageError carries the stage that produced a failure.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e.Stage == "" {
		return e.Err.Error()
	}
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the stage name attached to err, if any.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
