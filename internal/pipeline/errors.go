package pipeline

import (
	"errors"

	"ribodb/internal/services"
)

// Stage failure classes.
var (
	ErrDownload               = errors.New("download failed")
	ErrReadLength             = errors.New("read length out of bounds")
	ErrBestReference          = errors.New("best reference selection failed")
	ErrReferenceNotGoodEnough = errors.New("reference not good enough")
	ErrKraken2                = errors.New("kraken2 classification failed")
	ErrTrimming               = errors.New("trimming failed")
	ErrCoverage               = errors.New("insufficient coverage")
	ErrDownsampling           = errors.New("downsampling failed")
)

// fail tags cause with both the stage sentinel and the classification marker.
// The sentinel text appears once, as the operation.
func fail(marker, sentinel error, stage, message string, cause error) error {
	return &services.StageError{
		Stage: stage,
		Err:   &stageFailure{sentinel: sentinel, err: services.Wrap(marker, "", sentinel.Error(), message, cause)},
	}
}

// stageFailure keeps sentinel reachable through errors.Is without adding its
// text to the message.
type stageFailure struct {
	sentinel error
	err      error
}

func (f *stageFailure) Error() string   { return f.err.Error() }
func (f *stageFailure) Unwrap() []error { return []error{f.sentinel, f.err} }

func reject(sentinel error, stage, message string) error {
	return fail(services.ErrRejected, sentinel, stage, message, nil)
}

func toolError(sentinel error, stage, message string, cause error) error {
	return fail(services.ErrExternalTool, sentinel, stage, message, cause)
}
