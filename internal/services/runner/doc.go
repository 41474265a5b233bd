// Package runner executes external bioinformatics tools.
//
// Every tool is described by an Invocation: the binary, an argument slice, an
// optional working directory, and an optional file that receives stdout.
// Commands never pass through a shell. A non-zero exit is converted into a
// services.ErrExternalTool so callers can classify it without inspecting
// process state.
//
// Prefer this package over ad-hoc exec.Command usage so logging, output
// capture, and failure classification stay consistent across stages.
package runner
