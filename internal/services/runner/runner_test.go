package runner_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"ribodb/internal/services"
	"ribodb/internal/services/runner"
)

type stubExecutor struct {
	stdout string
	stderr string
	err    error
	calls  []runner.Invocation
}

func (s *stubExecutor) Execute(ctx context.Context, inv runner.Invocation, stdout, stderr io.Writer) error {
	s.calls = append(s.calls, inv)
	if s.stdout != "" {
		_, _ = io.WriteString(stdout, s.stdout)
	}
	if s.stderr != "" {
		_, _ = io.WriteString(stderr, s.stderr)
	}
	return s.err
}

func TestRunRedirectsStdoutToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "barrnap.gff")
	exec := &stubExecutor{stdout: "##gff-version 3\n"}
	tool := runner.New(runner.WithExecutor(exec))

	err := tool.Run(context.Background(), runner.Invocation{Name: "barrnap", Binary: "barrnap", Args: []string{"contigs.fasta"}, Stdout: out})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read stdout file: %v", err)
	}
	if string(data) != "##gff-version 3\n" {
		t.Fatalf("unexpected stdout content %q", data)
	}
	if len(exec.calls) != 1 || exec.calls[0].Args[0] != "contigs.fasta" {
		t.Fatalf("unexpected invocations: %#v", exec.calls)
	}
}

func TestRunClassifiesFailureAsExternalTool(t *testing.T) {
	exec := &stubExecutor{stderr: "warming up\nfatal: database missing\n", err: errors.New("exit status 2")}
	tool := runner.New(runner.WithExecutor(exec))

	err := tool.Run(context.Background(), runner.Invocation{Name: "kraken2", Binary: "kraken2"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "fatal: database missing") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
}

func TestRunRequiresBinary(t *testing.T) {
	tool := runner.New()
	err := tool.Run(context.Background(), runner.Invocation{Name: "sickle"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts unavailable")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "tool.sh")
	body := "#!/bin/sh\necho \"$1\"\necho oops >&2\nexit \"$2\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	out := filepath.Join(dir, "out.txt")
	logPath := filepath.Join(dir, "tool.log")
	tool := runner.New()

	if err := tool.Run(context.Background(), runner.Invocation{Name: "ok", Binary: script, Args: []string{"hello", "0"}, Stdout: out, Log: logPath}); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	data, _ := os.ReadFile(out)
	if strings.TrimSpace(string(data)) != "hello" {
		t.Fatalf("unexpected stdout %q", data)
	}
	logged, _ := os.ReadFile(logPath)
	if !strings.Contains(string(logged), "oops") {
		t.Fatalf("expected stderr in tool log, got %q", logged)
	}

	err := tool.Run(context.Background(), runner.Invocation{Name: "bad", Binary: script, Args: []string{"x", "3"}})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestInvocationString(t *testing.T) {
	inv := runner.Invocation{Binary: "seqtk", Args: []string{"sample", "-s100", "r1.fq", "0.5"}, Stdout: "down.fq"}
	want := "seqtk sample -s100 r1.fq 0.5 > down.fq"
	if got := inv.String(); got != want {
		t.Fatalf("unexpected rendering: %s", fmt.Sprintf("%q want %q", got, want))
	}
}
