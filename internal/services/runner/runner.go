package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ribodb/internal/logging"
	"ribodb/internal/services"
)

// Invocation describes one external command.
type Invocation struct {
	Name   string // short tool label used in logs and errors
	Binary string
	Args   []string
	Dir    string
	// Stdout, when set, receives the command's standard output (truncated first).
	Stdout string
	// Log, when set, receives the command's standard error.
	Log string
}

// String renders the invocation for logs. It is not meant to be executed.
func (inv Invocation) String() string {
	parts := append([]string{inv.Binary}, inv.Args...)
	out := strings.Join(parts, " ")
	if inv.Stdout != "" {
		out += " > " + inv.Stdout
	}
	return out
}

// Runner runs invocations.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// Executor abstracts process execution for testability.
type Executor interface {
	Execute(ctx context.Context, inv Invocation, stdout, stderr io.Writer) error
}

// Option configures the Tool runner.
type Option func(*Tool)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(t *Tool) {
		if exec != nil {
			t.exec = exec
		}
	}
}

// WithLogger attaches a logger used for command start/finish lines.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tool) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tool is the production Runner.
type Tool struct {
	exec   Executor
	logger *slog.Logger
}

// New constructs a Tool runner.
func New(opts ...Option) *Tool {
	t := &Tool{exec: commandExecutor{}, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run executes the invocation and classifies a failure as services.ErrExternalTool.
func (t *Tool) Run(ctx context.Context, inv Invocation) error {
	if strings.TrimSpace(inv.Binary) == "" {
		return services.Wrap(services.ErrConfiguration, inv.Name, "run", "tool binary not configured", nil)
	}
	logger := logging.WithContext(ctx, t.logger)

	var stdout io.Writer = io.Discard
	if inv.Stdout != "" {
		if err := ensureParent(inv.Stdout); err != nil {
			return err
		}
		file, err := os.Create(inv.Stdout)
		if err != nil {
			return fmt.Errorf("create stdout file: %w", err)
		}
		defer file.Close()
		stdout = file
	}

	tail := &tailBuffer{limit: 20}
	var stderr io.Writer = tail
	if inv.Log != "" {
		if err := ensureParent(inv.Log); err != nil {
			return err
		}
		file, err := os.OpenFile(inv.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open tool log: %w", err)
		}
		defer file.Close()
		stderr = io.MultiWriter(tail, file)
	}

	logger.Debug("running external tool",
		logging.String("tool", inv.Name),
		logging.String("command", inv.String()),
	)
	start := time.Now()
	err := t.exec.Execute(ctx, inv, stdout, stderr)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		message := "exited with failure"
		if last := tail.String(); last != "" {
			message = "exited with failure; stderr: " + last
		}
		return services.Wrap(services.ErrExternalTool, inv.Name, inv.Binary, message, err)
	}
	logger.Debug("external tool finished",
		logging.String("tool", inv.Name),
		logging.Duration("duration", time.Since(start)),
	)
	return nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}

type commandExecutor struct{}

func (commandExecutor) Execute(ctx context.Context, inv Invocation, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...) //nolint:gosec
	cmd.Dir = inv.Dir
	cmd.Stdout = stdout
	pipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(pipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			_, _ = fmt.Fprintln(stderr, scanner.Text())
		}
		scanErr = scanner.Err()
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	if scanErr != nil {
		return fmt.Errorf("scan stderr: %w", scanErr)
	}
	return nil
}

// tailBuffer keeps the last few stderr lines for error messages.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	lines []string
	part  bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.part.Write(p)
	for {
		data := b.part.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(data[:idx]))
		b.part.Next(idx + 1)
		if line == "" {
			continue
		}
		b.lines = append(b.lines, line)
		if len(b.lines) > b.limit {
			b.lines = b.lines[len(b.lines)-b.limit:]
		}
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) == 0 {
		return ""
	}
	return b.lines[len(b.lines)-1]
}
