package execs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pity-fox/cleantools/pkg/log"
)

// DefaultTimeout bounds a single command of a rule script.
const DefaultTimeout = 30 * time.Second

// waitDelay bounds how long Run waits for output pipes after the process
// has been killed, e.g. when a shell leaves a grandchild holding stdout.
const waitDelay = 2 * time.Second

var (
	// ErrCommandExecution is returned when a command exits unsuccessfully.
	ErrCommandExecution = errors.New("run")

	// ErrCommandTimeout is returned when a command exceeds its timeout and
	// was killed.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrEmptyCommand is returned when a command is empty.
	ErrEmptyCommand = errors.New("empty command")

	// ErrShellOperator is returned in [ModeArgv] when a command line contains
	// an unquoted shell operator such as ";" or "|".
	ErrShellOperator = errors.New("shell operators require shell mode")
)

// Mode selects how a command line is turned into a process.
type Mode string

const (
	// ModeShell runs the command line through the system shell.
	ModeShell Mode = "shell"
	// ModeArgv splits the command line into words and runs the first word
	// directly.
	ModeArgv Mode = "argv"
)

// Result represents the result of a command execution.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	ExitCode int
}

const tracerName = "github.com/pity-fox/cleantools/pkg/execs"

// Executor runs command lines with a hard timeout.
type Executor struct {
	tracer trace.Tracer
	env    *Environment
	mode   Mode
	dir    string
}

// ExecutorOpt configures an [Executor].
type ExecutorOpt func(*Executor)

// WithMode sets the [Mode]. The default is [ModeShell].
func WithMode(m Mode) ExecutorOpt {
	return func(e *Executor) {
		e.mode = m
	}
}

// WithEnvironment sets the environment of executed commands.
func WithEnvironment(env *Environment) ExecutorOpt {
	return func(e *Executor) {
		e.env = env
	}
}

// WithDir sets the working directory of executed commands.
func WithDir(dir string) ExecutorOpt {
	return func(e *Executor) {
		e.dir = dir
	}
}

// WithTracerProvider sets the provider of the tracer recording one span per
// command. The global provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) ExecutorOpt {
	return func(e *Executor) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// NewExecutor creates a new [Executor].
func NewExecutor(opts ...ExecutorOpt) *Executor {
	e := &Executor{
		tracer: otel.Tracer(tracerName),
		mode:   ModeShell,
		env:    NewEnvironment(os.Environ()),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run executes command and waits for it to finish. When timeout elapses the
// process and every process it started are killed, and [ErrCommandTimeout]
// is returned. A non-zero exit is
// reported as [ErrCommandExecution] together with the captured output.
func (e *Executor) Run(ctx context.Context, command string, timeout time.Duration) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "exec", trace.WithAttributes(
		attribute.String("command", command),
		attribute.String("mode", string(e.mode)),
	))
	defer span.End()

	command = strings.TrimSpace(command)
	if command == "" {
		return nil, ErrEmptyCommand
	}

	name, args, err := e.argv(command)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := log.WithContext(ctx).With(
		slog.String("command", command),
		slog.Duration("timeout", timeout),
	)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // G204: Rule scripts run commands by design.
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = e.dir
	cmd.Env = e.env.Environ()
	cmd.WaitDelay = waitDelay
	killProcessTree(cmd)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
		ExitCode: cmd.ProcessState.ExitCode(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.DebugContext(ctx, "command timed out", slog.Duration("duration", result.Duration))
		span.SetStatus(codes.Error, "timeout")

		return result, fmt.Errorf("%w after %s", ErrCommandTimeout, timeout)
	}

	if err != nil {
		logger.DebugContext(ctx, "command failed",
			slog.Duration("duration", result.Duration),
			slog.Int("exit_code", result.ExitCode),
			slog.Any("error", err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return result, fmt.Errorf("%w: %w", ErrCommandExecution, err)
	}

	logger.DebugContext(ctx, "command executed successfully",
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

func (e *Executor) argv(command string) (string, []string, error) {
	if e.mode == ModeArgv {
		p := shellwords.NewParser()

		words, err := p.Parse(command)
		if err != nil {
			return "", nil, fmt.Errorf("parse command %q: %w", command, err)
		}
		if p.Position >= 0 {
			return "", nil, fmt.Errorf("%w: %q", ErrShellOperator, command)
		}
		if len(words) == 0 {
			return "", nil, ErrEmptyCommand
		}

		return words[0], words[1:], nil
	}

	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", command}, nil
	}

	return "/bin/sh", []string{"-c", command}, nil
}
