package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pity-fox/cleantools/pkg/execs"
	"github.com/pity-fox/cleantools/pkg/fsutil"
	"github.com/pity-fox/cleantools/pkg/log"
	"github.com/pity-fox/cleantools/pkg/manifest"
	"github.com/pity-fox/cleantools/pkg/messages"
	"github.com/pity-fox/cleantools/pkg/policy"
	"github.com/pity-fox/cleantools/pkg/rule"
)

// CommandTimeout bounds every "system" line.
const CommandTimeout = execs.DefaultTimeout

// ErrScriptMissing is returned by [Interpreter.RunRule] when the rule has no
// script file.
var ErrScriptMissing = errors.New("rule script does not exist")

// Runner runs "system" lines. [*execs.Executor] implements it.
type Runner interface {
	Run(ctx context.Context, command string, timeout time.Duration) (*execs.Result, error)
}

// Code classifies the outcome of one line.
type Code int

const (
	// CodeOK means the line succeeded.
	CodeOK Code = iota
	// CodeMissing means a "cl" path did not exist. It is not a failure.
	CodeMissing
	// CodeSkipped means the line was not executed because of a dry run.
	CodeSkipped
	// CodeFailed means a clean failed, or a command exited non-zero or
	// could not be started.
	CodeFailed
	// CodeTimeout means a command was killed at its timeout.
	CodeTimeout
	// CodeUnknown means the line was not recognized.
	CodeUnknown
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeMissing:
		return "missing"
	case CodeSkipped:
		return "skipped"
	case CodeFailed:
		return "failed"
	case CodeTimeout:
		return "timeout"
	case CodeUnknown:
		return "unknown"
	}

	return fmt.Sprintf("Code(%d)", int(c))
}

// Outcome is the result of one instruction.
type Outcome struct {
	Err     error
	Command *execs.Result
	Instruction
	Clean CleanResult
	Code  Code
}

// OK reports whether the line counts as successful.
func (o Outcome) OK() bool {
	return o.Code == CodeOK || o.Code == CodeMissing || o.Code == CodeSkipped
}

// Report is the result of a whole script.
type Report struct {
	Outcomes []Outcome
	// Succeeded is true only if every line succeeded.
	Succeeded bool
}

// Failed returns the number of failed lines.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}

	return n
}

// Interpreter executes rule scripts. Side effects go through its [Cleaner]
// and [Runner]; progress lines go to its [messages.Sink].
type Interpreter struct {
	cleaner Cleaner
	runner  Runner
	sink    messages.Sink
	catalog messages.Catalog
	timeout time.Duration
	dryRun  bool
}

// InterpreterOpt configures an [Interpreter].
type InterpreterOpt func(*Interpreter)

// WithSink sets the sink for progress lines.
func WithSink(sink messages.Sink) InterpreterOpt {
	return func(i *Interpreter) {
		i.sink = sink
	}
}

// WithCatalog sets the message catalog.
func WithCatalog(c messages.Catalog) InterpreterOpt {
	return func(i *Interpreter) {
		i.catalog = c
	}
}

// WithTimeout overrides [CommandTimeout].
func WithTimeout(d time.Duration) InterpreterOpt {
	return func(i *Interpreter) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithDryRun reports every line without cleaning or running anything.
func WithDryRun(dryRun bool) InterpreterOpt {
	return func(i *Interpreter) {
		i.dryRun = dryRun
	}
}

// NewInterpreter creates a new [Interpreter].
func NewInterpreter(cleaner Cleaner, runner Runner, opts ...InterpreterOpt) *Interpreter {
	i := &Interpreter{
		cleaner: cleaner,
		runner:  runner,
		sink:    messages.Discard,
		catalog: messages.Default,
		timeout: CommandTimeout,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Execute runs every line of text in order. A failing line never stops the
// lines after it.
func (i *Interpreter) Execute(ctx context.Context, text string) Report {
	instructions := Parse(text)

	report := Report{
		Outcomes:  make([]Outcome, 0, len(instructions)),
		Succeeded: true,
	}

	for _, ins := range instructions {
		o := i.step(ctx, ins)
		if !o.OK() {
			report.Succeeded = false
		}

		report.Outcomes = append(report.Outcomes, o)
	}

	return report
}

// RunRule executes the script of b if the execution gate allows its status.
// A denied rule is reported to the sink and its script is never executed;
// the returned error then wraps [policy.ErrDenied].
func (i *Interpreter) RunRule(ctx context.Context, b *rule.Bundle) (Report, error) {
	if err := policy.Check(b.Status); err != nil {
		reason := b.StatusMessage
		if reason == "" {
			reason = b.Status.String()
		}

		i.emit(slog.LevelError, messages.ExecutionDenied, b.Name, reason)

		return Report{}, fmt.Errorf("rule %q: %w", b.Name, err)
	}

	if b.Dir != "" && !fsutil.Exists(filepath.Join(b.Dir, manifest.RuleFileName)) {
		i.emit(slog.LevelError, messages.RuleScriptMissing, b.Name)

		return Report{}, fmt.Errorf("rule %q: %w", b.Name, ErrScriptMissing)
	}

	i.emit(slog.LevelInfo, messages.RuleStart, b.Name)

	report := i.Execute(ctx, b.Script)

	if report.Succeeded {
		i.emit(slog.LevelInfo, messages.RuleFinished, b.Name)
	} else {
		i.emit(slog.LevelWarn, messages.RuleFinishedFailed, report.Failed(), b.Name)
	}

	return report, nil
}

func (i *Interpreter) step(ctx context.Context, ins Instruction) Outcome {
	logger := log.WithContext(ctx).With(
		slog.Int("line", ins.Line),
		slog.String("op", ins.Op.String()),
	)

	o := Outcome{Instruction: ins}

	switch {
	case ins.Op == OpUnknown:
		o.Code = CodeUnknown
		i.emit(slog.LevelWarn, messages.UnknownLine, ins.Line, ins.Text)

	case i.dryRun:
		o.Code = CodeSkipped
		i.emit(slog.LevelInfo, messages.CommandDisabled, ins.Text)

	case ins.Op == OpClean:
		i.clean(ctx, &o)

	case ins.Op == OpSystem:
		i.run(ctx, &o)
	}

	logger.DebugContext(ctx, "executed line", slog.String("code", o.Code.String()))

	return o
}

func (i *Interpreter) clean(ctx context.Context, o *Outcome) {
	res, err := i.cleaner.CleanPath(ctx, o.Arg)
	o.Clean = res

	switch {
	case err != nil:
		o.Err = err
		o.Code = CodeFailed
		i.emit(slog.LevelError, messages.CleanFailed, o.Arg, err)

	case res.Missing:
		o.Code = CodeMissing
		i.emit(slog.LevelWarn, messages.PathMissing, o.Arg)

	case res.Dir:
		i.emit(slog.LevelInfo, messages.DirCleaned, o.Arg, res.Removed)

	default:
		i.emit(slog.LevelInfo, messages.FileDeleted, o.Arg)
	}
}

func (i *Interpreter) run(ctx context.Context, o *Outcome) {
	i.emit(slog.LevelInfo, messages.CommandStart, o.Arg)

	res, err := i.runner.Run(ctx, o.Arg, i.timeout)
	o.Command = res
	o.Err = err

	switch {
	case errors.Is(err, execs.ErrCommandTimeout):
		o.Code = CodeTimeout
		i.emit(slog.LevelError, messages.CommandTimeout, i.timeout, o.Arg)

	case errors.Is(err, execs.ErrCommandExecution) && res != nil && res.ExitCode > 0:
		o.Code = CodeFailed
		i.emit(slog.LevelError, messages.CommandFailed, res.ExitCode)

		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			i.emit(slog.LevelError, messages.CommandStderr, stderr)
		}

	case err != nil:
		o.Code = CodeFailed
		i.emit(slog.LevelError, messages.CommandError, o.Arg, err)

	default:
		i.emit(slog.LevelInfo, messages.CommandOK)

		if stdout := strings.TrimSpace(res.Stdout); stdout != "" {
			i.emit(slog.LevelInfo, messages.CommandOutput, stdout)
		}
	}
}

func (i *Interpreter) emit(level slog.Level, key messages.Key, args ...any) {
	i.sink.Emit(level, i.catalog.Sprintf(key, args...))
}
