package execs_test

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pity-fox/cleantools/pkg/execs"
)

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell")
	}
}

func TestExecutorRun(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	tcs := map[string]struct {
		wantErr    error
		command    string
		wantStdout string
		wantStderr string
		mode       execs.Mode
		wantExit   int
	}{
		"shell success": {
			command:    "echo hello",
			mode:       execs.ModeShell,
			wantStdout: "hello\n",
		},
		"shell pipeline": {
			command:    "printf 'a\\nb\\n' | wc -l | tr -d ' '",
			mode:       execs.ModeShell,
			wantStdout: "2\n",
		},
		"shell non-zero exit": {
			command:    "echo oops >&2; exit 3",
			mode:       execs.ModeShell,
			wantErr:    execs.ErrCommandExecution,
			wantStderr: "oops\n",
			wantExit:   3,
		},
		"argv quoted argument": {
			command:    `printf '%s' "a b"`,
			mode:       execs.ModeArgv,
			wantStdout: "a b",
		},
		"argv quoted operator is a plain argument": {
			command:    `echo "a; b"`,
			mode:       execs.ModeArgv,
			wantStdout: "a; b\n",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			e := execs.NewExecutor(execs.WithMode(tc.mode))

			res, err := e.Run(t.Context(), tc.command, 10*time.Second)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			require.NotNil(t, res)
			assert.Equal(t, tc.wantStdout, res.Stdout)
			assert.Equal(t, tc.wantStderr, res.Stderr)
			assert.Equal(t, tc.wantExit, res.ExitCode)
		})
	}
}

func TestExecutorTimeout(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	e := execs.NewExecutor()

	start := time.Now()
	res, err := e.Run(t.Context(), "sleep 10", 200*time.Millisecond)

	require.ErrorIs(t, err, execs.ErrCommandTimeout)
	require.NotNil(t, res)
	assert.Less(t, time.Since(start), 5*time.Second, "process must be killed at the deadline")
}

func TestExecutorTimeoutKillsChildren(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	marker := filepath.Join(t.TempDir(), "survived")

	e := execs.NewExecutor()

	_, err := e.Run(t.Context(), "(sleep 1; touch '"+marker+"') & wait", 200*time.Millisecond)
	require.ErrorIs(t, err, execs.ErrCommandTimeout)

	time.Sleep(2 * time.Second)
	assert.NoFileExists(t, marker, "background child of a timed-out command must be killed")
}

func TestExecutorTracing(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	e := execs.NewExecutor(execs.WithTracerProvider(tp))

	_, err := e.Run(t.Context(), "true", time.Second)
	require.NoError(t, err)

	_, err = e.Run(t.Context(), "exit 3", time.Second)
	require.ErrorIs(t, err, execs.ErrCommandExecution)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "exec", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestExecutorEmptyCommand(t *testing.T) {
	t.Parallel()

	e := execs.NewExecutor()

	_, err := e.Run(t.Context(), "   ", time.Second)
	require.ErrorIs(t, err, execs.ErrEmptyCommand)

	argv := execs.NewExecutor(execs.WithMode(execs.ModeArgv))

	_, err = argv.Run(t.Context(), `"unterminated`, time.Second)
	require.Error(t, err)

	_, err = argv.Run(t.Context(), "echo a; echo b", time.Second)
	require.ErrorIs(t, err, execs.ErrShellOperator)
}

func TestExecutorEnvironment(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	env := execs.NewEnvironment([]string{"PATH=/usr/bin:/bin", "SECRET=hidden", "CLEAN_MODE=deep"})
	env.Passthrough = []execs.CallerRef{{Pattern: "^CLEAN_"}}
	env.Env = []execs.EnvVar{{Name: "EXTRA", Value: "1"}}
	require.NoError(t, env.Compile())

	e := execs.NewExecutor(execs.WithEnvironment(env), execs.WithDir(t.TempDir()))

	res, err := e.Run(t.Context(), `echo "$CLEAN_MODE-$EXTRA-$SECRET"`, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "deep-1-\n", res.Stdout)
}

func TestEnvironmentEnviron(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		passthrough []execs.CallerRef
		env         []execs.EnvVar
		base        []string
		want        []string
	}{
		"only essential variables by default": {
			base: []string{"PATH=/bin", "HOME=/home/a", "AWS_SECRET=x", "MALFORMED"},
			want: []string{"HOME=/home/a", "PATH=/bin"},
		},
		"passthrough by name": {
			base:        []string{"PATH=/bin", "GOPATH=/go"},
			passthrough: []execs.CallerRef{{Name: "GOPATH"}, {Name: "MISSING"}},
			want:        []string{"GOPATH=/go", "PATH=/bin"},
		},
		"passthrough by pattern": {
			base:        []string{"CLEAN_A=1", "CLEAN_B=2", "OTHER=3"},
			passthrough: []execs.CallerRef{{Pattern: "^CLEAN_"}},
			want:        []string{"CLEAN_A=1", "CLEAN_B=2"},
		},
		"static values override inherited ones": {
			base: []string{"PATH=/bin"},
			env:  []execs.EnvVar{{Name: "PATH", Value: "/custom"}, {Name: ""}},
			want: []string{"PATH=/custom"},
		},
		"values may contain equals signs": {
			base: []string{"PATH=/bin:/a=b"},
			want: []string{"PATH=/bin:/a=b"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			env := execs.NewEnvironment(tc.base)
			env.Passthrough = tc.passthrough
			env.Env = tc.env
			require.NoError(t, env.Compile())

			assert.Equal(t, tc.want, env.Environ())
		})
	}
}

func TestEnvironmentCompileError(t *testing.T) {
	t.Parallel()

	env := execs.NewEnvironment(nil)
	env.Passthrough = []execs.CallerRef{{Pattern: "("}}

	err := env.Compile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passthrough[0]")
}
