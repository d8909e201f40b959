package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"EmeraldAgent/internal/domain/service"
)

const (
	stderrTail         = 2048
	defaultStdoutLimit = 4 << 20
)

var errStdoutLimit = errors.New("engine output exceeds limit")

// InvokerOption configures Invoker.
type InvokerOption func(*Invoker)

// Invoker runs one strategy as a child process per call.
type Invoker struct {
	dir       string
	env       []string
	timeout   time.Duration
	waitDelay time.Duration
	maxStdout int
}

// NewInvoker creates an invoker that runs engines in dir. A relative dir is
// resolved against the service's working directory.
func NewInvoker(dir string, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		dir:       absDir(dir),
		timeout:   60 * time.Second,
		waitDelay: 2 * time.Second,
		maxStdout: defaultStdoutLimit,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithEnv appends KEY=VALUE pairs to the child environment.
func WithEnv(env []string) InvokerOption {
	return func(i *Invoker) {
		i.env = append(i.env, env...)
	}
}

// WithWaitDelay bounds how long Wait blocks on pipes after the child is killed.
func WithWaitDelay(d time.Duration) InvokerOption {
	return func(i *Invoker) {
		if d > 0 {
			i.waitDelay = d
		}
	}
}

// WithStdoutLimit caps the bytes read from the engine's stdout. Exceeding it
// kills the child and fails the attempt as malformed output.
func WithStdoutLimit(n int) InvokerOption {
	return func(i *Invoker) {
		if n > 0 {
			i.maxStdout = n
		}
	}
}

// Timeout returns the per-attempt deadline.
func (i *Invoker) Timeout() time.Duration { return i.timeout }

// Invoke launches s, writes payload to its stdin and returns stdout on exit status zero.
func (i *Invoker) Invoke(ctx context.Context, s Strategy, payload []byte) ([]byte, error) {
	name := string(s.Kind)
	if s.Entry != "" {
		if _, err := os.Stat(s.Entry); err != nil {
			return nil, &InvokeError{Strategy: name, Kind: service.FailureLaunch, Err: fmt.Errorf("entry: %w", err)}
		}
	}

	actx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	stdout := &limitedBuffer{limit: i.maxStdout, onExceed: cancel}
	stderr := &tailBuffer{max: stderrTail}
	cmd := exec.CommandContext(actx, s.Command, s.Args...)
	cmd.Dir = i.dir
	cmd.Env = append(os.Environ(), i.env...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = i.waitDelay
	configureEngineProcess(cmd)
	cmd.Cancel = func() error { return terminateEngineProcess(cmd) }

	if err := cmd.Start(); err != nil {
		if actx.Err() != nil {
			return nil, i.contextError(ctx, name)
		}
		return nil, &InvokeError{Strategy: name, Kind: service.FailureLaunch, Err: err}
	}
	err := cmd.Wait()

	if stdout.exceeded {
		return nil, &InvokeError{Strategy: name, Kind: service.FailureMalformed, Stderr: tail(stderr.Bytes()), Err: errStdoutLimit}
	}
	if actx.Err() != nil {
		return nil, i.contextError(ctx, name)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &InvokeError{
				Strategy: name,
				Kind:     service.FailureNonZeroExit,
				ExitCode: exitErr.ExitCode(),
				Stderr:   tail(stderr.Bytes()),
				Err:      err,
			}
		}
		// Exit status zero but an inherited pipe outlived WaitDelay.
		if !errors.Is(err, exec.ErrWaitDelay) {
			return nil, &InvokeError{Strategy: name, Kind: service.FailureNonZeroExit, ExitCode: -1, Stderr: tail(stderr.Bytes()), Err: err}
		}
	}

	return stdout.Bytes(), nil
}

// contextError distinguishes a caller that went away from an elapsed deadline,
// whether it is the attempt's own or the caller's overall budget.
func (i *Invoker) contextError(parent context.Context, name string) *InvokeError {
	if errors.Is(parent.Err(), context.Canceled) {
		return &InvokeError{Strategy: name, Kind: service.FailureCanceled, Err: parent.Err()}
	}
	return &InvokeError{Strategy: name, Kind: service.FailureTimeout, Err: context.DeadlineExceeded}
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(b)
}

// limitedBuffer refuses writes past limit and reports the overflow once.
type limitedBuffer struct {
	buf      bytes.Buffer
	limit    int
	exceeded bool
	onExceed func()
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.exceeded || b.buf.Len()+len(p) > b.limit {
		if !b.exceeded {
			b.exceeded = true
			if b.onExceed != nil {
				b.onExceed()
			}
		}
		return 0, errStdoutLimit
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte { return b.buf.Bytes() }

// tailBuffer keeps only the last max bytes written.
type tailBuffer struct {
	b   []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.b = append(t.b, p...)
	if over := len(t.b) - t.max; over > 0 {
		t.b = append(t.b[:0], t.b[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte { return t.b }
