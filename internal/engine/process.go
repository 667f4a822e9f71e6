package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/checkora/internal/board"
)

type ProcessConfig struct {
	Path     string
	Args     []string
	Env      []string
	Timeout  time.Duration
	MaxProcs int
	Logger   *zap.Logger
}

// Process runs the validation engine binary once per command: one line on
// stdin, one line back on stdout. Concurrent processes are capped by MaxProcs.
type Process struct {
	path    string
	args    []string
	env     []string
	timeout time.Duration
	slots   chan struct{}
	logger  *zap.Logger
}

func NewProcess(cfg ProcessConfig) (*Process, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	capacity := cfg.MaxProcs
	if capacity <= 0 {
		capacity = defaultMaxProcs()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Process{
		path:    cfg.Path,
		args:    append([]string(nil), cfg.Args...),
		env:     append([]string(nil), cfg.Env...),
		timeout: timeout,
		slots:   make(chan struct{}, capacity),
		logger:  logger,
	}, nil
}

func defaultMaxProcs() int {
	n := runtime.NumCPU() * 2
	if n < 2 {
		n = 2
	}
	return n
}

func (p *Process) Path() string { return p.path }

func (p *Process) QueryMoves(ctx context.Context, wire string, turn board.Color, from board.Square) ([]Destination, error) {
	line, err := p.call(ctx, VerbMoves, FormatMoves(wire, turn, from))
	if err != nil {
		return nil, err
	}
	return ParseMovesReply(line)
}

func (p *Process) QueryPromotion(ctx context.Context, wire string, turn board.Color, from, to board.Square, kind board.PromotionKind) (string, error) {
	line, err := p.call(ctx, VerbPromote, FormatPromote(wire, turn, from, to, kind))
	if err != nil {
		return "", err
	}
	return ParsePromoteReply(line)
}

func (p *Process) call(ctx context.Context, verb, command string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	if err := p.acquire(callCtx); err != nil {
		return "", p.classify(callCtx, verb, err)
	}
	defer p.release()

	line, err := p.exchange(callCtx, command)
	elapsed := time.Since(started)
	if err != nil {
		err = p.classify(callCtx, verb, err)
		p.logger.Warn("engine_call_failed",
			zap.String("verb", verb),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return "", err
	}
	p.logger.Debug("engine_call",
		zap.String("verb", verb),
		zap.Duration("elapsed", elapsed),
	)
	return line, nil
}

func (p *Process) acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Process) release() { <-p.slots }

func (p *Process) exchange(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, p.path, p.args...)
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("%w: create stdin pipe: %v", ErrUnavailable, err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return "", fmt.Errorf("%w: create stdout pipe: %v", ErrUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return "", fmt.Errorf("%w: start engine: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	if _, err := io.WriteString(stdin, command+"\n"); err != nil {
		return "", fmt.Errorf("%w: send command: %v", ErrUnavailable, err)
	}
	stdin.Close()

	return readLine(ctx, bufio.NewReader(stdoutPipe))
}

func readLine(ctx context.Context, r *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.line != "" {
			return res.line, nil
		}
		if res.err == nil || errors.Is(res.err, io.EOF) {
			return "", fmt.Errorf("%w: empty reply", ErrMalformedReply)
		}
		return "", fmt.Errorf("%w: read reply: %v", ErrUnavailable, res.err)
	}
}

func (p *Process) classify(ctx context.Context, verb string, err error) error {
	switch {
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrMalformedReply), errors.Is(err, ErrTimeout):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %s", ErrTimeout, verb, p.timeout)
	default:
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, verb, err)
	}
}
