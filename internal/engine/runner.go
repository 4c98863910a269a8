package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Stream names passed to a LineFunc.
const (
	Stdout = "stdout"
	Stderr = "stderr"
)

// LineFunc receives each output line of a running command.
type LineFunc func(stream, line string)

// Runner executes an external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args []string, onLine LineFunc) error
}

// ExecRunner runs commands with os/exec. Commands are not bound to ctx: a
// backup or prepare interrupted halfway leaves the target unusable, so they
// always run to their natural exit and any hard timeout belongs to the
// process supervisor.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

func (ExecRunner) Run(_ context.Context, name string, args []string, onLine LineFunc) error {
	cmd := exec.Command(name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}

	// Both pipes must be drained before Wait closes them.
	var g errgroup.Group
	g.Go(func() error { return pump(stdout, Stdout, onLine) })
	g.Go(func() error { return pump(stderr, Stderr, onLine) })
	pumpErr := g.Wait()

	if err := cmd.Wait(); err != nil {
		return err
	}
	if pumpErr != nil {
		return fmt.Errorf("reading %s output: %w", name, pumpErr)
	}
	return nil
}

func pump(r io.Reader, stream string, onLine LineFunc) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(stream, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		// Keep draining so the child never blocks on a full pipe.
		io.Copy(io.Discard, r)
		return err
	}
	return nil
}
