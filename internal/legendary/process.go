package legendary

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a running long-lived CLI invocation. Lines merges stdout and
// stderr; it must be drained or the process stalls once the buffer fills.
type Process struct {
	Args []string

	cmd    *exec.Cmd
	cancel context.CancelFunc
	lines  chan string
	done   chan struct{}

	exit int
	err  error
}

// Spawn starts a subcommand without a timeout. The process is killed when ctx
// is cancelled or Kill is called.
func (c *Client) Spawn(ctx context.Context, args ...string) (*Process, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := c.build(ctx, args)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start legendary %s: %w", subcommand(args), err)
	}

	p := &Process{Args: args, cmd: cmd, cancel: cancel, lines: make(chan string, 64), done: make(chan struct{})}
	var wg sync.WaitGroup
	wg.Add(2)
	go p.scan(stdout, &wg)
	go p.scan(stderr, &wg)
	go func() {
		// pipes must reach EOF before Wait
		wg.Wait()
		close(p.lines)
		err := cmd.Wait()
		p.exit = exitCode(cmd, err)
		p.err = err
		cancel()
		close(p.done)
	}()
	return p, nil
}

func (p *Process) scan(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p.lines <- sc.Text()
	}
}

// Lines streams output lines; the channel is closed when both pipes close.
func (p *Process) Lines() <-chan string { return p.lines }

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Wait blocks until exit and returns the exit code and wait error.
func (p *Process) Wait() (int, error) {
	<-p.done
	return p.exit, p.err
}

// Interrupt asks the process to stop gracefully, falling back to Kill where
// signals are unsupported.
func (p *Process) Interrupt() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		return p.Kill()
	}
	return nil
}

// Kill terminates the process immediately.
func (p *Process) Kill() error {
	p.cancel()
	return nil
}
