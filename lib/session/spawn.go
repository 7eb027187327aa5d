// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/infractura/ssh-desktop/lib/port"
	"github.com/infractura/ssh-desktop/lib/runner"
)

// Spec is everything a Spawner needs to start one session's process.
type Spec struct {
	SessionID string
	Runner    runner.Runner

	// Port is the forwarding port of a GraphicalForward session.
	Port port.Port

	// Shell runs Shell sessions. XpraBinary runs GraphicalForward
	// sessions.
	Shell      string
	XpraBinary string

	// OutputDelay bounds how long Wait keeps draining the output pipe
	// after the leader exits. Descendants that inherited the pipe would
	// otherwise hold Wait open indefinitely. Zero means
	// DefaultOutputDelay.
	OutputDelay time.Duration
}

// DefaultOutputDelay is the output drain bound when Spec leaves it unset.
const DefaultOutputDelay = 2 * time.Second

// Process is a running session subprocess. Signals go to its whole
// process group. Wait is called exactly once, by the session's
// supervising goroutine.
type Process interface {
	Pid() int
	Signal(sig syscall.Signal) error
	Kill() error
	Wait() error
}

// Terminal is implemented by processes attached to a pseudo-terminal.
type Terminal interface {
	Terminal() *os.File
}

// Spawner starts session processes.
type Spawner interface {
	Spawn(spec Spec) (Process, error)
}

// ExecSpawner starts real subprocesses.
type ExecSpawner struct{}

// Command builds the command line for a runner. It is the only place a
// Runner becomes an operating system command. Echo has no command.
func Command(spec Spec) (path string, args []string, err error) {
	switch r := spec.Runner.(type) {
	case runner.Shell:
		shell := spec.Shell
		if shell == "" {
			shell = "/bin/sh"
		}
		if r.Command == "" {
			return shell, []string{"-l"}, nil
		}
		return shell, []string{"-c", r.Command}, nil

	case runner.GraphicalForward:
		if r.WindowManager == "" {
			return "", nil, fmt.Errorf("%w: graphical session without a window manager", ErrInvalidRequest)
		}
		binary := spec.XpraBinary
		if binary == "" {
			binary = "xpra"
		}
		return binary, []string{
			"start", ":" + strconv.Itoa(int(r.Display)),
			"--bind-ws=127.0.0.1:" + strconv.Itoa(int(spec.Port)),
			"--start=" + r.WindowManager,
			"--html=on",
			"--pulseaudio=no",
			"--daemon=no",
			"--exit-with-children=yes",
		}, nil

	case runner.Echo:
		return "", nil, fmt.Errorf("%w: echo sessions run no process", ErrInvalidRequest)
	}
	return "", nil, fmt.Errorf("%w: unknown runner %T", ErrInvalidRequest, spec.Runner)
}

// Spawn starts the process for spec. Graphical sessions get their own
// process group and DISPLAY. Shell sessions get a fresh pseudo-terminal
// as controlling terminal, which also makes them a session leader.
func (ExecSpawner) Spawn(spec Spec) (Process, error) {
	path, args, err := Command(spec)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...)
	output := &tailBuffer{limit: 4096}

	var master *os.File
	switch r := spec.Runner.(type) {
	case runner.GraphicalForward:
		cmd.Env = append(withoutDisplay(os.Environ()), "DISPLAY="+r.Display.String())
		cmd.Stdout = output
		cmd.Stderr = output
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
		cmd.WaitDelay = spec.OutputDelay
		if cmd.WaitDelay <= 0 {
			cmd.WaitDelay = DefaultOutputDelay
		}

	case runner.Shell:
		var slave *os.File
		master, slave, err = openPTY()
		if err != nil {
			return nil, fmt.Errorf("allocating terminal: %w", err)
		}
		defer slave.Close()
		cmd.Env = withoutDisplay(os.Environ())
		cmd.Stdin = slave
		cmd.Stdout = slave
		cmd.Stderr = slave
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Setsid:  true,
			Setctty: true,
			Ctty:    0,
		}
	}

	if err := cmd.Start(); err != nil {
		if master != nil {
			master.Close()
		}
		return nil, fmt.Errorf("starting %s: %w", path, err)
	}
	if master != nil {
		// A full terminal buffer would block the shell's writes.
		go io.Copy(output, master)
	}
	return &execProcess{cmd: cmd, master: master, output: output}, nil
}

// withoutDisplay drops display-server variables so a child never talks
// to the host's own display by accident.
func withoutDisplay(environment []string) []string {
	filtered := make([]string, 0, len(environment))
	for _, variable := range environment {
		if strings.HasPrefix(variable, "DISPLAY=") || strings.HasPrefix(variable, "WAYLAND_DISPLAY=") {
			continue
		}
		filtered = append(filtered, variable)
	}
	return filtered
}

type execProcess struct {
	cmd    *exec.Cmd
	master *os.File
	output *tailBuffer
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

// Signal delivers sig to the process group led by the child.
func (p *execProcess) Signal(sig syscall.Signal) error {
	err := unix.Kill(-p.cmd.Process.Pid, sig)
	if err == unix.ESRCH {
		return nil
	}
	return err
}

func (p *execProcess) Kill() error { return p.Signal(syscall.SIGKILL) }

// Wait reports the leader's exit. A zero exit whose output pipe was
// still held open by descendants is reported as success.
func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	if errors.Is(err, exec.ErrWaitDelay) {
		err = nil
	}
	if p.master != nil {
		p.master.Close()
	}
	if err != nil {
		if tail := strings.TrimSpace(p.output.String()); tail != "" {
			return fmt.Errorf("%w: %s", err, lastLine(tail))
		}
	}
	return err
}

// Terminal returns the pseudo-terminal master. Output is already drained
// into the exit-error tail, so callers use it for input and window size.
func (p *execProcess) Terminal() *os.File { return p.master }

func lastLine(text string) string {
	if index := strings.LastIndexByte(text, '\n'); index >= 0 {
		return text[index+1:]
	}
	return text
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if overflow := len(b.data) - b.limit; overflow > 0 {
		b.data = append(b.data[:0], b.data[overflow:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
