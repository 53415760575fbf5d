// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ptyproc allocates a PTY and starts a child process on its
// slave side. It is the process collaborator for package shell: a
// [Child] reports a process identifier (zero in the child branch), the
// PTY master, and waits for the child's exit status.
//
// [Start] runs an arbitrary command. [Fork] reproduces the fork model
// of a classic PTY wrapper for a Go binary, which cannot fork: the
// current executable is re-run under a fresh PTY with a marker in its
// environment, and inside that re-run Fork returns a child-branch handle
// on which the caller execs the target shell.
package ptyproc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"

	"github.com/bureau-foundation/ptyshell/shell"
)

// ForkEnvironment is the variable that marks a re-executed process as
// the child branch of Fork. Only its presence with value "1" counts.
const ForkEnvironment = "PTYSHELL_FORK_CHILD"

// Child is a process running behind a PTY, or the child branch itself.
type Child struct {
	pid     int
	command *exec.Cmd
	master  *os.File

	waitOnce  sync.Once
	waitError error
}

// Start starts command with a new PTY as its stdin, stdout, stderr, and
// controlling terminal. A nil size leaves the kernel's default (0x0);
// pass the host terminal's size so the child renders correctly from its
// first frame.
func Start(command *exec.Cmd, size *shell.WindowSize) (*Child, error) {
	var winsize *pty.Winsize
	if size != nil {
		winsize = &pty.Winsize{
			Rows: size.Rows,
			Cols: size.Columns,
			X:    size.PixelWidth,
			Y:    size.PixelHeight,
		}
	}
	master, err := pty.StartWithSize(command, winsize)
	if err != nil {
		return nil, fmt.Errorf("start %s under a PTY: %w", command.Path, err)
	}
	return &Child{
		pid:     command.Process.Pid,
		command: command,
		master:  master,
	}, nil
}

// ForkConfig configures Fork.
type ForkConfig struct {
	// Args are passed to the re-executed binary. Nil means os.Args[1:],
	// so the child branch sees the same flags as the parent.
	Args []string

	// Size is the initial PTY size. See Start.
	Size *shell.WindowSize

	// Env is the child's environment before the marker is added. Nil
	// means os.Environ().
	Env []string
}

// Fork returns a parent-branch Child after re-running the current
// executable under a new PTY, or a child-branch Child (Pid 0, no PTY)
// when called inside that re-run. The marker is removed from the
// environment in the child branch so the shell exec'd next does not
// inherit it.
func Fork(config ForkConfig) (*Child, error) {
	if InChildBranch() {
		if err := os.Unsetenv(ForkEnvironment); err != nil {
			return nil, fmt.Errorf("clear %s: %w", ForkEnvironment, err)
		}
		return &Child{pid: 0}, nil
	}

	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate current executable: %w", err)
	}
	args := config.Args
	if args == nil {
		args = os.Args[1:]
	}
	environment := config.Env
	if environment == nil {
		environment = os.Environ()
	}

	command := exec.Command(executable, args...)
	command.Env = append(append([]string{}, environment...), ForkEnvironment+"=1")
	return Start(command, config.Size)
}

// InChildBranch reports whether this process is the child branch of a
// Fork.
func InChildBranch() bool {
	return os.Getenv(ForkEnvironment) == "1"
}

// Pid returns the child's process ID, or 0 in the child branch.
func (child *Child) Pid() int {
	return child.pid
}

// PTY returns the PTY master, or nil in the child branch.
func (child *Child) PTY() *os.File {
	return child.master
}

// IsChildBranch reports whether this handle is the child branch.
func (child *Child) IsChildBranch() bool {
	return child.pid == 0
}

// Wait blocks until the child exits and returns its status as
// exec.Cmd.Wait reports it: nil for exit code 0, *exec.ExitError
// otherwise. Repeated calls return the first result.
func (child *Child) Wait() error {
	if child.command == nil {
		return errors.New("wait called in the child branch")
	}
	child.waitOnce.Do(func() {
		child.waitError = child.command.Wait()
	})
	return child.waitError
}

// ExitCode returns the child's exit code after Wait, or -1 if the child
// has not been waited for or was killed by a signal.
func (child *Child) ExitCode() int {
	if child.command == nil || child.command.ProcessState == nil {
		return -1
	}
	return child.command.ProcessState.ExitCode()
}

// Signal sends signal to the child.
func (child *Child) Signal(signal os.Signal) error {
	if child.command == nil || child.command.Process == nil {
		return errors.New("signal called in the child branch")
	}
	return child.command.Process.Signal(signal)
}

// Close closes the PTY master. The session's duplicated views stay
// valid until the session closes them.
func (child *Child) Close() error {
	if child.master == nil {
		return nil
	}
	return child.master.Close()
}
