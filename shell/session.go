// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Child is the process side of a session as seen by the proxy: a
// process identifier that is zero in the child branch of a fork and
// positive in the parent, and the parent's PTY master. PTY may return
// nil in the child branch.
type Child interface {
	Pid() int
	PTY() *os.File
}

// Config configures a Session. Zero values select the process's real
// stdin, stdout, and controlling terminal.
type Config struct {
	// Stdin is the real input forwarded to the child. Default os.Stdin.
	Stdin io.Reader

	// Stdout receives the child's output. If it implements
	// Flush() error, it is flushed after every chunk. Default os.Stdout.
	Stdout io.Writer

	// Terminal is the controlling terminal switched to raw mode by
	// Proxy and queried on resize. Defaults to Stdin when Stdin is an
	// *os.File.
	Terminal *os.File

	// Logger receives session diagnostics. Default slog.Default().
	Logger *slog.Logger

	// Exit terminates the process after a fatal forwarding error.
	// Default os.Exit.
	Exit func(code int)
}

// Session proxies one child. The saved terminal attributes are captured
// at most once per Session.
type Session struct {
	child    Child
	stdin    io.Reader
	stdout   io.Writer
	terminal *os.File
	logger   *slog.Logger
	exit     func(int)

	mutex sync.Mutex
	mode  *TerminalMode

	// finished is set once the dispatcher has returned. Pump errors
	// after that point belong to an abandoned goroutine, not to the
	// session.
	finished atomic.Bool
}

// New returns a Session for child.
func New(child Child, config Config) *Session {
	if config.Stdin == nil {
		config.Stdin = os.Stdin
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Terminal == nil {
		if file, ok := config.Stdin.(*os.File); ok {
			config.Terminal = file
		}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Exit == nil {
		config.Exit = os.Exit
	}
	return &Session{
		child:    child,
		stdin:    config.Stdin,
		stdout:   config.Stdout,
		terminal: config.Terminal,
		logger:   config.Logger,
		exit:     config.Exit,
	}
}

// Child returns the session's child handle.
func (session *Session) Child() Child {
	return session.child
}

// Exec replaces the current process image with command when called in
// the child branch. It never returns on success. In the parent branch
// it does nothing and returns nil.
func (session *Session) Exec(command string, args ...string) error {
	if session.child.Pid() != 0 {
		return nil
	}
	return Exec(command, args...)
}

// Exec resolves command on PATH and replaces the current process image
// with it, keeping the environment. It returns only if the exec could
// not be performed.
func Exec(command string, args ...string) error {
	path, err := exec.LookPath(command)
	if err != nil {
		return newError(KindExec, "resolve %q: %w", command, err)
	}
	argv := append([]string{command}, args...)
	if err := unix.Exec(path, argv, os.Environ()); err != nil {
		return newError(KindExec, "exec %s: %w", path, err)
	}
	return nil
}

// Proxy switches the terminal to raw mode and runs ProxyRaw. The
// terminal's prior attributes are restored on every return path; a
// restore failure after the loop has run is logged, not returned. Proxy
// does nothing in the child branch.
func (session *Session) Proxy(handler Handler) error {
	if session.child.Pid() == 0 {
		return nil
	}

	session.mutex.Lock()
	if session.mode != nil {
		session.mutex.Unlock()
		return newError(KindTerminal, "terminal attributes already captured for this session")
	}
	mode, err := EnterRaw(session.terminal)
	if err != nil {
		session.mutex.Unlock()
		return err
	}
	session.mode = mode
	session.mutex.Unlock()

	defer func() {
		if restoreErr := mode.Restore(); restoreErr != nil {
			session.logger.Warn("restoring terminal after session failed", "error", restoreErr)
		}
	}()

	return session.ProxyRaw(handler)
}

// ProxyRaw forwards stdin to the child and the child to stdout until the
// child's output ends, delivering every forwarded byte and every resize
// to handler on the calling goroutine. It does not touch terminal modes;
// use it directly when stdin is not a terminal. A resize listener is
// registered only when the session has a terminal.
func (session *Session) ProxyRaw(handler Handler) error {
	pty := session.child.PTY()
	if pty == nil {
		return newError(KindDuplicate, "child has no PTY (pid %d)", session.child.Pid())
	}

	dispatcher := NewDispatcher(handler, session.logger)
	inputTap := NewTap()
	outputTap := NewTap()

	views, err := duplicateViews(pty)
	if err != nil {
		return err
	}
	defer views.close()

	if err := dispatcher.RegisterTap(SourceInput, inputTap); err != nil {
		return err
	}
	if err := dispatcher.RegisterTap(SourceOutput, outputTap); err != nil {
		return err
	}
	if IsTerminal(session.terminal) {
		if err := dispatcher.RegisterResize(session.terminal, views.resize); err != nil {
			return err
		}
	}

	session.logger.Debug("proxy started", "pid", session.child.Pid(), "pty", pty.Name())

	go func() {
		if err := pumpInput(session.stdin, views.input, inputTap); err != nil {
			session.fail("input", err)
		}
	}()
	go func() {
		if err := pumpOutput(views.output, session.stdout, outputTap); err != nil {
			session.fail("output", err)
		}
		dispatcher.Notify(NotifyShutdown)
	}()

	err = dispatcher.Run()
	session.finished.Store(true)
	session.logger.Debug("proxy finished", "pid", session.child.Pid())
	return err
}

// fail ends the process after a forwarding error, restoring the
// terminal first so the user's shell is usable afterwards.
func (session *Session) fail(direction string, err error) {
	if session.finished.Load() {
		return
	}
	session.logger.Error("forwarding failed", "direction", direction, "error", err)

	session.mutex.Lock()
	mode := session.mode
	session.mutex.Unlock()
	if mode != nil {
		if restoreErr := mode.Restore(); restoreErr != nil {
			session.logger.Warn("restoring terminal before exit failed", "error", restoreErr)
		}
	}
	session.exit(1)
}

// ptyViews are independent descriptors for the same PTY master, one per
// direction, so no goroutine shares a descriptor with another.
type ptyViews struct {
	input  *os.File
	output *os.File
	resize *os.File
}

func duplicateViews(pty *os.File) (*ptyViews, error) {
	views := &ptyViews{}
	targets := []struct {
		file  **os.File
		label string
	}{
		{&views.input, "input"},
		{&views.output, "output"},
		{&views.resize, "resize"},
	}
	for _, target := range targets {
		fd, err := unix.Dup(int(pty.Fd()))
		if err != nil {
			views.close()
			return nil, newError(KindDuplicate, "duplicate %s for %s: %w", pty.Name(), target.label, err)
		}
		unix.CloseOnExec(fd)
		*target.file = os.NewFile(uintptr(fd), pty.Name()+" ("+target.label+")")
	}
	return views, nil
}

func (views *ptyViews) close() {
	for _, file := range []*os.File{views.input, views.output, views.resize} {
		if file != nil {
			file.Close()
		}
	}
}
