// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Source identifies a tap registered with a Dispatcher.
type Source int

const (
	// SourceInput is the copy of bytes forwarded from stdin to the PTY.
	SourceInput Source = iota

	// SourceOutput is the copy of bytes forwarded from the PTY to stdout.
	SourceOutput
)

func (source Source) String() string {
	switch source {
	case SourceInput:
		return "input"
	case SourceOutput:
		return "output"
	default:
		return fmt.Sprintf("source(%d)", int(source))
	}
}

// Notification is a cross-goroutine message to a Dispatcher.
type Notification int

const (
	// NotifyResize asks the dispatcher to re-query the terminal size
	// and apply it to the PTY. Pending resize notifications coalesce
	// into one query-and-apply cycle.
	NotifyResize Notification = iota

	// NotifyShutdown ends the dispatch loop after every tapped byte
	// has been delivered.
	NotifyShutdown
)

func (notification Notification) String() string {
	switch notification {
	case NotifyResize:
		return "resize"
	case NotifyShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("notification(%d)", int(notification))
	}
}

// State is the lifecycle state of a Dispatcher.
type State int

const (
	// StateRunning is the initial state: sources can be registered and
	// Run dispatches events.
	StateRunning State = iota

	// StateStopped is terminal. The handler has seen OnShutdown and
	// every source is unregistered.
	StateStopped
)

func (state State) String() string {
	if state == StateStopped {
		return "stopped"
	}
	return "running"
}

// Chunk limits for handler deliveries, matching the read sizes of the
// forwarding pumps.
const (
	inputChunkSize  = 128
	outputChunkSize = 10 * 1024
)

// Dispatcher is the single-goroutine event loop of a session. It waits
// on the two taps, the resize channel, and the shutdown channel, and
// invokes the handler for each. Registration methods and Notify may be
// called from any goroutine; handler hooks run only inside Run.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger

	mutex    sync.Mutex
	state    State
	running  bool
	taps     [2]*Tap
	terminal *os.File
	pty      *os.File

	// resize has capacity one. The Go runtime's signal handler and
	// Notify both send without blocking, so any burst of SIGWINCH
	// arriving before the loop wakes leaves a single token.
	resize chan os.Signal

	// listening is true once signal.Notify has been called on resize.
	listening bool

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewDispatcher returns a running dispatcher with no registered sources.
// A nil logger uses slog.Default.
func NewDispatcher(handler Handler, logger *slog.Logger) *Dispatcher {
	if handler == nil {
		handler = NopHandler{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handler:  handler,
		logger:   logger,
		resize:   make(chan os.Signal, 1),
		shutdown: make(chan struct{}),
	}
}

// RegisterTap attaches tap as the given source.
func (dispatcher *Dispatcher) RegisterTap(source Source, tap *Tap) error {
	if source != SourceInput && source != SourceOutput {
		return newError(KindRegister, "register %s: unknown source", source)
	}
	if tap == nil {
		return newError(KindRegister, "register %s: nil tap", source)
	}

	dispatcher.mutex.Lock()
	defer dispatcher.mutex.Unlock()

	if err := dispatcher.checkRegistrable(); err != nil {
		return newError(KindRegister, "register %s: %w", source, err)
	}
	if dispatcher.taps[source] != nil {
		return newError(KindRegister, "register %s: %w", source, ErrAlreadyRegistered)
	}
	dispatcher.taps[source] = tap
	return nil
}

// RegisterResize subscribes to SIGWINCH. On each (coalesced) resize the
// dispatcher queries terminal and applies the result to pty before
// calling OnResize.
func (dispatcher *Dispatcher) RegisterResize(terminal, pty *os.File) error {
	if terminal == nil || pty == nil {
		return newError(KindRegister, "register resize: terminal and PTY are required")
	}

	dispatcher.mutex.Lock()
	defer dispatcher.mutex.Unlock()

	if err := dispatcher.checkRegistrable(); err != nil {
		return newError(KindRegister, "register resize: %w", err)
	}
	if dispatcher.listening {
		return newError(KindRegister, "register resize: %w", ErrAlreadyRegistered)
	}
	dispatcher.terminal = terminal
	dispatcher.pty = pty
	signal.Notify(dispatcher.resize, syscall.SIGWINCH)
	dispatcher.listening = true
	return nil
}

func (dispatcher *Dispatcher) checkRegistrable() error {
	if dispatcher.state == StateStopped {
		return ErrStopped
	}
	if dispatcher.running {
		return fmt.Errorf("dispatcher already running")
	}
	return nil
}

// Notify delivers a notification to the loop. It never blocks and is
// safe to call from any goroutine, any number of times: repeated
// shutdowns collapse into one, pending resizes into one cycle.
func (dispatcher *Dispatcher) Notify(notification Notification) {
	switch notification {
	case NotifyResize:
		select {
		case dispatcher.resize <- syscall.SIGWINCH:
		default:
		}
	case NotifyShutdown:
		dispatcher.shutdownOnce.Do(func() { close(dispatcher.shutdown) })
	}
}

// State returns the current lifecycle state.
func (dispatcher *Dispatcher) State() State {
	dispatcher.mutex.Lock()
	defer dispatcher.mutex.Unlock()
	return dispatcher.state
}

// Run dispatches events until NotifyShutdown is observed, then delivers
// whatever the taps still hold, calls OnShutdown, unregisters every
// source, and returns nil. A dispatcher runs at most once.
func (dispatcher *Dispatcher) Run() error {
	dispatcher.mutex.Lock()
	if dispatcher.state == StateStopped {
		dispatcher.mutex.Unlock()
		return newError(KindDispatcher, "run: %w", ErrStopped)
	}
	if dispatcher.running {
		dispatcher.mutex.Unlock()
		return newError(KindDispatcher, "run: dispatcher already running")
	}
	dispatcher.running = true
	// A nil channel never becomes ready, which is exactly the behavior
	// wanted for an unregistered source.
	var inputReady, outputReady <-chan struct{}
	if tap := dispatcher.taps[SourceInput]; tap != nil {
		inputReady = tap.Ready()
	}
	if tap := dispatcher.taps[SourceOutput]; tap != nil {
		outputReady = tap.Ready()
	}
	dispatcher.mutex.Unlock()

	for {
		select {
		case <-inputReady:
			dispatcher.deliver(SourceInput)
		case <-outputReady:
			dispatcher.deliver(SourceOutput)
		case <-dispatcher.resize:
			dispatcher.resizeCycle()
		case <-dispatcher.shutdown:
			dispatcher.stop()
			return nil
		}
	}
}

// deliver drains one tap into the handler.
func (dispatcher *Dispatcher) deliver(source Source) {
	tap := dispatcher.taps[source]
	if tap == nil {
		return
	}
	switch source {
	case SourceInput:
		for _, chunk := range tap.Drain(inputChunkSize) {
			dispatcher.handler.OnInput(chunk)
		}
	case SourceOutput:
		for _, chunk := range tap.Drain(outputChunkSize) {
			dispatcher.handler.OnOutput(chunk)
		}
	}
}

// resizeCycle queries the terminal now, not when the signal arrived,
// so the size handed to OnResize is never staler than this cycle.
func (dispatcher *Dispatcher) resizeCycle() {
	if dispatcher.terminal == nil {
		dispatcher.logger.Debug("resize notification without a registered terminal")
		return
	}
	size, err := QuerySize(dispatcher.terminal)
	if err != nil {
		dispatcher.logger.Warn("resize: query terminal size failed", "error", err)
		return
	}
	if err := ApplySize(dispatcher.pty, size); err != nil {
		dispatcher.logger.Warn("resize: apply to PTY failed", "size", size.String(), "error", err)
		return
	}
	dispatcher.logger.Debug("terminal resized", "rows", size.Rows, "columns", size.Columns)
	dispatcher.handler.OnResize(size)
}

func (dispatcher *Dispatcher) stop() {
	// Bytes committed to the primary path before shutdown was raised
	// are already queued: the output pump writes its tap before it
	// notifies.
	dispatcher.deliver(SourceInput)
	dispatcher.deliver(SourceOutput)
	dispatcher.handler.OnShutdown()

	dispatcher.mutex.Lock()
	defer dispatcher.mutex.Unlock()
	if dispatcher.listening {
		signal.Stop(dispatcher.resize)
		dispatcher.listening = false
	}
	for _, tap := range dispatcher.taps {
		if tap != nil {
			tap.Close()
		}
	}
	dispatcher.state = StateStopped
	dispatcher.logger.Debug("dispatcher stopped")
}
