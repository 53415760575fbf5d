// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package shell

// Handler observes a proxied session. All four hooks are called from the
// dispatcher goroutine only, so implementations need no locking against
// each other. Byte slices passed to OnInput and OnOutput are owned by
// the handler; they are not reused by the session.
//
// A hook that blocks delays later hooks but never the forwarding path.
type Handler interface {
	// OnInput receives bytes already written to the child's PTY.
	OnInput(data []byte)

	// OnOutput receives bytes already written to the host's stdout.
	OnOutput(data []byte)

	// OnResize receives the terminal size just applied to the PTY.
	OnResize(size WindowSize)

	// OnShutdown is called exactly once, after the child's output
	// stream ended and every tapped byte has been delivered.
	OnShutdown()
}

// NopHandler implements every Handler hook as a no-op. Embed it to
// implement only the hooks an observer cares about:
//
//	type outputCounter struct {
//	    shell.NopHandler
//	    total int
//	}
//
//	func (c *outputCounter) OnOutput(data []byte) { c.total += len(data) }
type NopHandler struct{}

func (NopHandler) OnInput([]byte)      {}
func (NopHandler) OnOutput([]byte)     {}
func (NopHandler) OnResize(WindowSize) {}
func (NopHandler) OnShutdown()         {}

// CallbackHandler is a Handler assembled from independently supplied
// functions. Hooks without a function are no-ops.
//
//	handler := shell.NewCallbackHandler().
//	    WithOutput(func(data []byte) { log.Write(data) }).
//	    WithShutdown(func() { log.Close() })
type CallbackHandler struct {
	input    func([]byte)
	output   func([]byte)
	resize   func(WindowSize)
	shutdown func()
}

// NewCallbackHandler returns a CallbackHandler with every hook unset.
func NewCallbackHandler() *CallbackHandler {
	return &CallbackHandler{}
}

// WithInput sets the OnInput function and returns the handler.
func (handler *CallbackHandler) WithInput(function func(data []byte)) *CallbackHandler {
	handler.input = function
	return handler
}

// WithOutput sets the OnOutput function and returns the handler.
func (handler *CallbackHandler) WithOutput(function func(data []byte)) *CallbackHandler {
	handler.output = function
	return handler
}

// WithResize sets the OnResize function and returns the handler.
func (handler *CallbackHandler) WithResize(function func(size WindowSize)) *CallbackHandler {
	handler.resize = function
	return handler
}

// WithShutdown sets the OnShutdown function and returns the handler.
func (handler *CallbackHandler) WithShutdown(function func()) *CallbackHandler {
	handler.shutdown = function
	return handler
}

func (handler *CallbackHandler) OnInput(data []byte) {
	if handler.input != nil {
		handler.input(data)
	}
}

func (handler *CallbackHandler) OnOutput(data []byte) {
	if handler.output != nil {
		handler.output(data)
	}
}

func (handler *CallbackHandler) OnResize(size WindowSize) {
	if handler.resize != nil {
		handler.resize(size)
	}
}

func (handler *CallbackHandler) OnShutdown() {
	if handler.shutdown != nil {
		handler.shutdown()
	}
}

// MultiHandler returns a Handler that calls each of handlers in order
// for every hook. Nil entries are skipped. The byte slice handed to each
// observer is the same slice; observers that modify it must copy first.
func MultiHandler(handlers ...Handler) Handler {
	filtered := make(multiHandler, 0, len(handlers))
	for _, handler := range handlers {
		if handler != nil {
			filtered = append(filtered, handler)
		}
	}
	return filtered
}

type multiHandler []Handler

func (handlers multiHandler) OnInput(data []byte) {
	for _, handler := range handlers {
		handler.OnInput(data)
	}
}

func (handlers multiHandler) OnOutput(data []byte) {
	for _, handler := range handlers {
		handler.OnOutput(data)
	}
}

func (handlers multiHandler) OnResize(size WindowSize) {
	for _, handler := range handlers {
		handler.OnResize(size)
	}
}

func (handlers multiHandler) OnShutdown() {
	for _, handler := range handlers {
		handler.OnShutdown()
	}
}
