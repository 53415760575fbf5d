// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// ptyshell runs a shell (or any command) behind a pseudo-terminal and
// proxies the user's terminal to it byte for byte, while observers
// record, transcribe, and count the session.
//
// The process forks the way a classic PTY wrapper does: ptyshell
// re-executes itself under a new PTY, and the re-executed copy (the
// child branch) replaces itself with the shell. The original process
// (the parent branch) switches the terminal to raw mode, forwards
// input and output, and exits with the shell's exit status.
//
// Usage:
//
//	ptyshell [flags] [--] [command [args...]]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ptyshell/lib/config"
	"github.com/bureau-foundation/ptyshell/lib/logging"
	"github.com/bureau-foundation/ptyshell/lib/metrics"
	"github.com/bureau-foundation/ptyshell/lib/process"
	"github.com/bureau-foundation/ptyshell/lib/ptyproc"
	"github.com/bureau-foundation/ptyshell/lib/recording"
	"github.com/bureau-foundation/ptyshell/lib/transcript"
	"github.com/bureau-foundation/ptyshell/lib/version"
	"github.com/bureau-foundation/ptyshell/shell"
)

func main() {
	if err := run(); err != nil {
		var status exitStatus
		if errors.As(err, &status) {
			os.Exit(int(status))
		}
		process.Fatal(err)
	}
}

// exitStatus carries the child's exit code out of run.
type exitStatus int

func (status exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(status)) }

type flags struct {
	configPath  string
	shell       string
	record      string
	compression string
	recordInput bool
	recipients  []string
	transcript  string
	metrics     string
	logLevel    string
	logFile     string
	version     bool
}

func run() error {
	var options flags
	flagSet := pflag.NewFlagSet("ptyshell", pflag.ContinueOnError)
	flagSet.StringVar(&options.configPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&options.shell, "shell", "", "program to run (default: $SHELL)")
	flagSet.StringVar(&options.record, "record", "", "record the session to this file (${SESSION_ID} is expanded)")
	flagSet.StringVar(&options.compression, "compression", "", "recording compression: none, lz4, zstd")
	flagSet.BoolVar(&options.recordInput, "record-input", false, "include keystrokes in the recording")
	flagSet.StringArrayVar(&options.recipients, "recipient", nil, "encrypt the recording to this age public key (repeatable)")
	flagSet.StringVar(&options.transcript, "transcript", "", "append a plain-text transcript to this file")
	flagSet.StringVar(&options.metrics, "metrics-listen", "", "serve Prometheus metrics on this host:port")
	flagSet.StringVar(&options.logLevel, "log-level", "", "debug, info, warn, or error")
	flagSet.StringVar(&options.logFile, "log-file", "", "write diagnostics to this file instead of stderr")
	flagSet.BoolVar(&options.version, "version", false, "print version information and exit")
	// Flags after the command belong to the command.
	flagSet.SetInterspersed(false)

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if options.version {
		version.Print("ptyshell")
		return nil
	}

	cfg, err := loadConfig(options, flagSet)
	if err != nil {
		return err
	}
	if command := flagSet.Args(); len(command) > 0 {
		cfg.Shell, cfg.Args = command[0], command[1:]
	}

	// The re-executed copy parsed the same flags; all it does is become
	// the shell.
	if ptyproc.InChildBranch() {
		return execChild(cfg)
	}

	sessionID := uuid.NewString()
	cfg.Expand(map[string]string{"SESSION_ID": sessionID})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	logger = logger.With("session_id", sessionID)

	return runParent(cfg, sessionID, logger)
}

func loadConfig(options flags, flagSet *pflag.FlagSet) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if options.configPath != "" {
		cfg, err = config.LoadFile(options.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flagSet.Changed("shell") {
		cfg.Shell = options.shell
	}
	if flagSet.Changed("record") {
		cfg.Recording.Path = options.record
	}
	if flagSet.Changed("compression") {
		cfg.Recording.Compression = options.compression
	}
	if flagSet.Changed("record-input") {
		cfg.Recording.RecordInput = options.recordInput
	}
	if flagSet.Changed("recipient") {
		cfg.Recording.Recipients = options.recipients
	}
	if flagSet.Changed("transcript") {
		cfg.Transcript.Path = options.transcript
	}
	if flagSet.Changed("metrics-listen") {
		cfg.Metrics.Listen = options.metrics
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = options.logLevel
	}
	if flagSet.Changed("log-file") {
		cfg.Log.File = options.logFile
	}
	return cfg, nil
}

func execChild(cfg *config.Config) error {
	child, err := ptyproc.Fork(ptyproc.ForkConfig{})
	if err != nil {
		return err
	}
	cfg.Expand(nil)
	session := shell.New(child, shell.Config{})
	return session.Exec(cfg.Shell, cfg.Args...)
}

func runParent(cfg *config.Config, sessionID string, logger *slog.Logger) error {
	var initialSize *shell.WindowSize
	if shell.IsTerminal(os.Stdin) {
		size, err := shell.QuerySize(os.Stdin)
		if err != nil {
			logger.Warn("reading terminal size", "error", err)
		} else {
			initialSize = &size
		}
	}

	child, err := ptyproc.Fork(ptyproc.ForkConfig{Size: initialSize})
	if err != nil {
		return fmt.Errorf("starting %s: %w", cfg.Shell, err)
	}
	defer child.Close()
	logger.Debug("child started", "pid", child.Pid(), "shell", cfg.Shell)

	observers, err := startObservers(cfg, sessionID, initialSize, logger)
	if err != nil {
		child.Signal(syscall.SIGHUP)
		child.Wait()
		return err
	}
	defer observers.close()

	signals := make(chan os.Signal, 4)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer signal.Stop(signals)
	go forwardSignals(signals, child)

	session := shell.New(child, shell.Config{Logger: logger})
	if shell.IsTerminal(os.Stdin) {
		err = session.Proxy(observers.handler)
	} else {
		err = session.ProxyRaw(observers.handler)
	}
	if err != nil {
		child.Signal(syscall.SIGHUP)
		child.Wait()
		return err
	}

	code := process.ExitCode(child.Wait())
	logger.Debug("child exited", "exit_code", code)
	observers.close()
	printStatus(cfg, sessionID, code)
	if code != 0 {
		return exitStatus(code)
	}
	return nil
}

// forwardSignals relays signals sent to the wrapper to the child. Send
// errors are ignored: the child may already have exited.
func forwardSignals(signals <-chan os.Signal, child *ptyproc.Child) {
	for received := range signals {
		_ = child.Signal(received)
	}
}

// observerSet owns the handlers attached to the session and the
// resources behind them.
type observerSet struct {
	handler shell.Handler
	closers []func()
	closed  bool
}

func startObservers(cfg *config.Config, sessionID string, size *shell.WindowSize, logger *slog.Logger) (*observerSet, error) {
	set := &observerSet{}
	var handlers []shell.Handler

	if cfg.Recording.Path != "" {
		compression, err := recording.ParseCompression(cfg.Recording.Compression)
		if err != nil {
			return nil, err
		}
		recipients, err := cfg.RecordingRecipients()
		if err != nil {
			return nil, err
		}
		recorder, err := recording.Create(cfg.Recording.Path, recording.Options{
			Compression: compression,
			Recipients:  recipients,
			RecordInput: cfg.Recording.RecordInput,
			Command:     append([]string{cfg.Shell}, cfg.Args...),
			InitialSize: size,
			SessionID:   sessionID,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, recorder)
		set.closers = append(set.closers, func() {
			if err := recorder.Close(); err != nil {
				logger.Error("closing recording", "path", cfg.Recording.Path, "error", err)
			}
		})
	}

	if cfg.Transcript.Path != "" {
		file, err := os.OpenFile(cfg.Transcript.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			set.close()
			return nil, fmt.Errorf("opening transcript: %w", err)
		}
		handlers = append(handlers, transcript.New(file, transcript.Options{
			Timestamps: cfg.Transcript.Timestamps,
			Logger:     logger,
		}))
		set.closers = append(set.closers, func() { file.Close() })
	}

	if cfg.Metrics.Listen != "" {
		registry := prometheus.NewRegistry()
		sessionMetrics := metrics.NewSession(registry)
		if size != nil {
			sessionMetrics.SetSize(*size)
		}
		listener, err := net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			set.close()
			return nil, fmt.Errorf("metrics listener: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(registry))
		server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "address", listener.Addr().String())
		handlers = append(handlers, sessionMetrics)
		set.closers = append(set.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
	}

	set.handler = shell.MultiHandler(handlers...)
	return set, nil
}

// close releases observer resources in reverse order. Safe to call
// more than once.
func (set *observerSet) close() {
	if set.closed {
		return
	}
	set.closed = true
	for index := len(set.closers) - 1; index >= 0; index-- {
		set.closers[index]()
	}
}

// printStatus reports where the session went, when stderr is a person.
func printStatus(cfg *config.Config, sessionID string, code int) {
	if !shell.IsTerminal(os.Stderr) {
		return
	}
	if cfg.Recording.Path == "" && cfg.Transcript.Path == "" && code == 0 {
		return
	}
	output := termenv.NewOutput(os.Stderr)
	message := fmt.Sprintf("ptyshell: session %s ended with status %d", sessionID, code)
	if cfg.Recording.Path != "" {
		message += ", recorded to " + cfg.Recording.Path
	}
	if cfg.Transcript.Path != "" {
		message += ", transcript in " + cfg.Transcript.Path
	}
	style := output.String(message).Faint()
	if code != 0 {
		style = style.Foreground(output.Color("1"))
	}
	fmt.Fprintln(os.Stderr, style.String())
}
