// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes session activity as Prometheus metrics. A
// [Session] is a shell.Handler; register it on a caller-owned registry
// and serve that registry with [HTTPHandler].
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/ptyshell/shell"
)

// Session counts the bytes and resizes of a proxied session. All
// metrics are marked active on construction and inactive on shutdown.
type Session struct {
	InputBytes  prometheus.Counter
	OutputBytes prometheus.Counter
	Resizes     prometheus.Counter
	Completed   prometheus.Counter
	Active      prometheus.Gauge
	Columns     prometheus.Gauge
	Rows        prometheus.Gauge
}

// NewSession registers the session metrics on registerer. It panics if
// they are already registered there, like promauto.
func NewSession(registerer prometheus.Registerer) *Session {
	factory := promauto.With(registerer)
	session := &Session{
		InputBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "ptyshell_input_bytes_total",
			Help: "Bytes forwarded from the terminal to the child.",
		}),
		OutputBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "ptyshell_output_bytes_total",
			Help: "Bytes forwarded from the child to the terminal.",
		}),
		Resizes: factory.NewCounter(prometheus.CounterOpts{
			Name: "ptyshell_resizes_total",
			Help: "Window size changes applied to the child's PTY.",
		}),
		Completed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ptyshell_sessions_completed_total",
			Help: "Sessions whose output stream ended.",
		}),
		Active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ptyshell_session_active",
			Help: "1 while a session is being proxied.",
		}),
		Columns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ptyshell_window_columns",
			Help: "Columns of the most recent window size.",
		}),
		Rows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ptyshell_window_rows",
			Help: "Rows of the most recent window size.",
		}),
	}
	session.Active.Set(1)
	return session
}

// SetSize records an initial window size without counting a resize.
func (session *Session) SetSize(size shell.WindowSize) {
	session.Columns.Set(float64(size.Columns))
	session.Rows.Set(float64(size.Rows))
}

func (session *Session) OnInput(data []byte) {
	session.InputBytes.Add(float64(len(data)))
}

func (session *Session) OnOutput(data []byte) {
	session.OutputBytes.Add(float64(len(data)))
}

func (session *Session) OnResize(size shell.WindowSize) {
	session.Resizes.Inc()
	session.SetSize(size)
}

func (session *Session) OnShutdown() {
	session.Completed.Inc()
	session.Active.Set(0)
}

// HTTPHandler serves gatherer in the Prometheus exposition format.
func HTTPHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
