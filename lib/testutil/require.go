// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// Fataler is the subset of testing.TB the helpers need.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from channel, failing the test
// if none arrives within timeout or the channel is closed first.
//
//	err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for ProxyRaw")
func RequireReceive[T any](t Fataler, channel <-chan T, timeout time.Duration, context ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-channel:
		if !ok {
			t.Fatalf("channel closed before a value arrived: %s", describe(context))
		}
		return value
	case <-timer.C:
		t.Fatalf("nothing received after %v: %s", timeout, describe(context))
	}
	panic("unreachable")
}

// RequireClosed waits for channel to be closed (or to deliver a value)
// within timeout. Use it for done and readiness channels.
func RequireClosed(t Fataler, channel <-chan struct{}, timeout time.Duration, context ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-channel:
	case <-timer.C:
		t.Fatalf("channel still open after %v: %s", timeout, describe(context))
	}
}

// describe renders the optional context arguments: nothing, a single
// value, or a format string followed by its arguments.
func describe(context []any) string {
	switch {
	case len(context) == 0:
		return "(no context)"
	case len(context) == 1:
		return fmt.Sprint(context[0])
	}
	if format, ok := context[0].(string); ok {
		return fmt.Sprintf(format, context[1:]...)
	}
	return fmt.Sprint(context...)
}
