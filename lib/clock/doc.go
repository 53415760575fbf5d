// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the two time operations ptyshell needs, the
// current time and a one-shot timer, so recordings can be timestamped
// and replayed deterministically in tests.
//
// Production code takes a [Clock] and is given [Real]. Tests pass
// [Fake], whose time moves only when Advance is called. [FakeClock.Waiters]
// lets a test wait until the code under test has armed a timer before
// advancing past it.
package clock
