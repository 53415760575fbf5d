// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time advances only through Advance. It is
// safe for concurrent use.
type FakeClock struct {
	mutex   sync.Mutex
	current time.Time
	timers  []fakeTimer
	armed   *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	channel  chan time.Time
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{current: initial}
	clock.armed = sync.NewCond(&clock.mutex)
	return clock
}

// Now returns the fake time.
func (clock *FakeClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.current
}

// After arms a timer that fires when the clock reaches now+d.
func (clock *FakeClock) After(d time.Duration) <-chan time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- clock.current
		return channel
	}
	clock.timers = append(clock.timers, fakeTimer{deadline: clock.current.Add(d), channel: channel})
	clock.armed.Broadcast()
	return channel
}

// Advance moves the clock forward by d and fires every timer whose
// deadline is now reached.
func (clock *FakeClock) Advance(d time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()

	clock.current = clock.current.Add(d)
	remaining := clock.timers[:0]
	for _, timer := range clock.timers {
		if timer.deadline.After(clock.current) {
			remaining = append(remaining, timer)
			continue
		}
		timer.channel <- clock.current
	}
	clock.timers = remaining
}

// Waiters blocks until at least count timers are armed and not yet
// fired, then returns the number armed.
func (clock *FakeClock) Waiters(count int) int {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	for len(clock.timers) < count {
		clock.armed.Wait()
	}
	return len(clock.timers)
}
