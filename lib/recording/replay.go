// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bureau-foundation/ptyshell/lib/clock"
	"github.com/bureau-foundation/ptyshell/shell"
)

// ReplayOptions controls playback timing.
type ReplayOptions struct {
	// Speed divides every delay. Zero means 1 (original timing).
	Speed float64

	// MaxIdle caps any single delay before scaling. Zero leaves
	// delays uncapped, so a recording where the user walked away for
	// an hour replays that hour.
	MaxIdle time.Duration

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Resize, if set, is called for each recorded resize.
	Resize func(shell.WindowSize)
}

// Replay writes the recording's output events to output, sleeping
// between them to reproduce the original timing. Input events are
// skipped. It returns nil at the end of a verified recording.
func Replay(ctx context.Context, reader *Reader, output io.Writer, options ReplayOptions) error {
	if options.Speed < 0 {
		return fmt.Errorf("replay speed %v is negative", options.Speed)
	}
	if options.Speed == 0 {
		options.Speed = 1
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	var previous time.Duration
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if event.Kind != KindOutput && event.Kind != KindResize {
			continue
		}

		delay := event.Offset - previous
		previous = event.Offset
		if options.MaxIdle > 0 && delay > options.MaxIdle {
			delay = options.MaxIdle
		}
		delay = time.Duration(float64(delay) / options.Speed)
		if delay > 0 {
			select {
			case <-options.Clock.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		switch event.Kind {
		case KindOutput:
			if _, err := output.Write(event.Data); err != nil {
				return fmt.Errorf("writing replayed output: %w", err)
			}
		case KindResize:
			if options.Resize != nil && event.Size != nil {
				options.Resize(event.Size.WindowSize())
			}
		}
	}
}
