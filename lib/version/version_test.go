// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestInfoIncludesVersionAndCommit(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, Version+" (") {
		t.Errorf("Info: got %q, want it to start with %q", info, Version+" (")
	}
	if !strings.Contains(info, Commit()) {
		t.Errorf("Info: got %q, want it to contain commit %q", info, Commit())
	}
}

func TestInjectedCommitWins(t *testing.T) {
	saved := GitCommit
	defer func() { GitCommit = saved }()
	GitCommit = "abc1234"
	if got := Commit(); got != "abc1234" {
		t.Errorf("Commit: got %q, want %q", got, "abc1234")
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	if full := Full(); !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full: got %q, want the platform", full)
	}
}
