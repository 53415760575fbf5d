// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the ptyshell host configuration.
//
// Configuration comes from at most one file, named by the --config flag
// (via [LoadFile]) or the PTYSHELL_CONFIG environment variable (via
// [Load]). Unlike a daemon, an interactive shell wrapper must work with
// no configuration at all, so when neither is set [Load] returns
// [Default]. There is no automatic discovery under ~/.config.
//
// Files ending in .json or .jsonc are JSON with comments and trailing
// commas allowed; anything else is YAML.
//
// Path fields support ${VAR} and ${VAR:-default} expansion through
// [Config.Expand], which the host calls once the session ID is known
// so that recording paths can include ${SESSION_ID}. Command-line flags
// override file values after loading.
package config
