/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version holds build information.
package version

// Version is the current version of the bridge.
// This is set at build time via ldflags:
//
//	-X github.com/friendsincode/radiofrance_bridge/internal/version.Version=X.Y.Z
var Version = "0.4.0"

// Commit is the git revision, set at build time.
var Commit = "unknown"
