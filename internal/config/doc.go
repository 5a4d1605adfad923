// Package config loads the daemon's HCL configuration file into a Config.
//
// # Why This Package Exists
//
// Every setting has a default, so a missing file or block is fine. Load
// fills the defaults, overlays what the file sets, and validates the
// result. Expressions can read the environment with env("NAME") or
// env("NAME", "fallback"), which keeps secrets such as auth headers out of
// the file itself.
//
// Durations are written as Go duration strings ("100ms", "30s"). The sync
// instant accepts epoch milliseconds or an RFC 3339 timestamp.
//
// Watch follows the file through fsnotify and hands every successfully
// reloaded Config to a callback.
package config
