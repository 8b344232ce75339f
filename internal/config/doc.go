// Package config loads and validates ClipForge configuration.
//
// Configuration lives in a TOML file resolved from an explicit path, then
// ~/.config/clipforge/config.toml, then ./clipforge.toml. Defaults cover a
// single-machine install; Load normalizes paths (tilde expansion) and
// validates the result before returning it.
package config
