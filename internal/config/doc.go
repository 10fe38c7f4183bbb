// Package config loads, normalizes, and validates slidecast configuration.
//
// Configuration is TOML, resolved from an explicit --config path, then
// ~/.config/slidecast/config.toml, then ./slidecast.toml. Defaults cover every
// key so slidecast runs without a config file against a local backend. Path
// fields are tilde-expanded and absolutized during normalization.
package config
