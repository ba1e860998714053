// Package config loads, validates, and provides access to clipdigest
// configuration. Configuration lives in a TOML file with credential overrides
// taken from the environment.
package config
