// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every field has a default, so the bot can also run with no file at all and
// only command-line overrides (see cmd/dannicraft).
package config
