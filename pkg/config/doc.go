// Package config loads and validates the daemon configuration from a YAML
// file, with flag-friendly defaults for every optional field. The serial
// device has no default and is required.
package config
