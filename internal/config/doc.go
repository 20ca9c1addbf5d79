// Package config loads and validates the coven-bot configuration.
//
// Configuration lives in a single YAML file. ${VAR} references are expanded
// from the environment before parsing, duration fields are parsed from Go
// duration strings ("30s", "2m"), defaults are applied for absent fields,
// and every recognized numeric range is enforced by Validate.
package config
