// Package config handles configuration loading, parsing, and validation
// from defaults, an optional YAML file, MAILTRIAGE_ environment variables and
// command line flags. It provides type-safe access to the settings of every
// component while keeping configuration details separate from business logic.
package config
