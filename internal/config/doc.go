// Package config provides configuration loading and validation for the audio transcriber.
// It merges built-in defaults, an optional YAML file, a .env file and environment
// variables, and validates every section before the service starts.
package config
