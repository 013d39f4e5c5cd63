// Package server implements the HTTP surface of the transcriber.
// It serves the upload form, the transcribe and download actions, a JSON API,
// and health, configuration and Prometheus endpoints.
package server
