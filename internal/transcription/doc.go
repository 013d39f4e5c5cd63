// Package transcription talks to speech-to-text providers.
// It defines the Provider interface, an OpenAI provider built on the go-openai SDK,
// an HTTP client for OpenAI-compatible multipart endpoints, and the closed error
// taxonomy used to report failures to the user.
package transcription
