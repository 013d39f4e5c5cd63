// Package transcriber implements the transcription request flow.
// A request carries its own upload, language and credential; the service validates
// it, stages the audio in a temporary file that is removed on every exit path,
// calls the provider once and returns either the verbatim text or a classified error.
package transcriber
