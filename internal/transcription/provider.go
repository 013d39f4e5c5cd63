package transcription

import "context"

// Provider transcribes a staged audio file
type Provider interface {
	// Name identifies the provider in logs and metrics
	Name() string

	// Transcribe submits the audio at req.AudioPath and returns the text.
	// Errors are always *Error.
	Transcribe(ctx context.Context, req *Request) (*Response, error)
}

// Request contains the parameters of a single transcription call
type Request struct {
	AudioPath string
	Language  string
	Model     string
	APIKey    string
}

// Response represents the provider's answer
type Response struct {
	Text     string
	Language string
	Duration float64
}
