package transcription

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// Kind classifies a transcription failure
type Kind int

const (
	// KindProvider is a failure reported by the provider, or one that fits no other kind.
	KindProvider Kind = iota
	// KindCredential means the provider rejected the credential, or none was given.
	KindCredential
	// KindNetwork means the provider could not be reached or did not answer in time.
	KindNetwork
	// KindLocalIO means the upload could not be staged on or read from local disk.
	KindLocalIO
	// KindInput means the request was rejected before anything was sent.
	KindInput
)

// String returns the kind name used in logs, metrics and the JSON API.
func (k Kind) String() string {
	switch k {
	case KindCredential:
		return "credential"
	case KindNetwork:
		return "network"
	case KindLocalIO:
		return "local_io"
	case KindInput:
		return "input"
	default:
		return "provider"
	}
}

// Kinds lists every kind, in declaration order.
func Kinds() []Kind {
	return []Kind{KindProvider, KindCredential, KindNetwork, KindLocalIO, KindInput}
}

// Error is a classified transcription failure
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int    // HTTP status from the provider, 0 when none was received
	Message    string // human readable detail, may be empty
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	detail := e.Message
	if detail == "" && e.Err != nil {
		detail = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("transcription %s: %s (HTTP %d): %s", e.Kind, e.Op, e.StatusCode, detail)
	}
	return fmt.Sprintf("transcription %s: %s: %s", e.Kind, e.Op, detail)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and the operation that failed.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// InputError reports a request rejected before staging.
func InputError(op, message string) *Error {
	return &Error{Kind: KindInput, Op: op, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain, or KindProvider.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProvider
}

// ClassifyStatus converts a non-2xx provider status into an *Error.
// It returns nil for 2xx codes.
func ClassifyStatus(op string, statusCode int, message string) *Error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	kind := KindProvider
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = KindCredential
	}

	if message == "" {
		message = http.StatusText(statusCode)
	}

	return &Error{
		Kind:       kind,
		Op:         op,
		StatusCode: statusCode,
		Message:    message,
	}
}

// ClassifyTransport classifies an error returned before any HTTP status was read.
// Connection, DNS and timeout failures are KindNetwork; anything else is KindProvider.
func ClassifyTransport(op string, err error) *Error {
	if isNetworkError(err) {
		return NewError(KindNetwork, op, err)
	}
	return NewError(KindProvider, op, err)
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// UserMessage renders err as the message shown in the error banner.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Ocorreu um erro durante a transcrição: " + err.Error()
	}

	switch e.Kind {
	case KindInput:
		return e.Message
	case KindCredential:
		if e.StatusCode == 0 {
			return "Informe uma chave API para transcrever o áudio."
		}
		return "Ocorreu um erro durante a transcrição: a chave API foi rejeitada pelo provedor. Verifique a chave informada."
	case KindNetwork:
		return "Ocorreu um erro durante a transcrição: não foi possível contactar o serviço de transcrição. Verifique a conexão e tente novamente."
	case KindLocalIO:
		return "Ocorreu um erro durante a transcrição: falha ao preparar o arquivo de áudio para envio."
	default:
		detail := e.Message
		if detail == "" && e.Err != nil {
			detail = e.Err.Error()
		}
		return "Ocorreu um erro durante a transcrição: o serviço de transcrição retornou um erro: " + detail
	}
}
