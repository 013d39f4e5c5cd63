package transcription

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
		isNil  bool
	}{
		{200, KindProvider, true},
		{204, KindProvider, true},
		{400, KindProvider, false},
		{401, KindCredential, false},
		{403, KindCredential, false},
		{404, KindProvider, false},
		{413, KindProvider, false},
		{429, KindProvider, false},
		{500, KindProvider, false},
		{503, KindProvider, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("HTTP %d", tt.status), func(t *testing.T) {
			e := ClassifyStatus("test", tt.status, "")
			if tt.isNil {
				if e != nil {
					t.Errorf("Expected nil for %d, got %v", tt.status, e)
				}
				return
			}
			if e == nil {
				t.Fatalf("Expected error for %d", tt.status)
			}
			if e.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, e.Kind)
			}
			if e.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, e.StatusCode)
			}
			if e.Message == "" {
				t.Error("Expected status text as default message")
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), KindNetwork},
		{"net error", timeoutError{}, KindNetwork},
		{"dial error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, KindNetwork},
		{"url error", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("eof")}, KindNetwork},
		{"other", errors.New("unexpected"), KindProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ClassifyTransport("test", tt.err)
			if e.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, e.Kind)
			}
			if !errors.Is(e, tt.err) {
				t.Error("Expected original error to be unwrappable")
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewError(KindLocalIO, "stage", errors.New("disk full")))
	if KindOf(wrapped) != KindLocalIO {
		t.Errorf("Expected local_io, got %s", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != KindProvider {
		t.Error("Expected unclassified errors to be provider errors")
	}

	joined := errors.Join(InputError("validate", "bad language"), errors.New("other"))
	if KindOf(joined) != KindInput {
		t.Errorf("Expected input, got %s", KindOf(joined))
	}
}

func TestKindString(t *testing.T) {
	expected := map[Kind]string{
		KindProvider:   "provider",
		KindCredential: "credential",
		KindNetwork:    "network",
		KindLocalIO:    "local_io",
		KindInput:      "input",
	}

	if len(Kinds()) != len(expected) {
		t.Fatalf("Expected %d kinds, got %d", len(expected), len(Kinds()))
	}
	for _, k := range Kinds() {
		if k.String() != expected[k] {
			t.Errorf("Expected %s, got %s", expected[k], k.String())
		}
	}
}

func TestErrorString(t *testing.T) {
	e := ClassifyStatus("openai.transcribe", 401, "Incorrect API key provided")
	msg := e.Error()
	for _, part := range []string{"credential", "openai.transcribe", "401", "Incorrect API key provided"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Expected %q in %q", part, msg)
		}
	}

	e = NewError(KindLocalIO, "stage", errors.New("disk full"))
	if !strings.Contains(e.Error(), "disk full") {
		t.Errorf("Expected wrapped error text, got %q", e.Error())
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"input", InputError("validate", "Selecione um arquivo de áudio."), "Selecione um arquivo de áudio."},
		{"missing key", &Error{Kind: KindCredential, Op: "validate"}, "Informe uma chave API"},
		{"rejected key", ClassifyStatus("call", 401, "bad key"), "chave API foi rejeitada"},
		{"network", ClassifyTransport("call", context.DeadlineExceeded), "não foi possível contactar"},
		{"local io", NewError(KindLocalIO, "stage", errors.New("disk full")), "preparar o arquivo"},
		{"provider", ClassifyStatus("call", 400, "Invalid file format."), "Invalid file format."},
		{"unclassified", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := UserMessage(tt.err)
			if !strings.Contains(msg, tt.contains) {
				t.Errorf("Expected %q in %q", tt.contains, msg)
			}
		})
	}
}
