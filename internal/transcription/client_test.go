package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// capturedRequest is what the fake provider saw
type capturedRequest struct {
	Path          string
	Authorization string
	Filename      string
	Audio         []byte
	Fields        map[string]string
}

// fakeProvider is an OpenAI-compatible transcription endpoint
type fakeProvider struct {
	mu       sync.Mutex
	requests []capturedRequest

	status int
	body   string
	delay  time.Duration
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "bad multipart: "+err.Error(), http.StatusBadRequest)
		return
	}

	captured := capturedRequest{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Fields:        map[string]string{},
	}
	for key, values := range r.MultipartForm.Value {
		captured.Fields[key] = values[0]
	}
	if file, header, err := r.FormFile("file"); err == nil {
		captured.Filename = header.Filename
		captured.Audio, _ = io.ReadAll(file)
		file.Close()
	}

	f.mu.Lock()
	f.requests = append(f.requests, captured)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
	}
	io.WriteString(w, f.body)
}

func (f *fakeProvider) captured(t *testing.T) []capturedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func textBody(text string) string {
	data, _ := json.Marshal(map[string]any{"text": text, "language": "portuguese", "duration": 1.5})
	return string(data)
}

func writeAudio(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write audio: %v", err)
	}
	return path
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty base URL")
	}

	client, err := NewClient(Config{BaseURL: "https://api.example.com/v1/"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Endpoint() != "https://api.example.com/v1/audio/transcriptions" {
		t.Errorf("Unexpected endpoint %s", client.Endpoint())
	}

	client, _ = NewClient(Config{BaseURL: "http://localhost:9000/v1/audio/transcriptions"})
	if client.Endpoint() != "http://localhost:9000/v1/audio/transcriptions" {
		t.Errorf("Expected full endpoint to be kept, got %s", client.Endpoint())
	}
	if client.Name() != ProviderHTTP {
		t.Errorf("Expected name %s, got %s", ProviderHTTP, client.Name())
	}
}

func TestClientTranscribe(t *testing.T) {
	fake := &fakeProvider{body: textBody("  Olá, mundo!\n")}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	audio := []byte("ID3\x03\x00binary\x00payload\xff")
	path := writeAudio(t, "temp_audio_file-1.mp3", audio)

	resp, err := client.Transcribe(context.Background(), &Request{
		AudioPath: path,
		Language:  "pt",
		APIKey:    "sk-test",
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if resp.Text != "  Olá, mundo!\n" {
		t.Errorf("Expected text verbatim, got %q", resp.Text)
	}

	requests := fake.captured(t)
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(requests))
	}
	req := requests[0]
	if req.Path != "/v1/audio/transcriptions" {
		t.Errorf("Unexpected path %s", req.Path)
	}
	if req.Authorization != "Bearer sk-test" {
		t.Errorf("Unexpected authorization %q", req.Authorization)
	}
	if !bytes.Equal(req.Audio, audio) {
		t.Error("Uploaded audio differs from staged file")
	}
	if req.Filename != "temp_audio_file-1.mp3" {
		t.Errorf("Unexpected filename %s", req.Filename)
	}
	if req.Fields["language"] != "pt" || req.Fields["model"] != "whisper-1" || req.Fields["response_format"] != "json" {
		t.Errorf("Unexpected fields %v", req.Fields)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 || stats.SuccessRate != 100 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestClientTranscribeErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{
			name:    "rejected credential",
			status:  http.StatusUnauthorized,
			body:    `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`,
			kind:    KindCredential,
			message: "Incorrect API key provided",
		},
		{
			name:    "unsupported content",
			status:  http.StatusBadRequest,
			body:    `{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`,
			kind:    KindProvider,
			message: "Invalid file format.",
		},
		{
			name:    "server error with plain body",
			status:  http.StatusBadGateway,
			body:    "upstream unavailable",
			kind:    KindProvider,
			message: "upstream unavailable",
		},
		{
			name:   "malformed success body",
			status: http.StatusOK,
			body:   "not json",
			kind:   KindProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeProvider{status: tt.status, body: tt.body}
			server := httptest.NewServer(fake)
			defer server.Close()

			client, _ := NewClient(Config{BaseURL: server.URL})
			_, err := client.Transcribe(context.Background(), &Request{
				AudioPath: writeAudio(t, "a.wav", []byte("RIFF")),
				Language:  "en",
				APIKey:    "sk-bad",
			})
			if err == nil {
				t.Fatal("Expected error")
			}

			if KindOf(err) != tt.kind {
				t.Errorf("Expected kind %s, got %s (%v)", tt.kind, KindOf(err), err)
			}
			if tt.message != "" && !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected %q in %q", tt.message, err.Error())
			}

			// No retries
			if n := len(fake.captured(t)); n != 1 {
				t.Errorf("Expected exactly 1 request, got %d", n)
			}
			if stats := client.GetStats(); stats.FailedRequests != 1 {
				t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
			}
		})
	}
}

func TestClientMissingKey(t *testing.T) {
	client, _ := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Transcribe(context.Background(), &Request{AudioPath: "unused", Language: "pt"})
	if KindOf(err) != KindCredential {
		t.Errorf("Expected credential error, got %v", err)
	}
}

func TestClientMissingFile(t *testing.T) {
	client, _ := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := client.Transcribe(context.Background(), &Request{
		AudioPath: filepath.Join(t.TempDir(), "gone.mp3"),
		Language:  "pt",
		APIKey:    "sk-test",
	})
	if KindOf(err) != KindLocalIO {
		t.Errorf("Expected local_io error, got %v", err)
	}
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, _ := NewClient(Config{BaseURL: url})
	_, err := client.Transcribe(context.Background(), &Request{
		AudioPath: writeAudio(t, "a.ogg", []byte("OggS")),
		Language:  "pt",
		APIKey:    "sk-test",
	})
	if KindOf(err) != KindNetwork {
		t.Errorf("Expected network error, got %v", err)
	}
}

func TestClientTimeout(t *testing.T) {
	fake := &fakeProvider{body: textBody("late"), delay: 200 * time.Millisecond}
	server := httptest.NewServer(fake)
	defer server.Close()

	client, _ := NewClient(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	_, err := client.Transcribe(context.Background(), &Request{
		AudioPath: writeAudio(t, "a.m4a", []byte("ftyp")),
		Language:  "pt",
		APIKey:    "sk-test",
	})
	if KindOf(err) != KindNetwork {
		t.Errorf("Expected network error on timeout, got %v", err)
	}
}
