// Command mockprovider serves a fake OpenAI-compatible transcription endpoint
// for local development.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// mockProvider answers every valid request with a canned transcript
type mockProvider struct {
	logger *slog.Logger
	apiKey string // empty accepts any key
	text   string
	delay  time.Duration
}

func (m *mockProvider) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/audio/transcriptions", m.handleTranscribe).Methods(http.MethodPost)
	return r
}

func (m *mockProvider) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if key == "" || (m.apiKey != "" && key != m.apiKey) {
		writeError(w, http.StatusUnauthorized, "invalid_request_error", "Incorrect API key provided")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "Error parsing form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "Missing audio file")
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "Error reading audio file")
		return
	}

	language := r.FormValue("language")
	m.logger.Info("Transcription request received",
		slog.String("filename", header.Filename),
		slog.Int64("size_bytes", size),
		slog.String("model", r.FormValue("model")),
		slog.String("language", language),
		slog.String("response_format", r.FormValue("response_format")),
	)

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	text := m.text
	if text == "" {
		text = fmt.Sprintf("Transcrição simulada de %s (%d bytes).", header.Filename, size)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transcriptionResponse{Text: text, Language: language})
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Message: message, Type: errType}})
}

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	apiKey := flag.String("key", "", "Accepted API key, empty accepts any")
	text := flag.String("text", "", "Fixed transcript to return")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	m := &mockProvider{logger: logger, apiKey: *apiKey, text: *text, delay: *delay}

	logger.Info("Mock transcription provider starting",
		slog.String("address", *addr),
		slog.String("base_url", "http://localhost"+*addr+"/v1"),
	)

	if err := http.ListenAndServe(*addr, m.routes()); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
