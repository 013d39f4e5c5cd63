package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/matheusjcandido/transcription/internal/audio"
	"github.com/matheusjcandido/transcription/internal/config"
	"github.com/matheusjcandido/transcription/internal/metrics"
	"github.com/matheusjcandido/transcription/internal/transcriber"
	"github.com/matheusjcandido/transcription/internal/transcription"
)

//go:embed templates/index.html
var templateFS embed.FS

const (
	serviceName     = "audio-transcriber"
	serviceVersion  = "1.0.0"
	pageTitle       = "Transcritor de Áudio"
	multipartMemory = 32 << 20
	fallbackName    = "transcricao.txt"
)

// HTTPServer serves the transcription form and the HTTP API
type HTTPServer struct {
	server  *http.Server
	router  *mux.Router
	logger  *slog.Logger
	config  *config.Config
	service *transcriber.Service
	metrics *metrics.Metrics
	page    *template.Template

	startTime time.Time
}

// pageData feeds templates/index.html
type pageData struct {
	Title            string
	EnvCredential    bool
	APIKey           string
	Accept           string
	Formats          string
	Languages        []string
	SelectedLanguage string
	RecommendedMaxMB int
	Error            string
	Result           *transcriber.Result
	ResultB64        string
}

type apiResult struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
	Filename  string `json:"filename"`
	Language  string `json:"language"`
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewHTTPServer creates the HTTP server
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, service *transcriber.Service, m *metrics.Metrics) (*HTTPServer, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		service:   service,
		metrics:   m,
		page:      page,
		startTime: time.Now(),
	}

	h.router = mux.NewRouter()
	h.setupRoutes(h.router)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      h.router,
		ReadTimeout:  appConfig.HTTP.GetReadTimeout(),
		WriteTimeout: appConfig.HTTP.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return h, nil
}

// setupRoutes configures HTTP routes
func (h *HTTPServer) setupRoutes(r *mux.Router) {
	// User interface
	r.HandleFunc("/", h.withMetrics("/", h.handleIndex)).Methods(http.MethodGet)
	r.HandleFunc("/transcribe", h.withMetrics("/transcribe", h.handleTranscribe)).Methods(http.MethodPost)
	r.HandleFunc("/download", h.withMetrics("/download", h.handleDownload)).Methods(http.MethodPost)

	// JSON API
	r.HandleFunc("/api/v1/transcriptions", h.withMetrics("/api/v1/transcriptions", h.handleAPITranscribe)).
		Methods(http.MethodPost)

	// Operations
	r.HandleFunc("/health", h.withMetrics("/health", h.handleHealth)).Methods(http.MethodGet)
	r.HandleFunc("/config", h.withMetrics("/config", h.handleConfig)).Methods(http.MethodGet)
	r.Handle("/metrics", h.metrics.Handler()).Methods(http.MethodGet)
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		h.metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode), duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) newPageData() pageData {
	envOnly := h.config.EnvCredentialOnly()

	data := pageData{
		Title:            pageTitle,
		EnvCredential:    envOnly,
		Accept:           acceptList(h.config.Upload.AllowedExtensions),
		Formats:          strings.ToUpper(strings.Join(h.config.Upload.AllowedExtensions, ", ")),
		Languages:        audio.SupportedLanguages(),
		SelectedLanguage: h.config.Transcription.DefaultLanguage,
		RecommendedMaxMB: h.config.Upload.RecommendedMaxMB,
	}
	if !envOnly {
		data.APIKey = h.config.Transcription.APIKey
	}
	return data
}

func acceptList(extensions []string) string {
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		out = append(out, "."+strings.TrimPrefix(strings.ToLower(ext), "."))
	}
	return strings.Join(out, ",")
}

// handleIndex renders the empty form
func (h *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, h.newPageData())
}

// handleTranscribe processes a form submission and renders the result or the error
func (h *HTTPServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	data := h.newPageData()

	upload, err := h.readUpload(w, r)
	language := h.language(r)
	if audio.IsSupportedLanguage(language) {
		data.SelectedLanguage = language
	}
	if err != nil {
		data.Error = transcription.UserMessage(err)
		h.render(w, statusForKind(transcription.KindOf(err)), data)
		return
	}

	result, err := h.service.Transcribe(r.Context(), transcriber.NewRequest(upload, language, h.credential(r)))
	if err != nil {
		data.Error = transcription.UserMessage(err)
		h.render(w, statusForKind(transcription.KindOf(err)), data)
		return
	}

	data.Result = result
	data.ResultB64 = base64.StdEncoding.EncodeToString([]byte(result.Text))
	h.render(w, http.StatusOK, data)
}

// handleDownload returns the transcript as a plain text attachment
func (h *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Upload.GetMaxBodyBytes())
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	text := r.PostFormValue("text")
	if encoded := r.PostFormValue("text_b64"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			http.Error(w, "Invalid text encoding", http.StatusBadRequest)
			return
		}
		text = string(decoded)
	}

	filename := downloadFilename(r.PostFormValue("filename"))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(text)))
	io.WriteString(w, text)
}

// downloadFilename reduces name to a safe base name ending in .txt
func downloadFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '"' {
			return -1
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." || name == "/" {
		return fallbackName
	}
	if !strings.HasSuffix(strings.ToLower(name), ".txt") {
		name += ".txt"
	}
	return name
}

// handleAPITranscribe is the JSON flavour of handleTranscribe
func (h *HTTPServer) handleAPITranscribe(w http.ResponseWriter, r *http.Request) {
	upload, err := h.readUpload(w, r)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}

	result, err := h.service.Transcribe(r.Context(), transcriber.NewRequest(upload, h.language(r), h.credential(r)))
	if err != nil {
		h.writeAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResult{
		RequestID: result.RequestID,
		Text:      result.Text,
		Filename:  result.Filename,
		Language:  result.Language,
	})
}

func (h *HTTPServer) writeAPIError(w http.ResponseWriter, err error) {
	kind := transcription.KindOf(err)
	writeJSON(w, statusForKind(kind), apiError{Error: apiErrorBody{
		Kind:    kind.String(),
		Message: transcription.UserMessage(err),
	}})
}

// readUpload parses the multipart body. A missing file yields an empty Upload,
// which the service rejects with a user-facing message.
func (h *HTTPServer) readUpload(w http.ResponseWriter, r *http.Request) (audio.Upload, error) {
	const op = "read_upload"

	r.Body = http.MaxBytesReader(w, r.Body, h.config.Upload.GetMaxBodyBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			return audio.Upload{}, transcription.InputError(op,
				fmt.Sprintf("O arquivo excede o limite de %dMB.", h.config.Upload.MaxBodyMB))
		}
		return audio.Upload{}, transcription.InputError(op, "Não foi possível ler o formulário enviado.")
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return audio.Upload{}, nil
	}
	if err != nil {
		return audio.Upload{}, transcription.NewError(transcription.KindLocalIO, op, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return audio.Upload{}, transcription.NewError(transcription.KindLocalIO, op, err)
	}

	return audio.Upload{Filename: header.Filename, Data: data}, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

func (h *HTTPServer) language(r *http.Request) string {
	if language := r.FormValue("language"); language != "" {
		return language
	}
	return h.config.Transcription.DefaultLanguage
}

// credential picks the key for this request. In production mode with an
// environment credential the submitted value is ignored.
func (h *HTTPServer) credential(r *http.Request) string {
	if h.config.EnvCredentialOnly() {
		return h.config.Transcription.APIKey
	}
	if key := r.FormValue("api_key"); key != "" {
		return key
	}
	return h.config.Transcription.APIKey
}

func statusForKind(kind transcription.Kind) int {
	switch kind {
	case transcription.KindInput:
		return http.StatusBadRequest
	case transcription.KindCredential:
		return http.StatusUnauthorized
	case transcription.KindLocalIO:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (h *HTTPServer) render(w http.ResponseWriter, status int, data pageData) {
	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		h.logger.Error("Failed to render page", slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	transcriptionInfo := map[string]interface{}{
		"status":   "running",
		"provider": h.service.ProviderName(),
	}
	if stats, ok := h.service.Stats(); ok {
		transcriptionInfo["total_requests"] = stats.TotalRequests
		transcriptionInfo["success_rate"] = stats.SuccessRate
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
		"components": map[string]interface{}{
			"transcription": transcriptionInfo,
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	// The API key is never exposed, only whether one is configured
	sanitizedConfig := map[string]interface{}{
		"http": map[string]interface{}{
			"address":       h.config.HTTP.Address,
			"port":          h.config.HTTP.Port,
			"read_timeout":  h.config.HTTP.ReadTimeout,
			"write_timeout": h.config.HTTP.WriteTimeout,
		},
		"upload": map[string]interface{}{
			"allowed_extensions": h.config.Upload.AllowedExtensions,
			"recommended_max_mb": h.config.Upload.RecommendedMaxMB,
			"enforce_max_size":   h.config.Upload.EnforceMaxSize,
			"max_body_mb":        h.config.Upload.MaxBodyMB,
		},
		"transcription": map[string]interface{}{
			"provider":           h.config.Transcription.Provider,
			"base_url":           h.config.Transcription.BaseURL,
			"model":              h.config.Transcription.Model,
			"timeout":            h.config.Transcription.Timeout,
			"default_language":   h.config.Transcription.DefaultLanguage,
			"api_key_configured": h.config.Transcription.APIKey != "",
		},
		"deployment": map[string]interface{}{
			"mode":                h.config.Deployment.Mode,
			"env_credential_only": h.config.EnvCredentialOnly(),
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}
