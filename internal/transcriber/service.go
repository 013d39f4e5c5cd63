package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matheusjcandido/transcription/internal/audio"
	"github.com/matheusjcandido/transcription/internal/metrics"
	"github.com/matheusjcandido/transcription/internal/transcription"
)

// Config contains request handling parameters
type Config struct {
	TempDir             string
	AllowedExtensions   []string
	Model               string
	RecommendedMaxBytes int64
	EnforceMaxSize      bool
}

// Request is the request-scoped input of one transcription
type Request struct {
	ID         string
	Upload     audio.Upload
	Language   string
	Credential string
}

// NewRequest creates a request with a fresh ID
func NewRequest(upload audio.Upload, language, credential string) *Request {
	return &Request{
		ID:         uuid.NewString(),
		Upload:     upload,
		Language:   language,
		Credential: credential,
	}
}

// Result is a completed transcription
type Result struct {
	RequestID string
	Text      string // provider text, unmodified
	Filename  string // suggested download name
	Language  string
	Elapsed   time.Duration
}

// Service handles transcription requests
type Service struct {
	config   Config
	provider transcription.Provider
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService creates a transcription service
func NewService(config Config, provider transcription.Provider, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	if config.TempDir == "" {
		config.TempDir = "."
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = audio.DefaultExtensions
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		config:   config,
		provider: provider,
		metrics:  m,
		logger:   logger,
	}, nil
}

// ProviderName returns the name of the configured provider
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Transcribe runs one request end to end. Errors carry a transcription.Kind.
func (s *Service) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	startTime := time.Now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	logger := s.logger.With(
		slog.String("request_id", req.ID),
		slog.String("filename", req.Upload.Filename),
		slog.String("language", req.Language),
		slog.Int64("size_bytes", req.Upload.Size()),
		slog.String("provider", s.provider.Name()),
	)

	s.metrics.RecordTranscriptionRequest(req.Upload.Size())

	if err := s.Validate(req); err != nil {
		return nil, s.fail(logger, err, startTime)
	}

	s.probe(logger, req.Upload)

	var resp *transcription.Response
	err := audio.WithStagedFile(s.config.TempDir, req.Upload, func(path string) error {
		logger.Debug("Audio staged", slog.String("path", path))

		r, err := s.provider.Transcribe(ctx, &transcription.Request{
			AudioPath: path,
			Language:  req.Language,
			Model:     s.config.Model,
			APIKey:    req.Credential,
		})
		if err != nil {
			var classified *transcription.Error
			if !errors.As(err, &classified) {
				err = transcription.NewError(transcription.KindProvider, "transcribe", err)
			}
			return err
		}
		resp = r
		return nil
	})

	if err != nil {
		var cleanupErr *audio.CleanupError
		if errors.As(err, &cleanupErr) {
			s.metrics.RecordCleanupFailure()
			logger.Error("Failed to remove staged audio",
				slog.String("path", cleanupErr.Path),
				slog.String("error", cleanupErr.Err.Error()),
			)
		}

		// A cleanup failure after a successful call does not discard the transcript.
		// Provider errors are already classified, so anything else failed staging.
		if resp == nil {
			var classified *transcription.Error
			if !errors.As(err, &classified) {
				err = transcription.NewError(transcription.KindLocalIO, "stage", err)
			}
			return nil, s.fail(logger, err, startTime)
		}
	}

	elapsed := time.Since(startTime)
	s.metrics.RecordTranscriptionSuccess(elapsed.Seconds())
	logger.Info("Transcription completed",
		slog.Int("text_length", len(resp.Text)),
		slog.Duration("elapsed", elapsed),
	)

	return &Result{
		RequestID: req.ID,
		Text:      resp.Text,
		Filename:  req.Upload.TranscriptFilename(),
		Language:  req.Language,
		Elapsed:   elapsed,
	}, nil
}

// Validate checks the request before anything is written to disk
func (s *Service) Validate(req *Request) error {
	const op = "validate"

	if req.Upload.Filename == "" {
		return transcription.InputError(op, "Selecione um arquivo de áudio.")
	}

	if len(req.Upload.Data) == 0 {
		return transcription.InputError(op, "O arquivo enviado está vazio.")
	}

	if ext := req.Upload.Ext(); !audio.ExtensionAllowed(ext, s.config.AllowedExtensions) {
		return transcription.InputError(op, fmt.Sprintf("Formato não suportado: '%s'. Formatos aceitos: %s.",
			ext, strings.ToUpper(strings.Join(s.config.AllowedExtensions, ", "))))
	}

	if !audio.IsSupportedLanguage(req.Language) {
		return transcription.InputError(op, fmt.Sprintf("Idioma não suportado: '%s'.", req.Language))
	}

	if req.Credential == "" {
		return &transcription.Error{Kind: transcription.KindCredential, Op: op, Message: "missing API key"}
	}

	if limit := s.config.RecommendedMaxBytes; limit > 0 && req.Upload.Size() > limit {
		s.metrics.RecordOversizedUpload()
		if s.config.EnforceMaxSize {
			return transcription.InputError(op, fmt.Sprintf("O arquivo excede o tamanho máximo de %dMB.", limit>>20))
		}
		s.logger.Warn("Upload above recommended size",
			slog.String("request_id", req.ID),
			slog.Int64("size_bytes", req.Upload.Size()),
			slog.Int64("recommended_bytes", limit),
		)
	}

	return nil
}

// probe logs the WAV layout of .wav uploads. It never rejects a request.
func (s *Service) probe(logger *slog.Logger, upload audio.Upload) {
	if !strings.EqualFold(upload.Ext(), ".wav") {
		return
	}

	info, err := audio.ProbeWAV(upload.Data)
	if err != nil {
		logger.Debug("WAV probe failed", slog.String("error", err.Error()))
		return
	}

	logger.Info("WAV upload",
		slog.Uint64("sample_rate", uint64(info.SampleRate)),
		slog.Uint64("channels", uint64(info.Channels)),
		slog.Uint64("bits_per_sample", uint64(info.BitsPerSample)),
		slog.Duration("audio_duration", info.Duration),
	)
}

func (s *Service) fail(logger *slog.Logger, err error, startTime time.Time) error {
	kind := transcription.KindOf(err)
	s.metrics.RecordTranscriptionFailure(kind.String(), time.Since(startTime).Seconds())
	logger.Warn("Transcription failed",
		slog.String("error_kind", kind.String()),
		slog.String("error", err.Error()),
	)
	return err
}

// Stats returns provider request statistics when the provider keeps them
func (s *Service) Stats() (transcription.ClientStats, bool) {
	sp, ok := s.provider.(interface{ GetStats() transcription.ClientStats })
	if !ok {
		return transcription.ClientStats{}, false
	}
	return sp.GetStats(), true
}
