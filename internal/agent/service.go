package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"
)

// Unavailable is the answerer used when no backend is configured.
type Unavailable struct{}

// Answer always fails with ErrUnavailable.
func (Unavailable) Answer(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}

// Service fronts an Answerer with a deadline, a context size bound and logging.
type Service struct {
	answerer    Answerer
	timeout     time.Duration
	maxMaterial int
	closer      func()
}

// NewServiceWithAnswerer wraps an existing answerer.
func NewServiceWithAnswerer(answerer Answerer, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxMaterial <= 0 {
		cfg.MaxMaterial = def.MaxMaterial
	}
	if answerer == nil {
		answerer = Unavailable{}
	}
	return &Service{answerer: answerer, timeout: cfg.RequestTimeout, maxMaterial: cfg.MaxMaterial}
}

// NewService picks a backend: the gRPC service when an address is set,
// otherwise Gemini when a key is set, otherwise Unavailable. A backend that
// fails to start degrades to Unavailable instead of failing startup.
func NewService(ctx context.Context, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Address != "" {
		client, err := NewGrpcClient(ctx, GrpcClientConfig{Address: cfg.Address, RequestTimeout: cfg.RequestTimeout}, logger)
		if err == nil {
			svc := NewServiceWithAnswerer(client, cfg)
			svc.closer = client.Close
			return svc
		}
		logger.Warn("Answer service unreachable, trying Gemini", "address", cfg.Address, "error", err)
	}

	gemini, err := NewGeminiClient(cfg, logger)
	if err == nil {
		logger.Info("Using Gemini for lesson questions", "model", gemini.model)
		return NewServiceWithAnswerer(gemini, cfg)
	}

	logger.Warn("No answering backend configured, lesson questions are disabled")
	return NewServiceWithAnswerer(Unavailable{}, cfg)
}

// Available reports whether a real backend is wired.
func (s *Service) Available() bool {
	_, off := s.answerer.(Unavailable)
	return !off
}

// Answer forwards the question with the material truncated to the size bound.
func (s *Service) Answer(ctx context.Context, question, material string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	material = truncate(material, s.maxMaterial)
	start := time.Now()
	answer, err := s.answerer.Answer(ctx, question, material)
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			slog.Warn("Lesson question failed", "error", err, "duration", time.Since(start))
		}
		return "", err
	}
	slog.Debug("Lesson question answered", "duration", time.Since(start), "answer_len", len(answer))
	return answer, nil
}

// Close releases resources.
func (s *Service) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for !utf8.ValidString(s) && len(s) > 0 {
		s = s[:len(s)-1]
	}
	return s
}
