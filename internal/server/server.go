// Package server is the HTTP boundary: it turns multipart form posts into
// pipeline calls and pipeline results into downloads, pages or JSON.
package server

import (
	"embed"
	"html/template"
	"net/http"
	"runtime"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/toricodesthings/doc-conversion-service/internal/config"
	"github.com/toricodesthings/doc-conversion-service/internal/pipeline"
	"github.com/toricodesthings/doc-conversion-service/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

type Server struct {
	cfg      config.Config
	proc     *pipeline.Processor
	log      zerolog.Logger
	pages    *template.Template
	flash    flashCodec
	metrics  *serverMetrics
	requests *semaphore.Weighted
	limiters *limiterSet
}

func New(cfg config.Config, proc *pipeline.Processor, log zerolog.Logger) *Server {
	maxReq := cfg.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 15
	}
	return &Server{
		cfg:      cfg,
		proc:     proc,
		log:      log,
		pages:    template.Must(template.ParseFS(templateFS, "templates/*.html")),
		flash:    flashCodec{key: []byte(cfg.SecretKey), secure: cfg.SecureCookies},
		metrics:  &serverMetrics{},
		requests: semaphore.NewWeighted(maxReq),
		limiters: newLimiterSet(cfg.RateLimitEvery, cfg.RateLimitBurst),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(s.withLogging)
	r.Use(s.withRecovery)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/download-txt/{filename}", s.handleDownloadText)

	r.Group(func(r chi.Router) {
		r.Use(s.withRateLimit)
		r.Use(s.withConcurrencyLimit)

		r.Post("/convert/pdf-to-jpg", s.handlePDFToJPG)
		r.Post("/convert/jpg-to-pdf", s.handleJPGToPDF)
		r.Post("/image-to-text", s.handleImageToText)
	})

	return r
}

// Stats is a snapshot of the request and runtime counters.
func (s *Server) Stats() types.MetricsResponse {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	snap := s.metrics.get()
	snap.Goroutines = runtime.NumGoroutine()
	snap.MemAllocMB = m.Alloc / (1 << 20)
	snap.MemSysMB = m.Sys / (1 << 20)
	return snap
}

// ResetLimiters forgets every per-IP rate limiter.
func (s *Server) ResetLimiters() {
	s.limiters.reset()
}

type serverMetrics struct {
	mu            sync.RWMutex
	totalRequests int64
	activeReqs    int64
	conversions   int64
	ocrRuns       int64
	failures      int64
}

func (m *serverMetrics) incActive() {
	m.mu.Lock()
	m.activeReqs++
	m.totalRequests++
	m.mu.Unlock()
}

func (m *serverMetrics) decActive() {
	m.mu.Lock()
	m.activeReqs--
	m.mu.Unlock()
}

func (m *serverMetrics) incConversions() {
	m.mu.Lock()
	m.conversions++
	m.mu.Unlock()
}

func (m *serverMetrics) incOCR() {
	m.mu.Lock()
	m.ocrRuns++
	m.mu.Unlock()
}

func (m *serverMetrics) incFailures() {
	m.mu.Lock()
	m.failures++
	m.mu.Unlock()
}

func (m *serverMetrics) get() types.MetricsResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return types.MetricsResponse{
		ActiveRequests: m.activeReqs,
		TotalRequests:  m.totalRequests,
		Conversions:    m.conversions,
		OCRRuns:        m.ocrRuns,
		Failures:       m.failures,
	}
}
