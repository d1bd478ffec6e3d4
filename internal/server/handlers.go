package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
	"github.com/toricodesthings/doc-conversion-service/internal/pipeline"
	"github.com/toricodesthings/doc-conversion-service/internal/quality"
	"github.com/toricodesthings/doc-conversion-service/internal/types"
	"github.com/toricodesthings/doc-conversion-service/internal/validate"
)

// Uploads beyond this are spooled to disk by mime/multipart.
const maxFormMemory = 32 << 20

type indexPage struct {
	Messages       []flashMessage
	MaxUploadMB    int
	DefaultDPI     int
	DefaultQuality int
	MinDPI         int
	MaxDPI         int
	DefaultLang    string
}

type ocrResultPage struct {
	Text         string
	Lang         string
	TxtDownload  string
	DownloadURL  string
	Quality      quality.Report
	QualityLabel string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", indexPage{
		Messages:       s.flash.pop(w, r),
		MaxUploadMB:    s.cfg.MaxUploadMB,
		DefaultDPI:     s.cfg.DefaultDPI,
		DefaultQuality: s.cfg.DefaultJPEGQuality,
		MinDPI:         s.cfg.MinDPI,
		MaxDPI:         s.cfg.MaxDPI,
		DefaultLang:    s.cfg.DefaultOCRLang,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok", Active: s.metrics.get().ActiveRequests})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Stats())
}

func (s *Server) handlePDFToJPG(w http.ResponseWriter, r *http.Request) {
	if !s.parseUpload(w, r) {
		return
	}
	defer cleanupForm(r)

	src, err := formFile(r, "pdf")
	if err == nil {
		err = validate.Upload(src, validate.PDFExtensions, pipeline.MsgChoosePDF, pipeline.MsgOnlyPDF)
	}
	if err != nil {
		s.fail(w, r, err, prefixConversion)
		return
	}
	dpi, err := formInt(r, "dpi", "DPI")
	if err != nil {
		s.fail(w, r, err, prefixConversion)
		return
	}
	q, err := formInt(r, "quality", "JPEG quality")
	if err != nil {
		s.fail(w, r, err, prefixConversion)
		return
	}

	ctx, cancel := withTimeout(r.Context(), s.cfg.ConvertTimeout)
	defer cancel()

	art, err := s.proc.PDFToJPEG(ctx, src, pipeline.PDFOptions{DPI: dpi, Quality: q})
	if err != nil {
		s.fail(w, r, err, prefixConversion)
		return
	}
	s.metrics.incConversions()
	sendAttachment(w, art)
}

func (s *Server) handleJPGToPDF(w http.ResponseWriter, r *http.Request) {
	if !s.parseUpload(w, r) {
		return
	}
	defer cleanupForm(r)

	srcs, err := formFiles(r, "images")
	if err != nil {
		s.fail(w, r, err, prefixConversion)
		return
	}

	ctx, cancel := withTimeout(r.Context(), s.cfg.ConvertTimeout)
	defer cancel()

	art, err := s.proc.MergeImages(ctx, srcs)
	if err != nil {
		s.fail(w, r, err, prefixConversion)
		return
	}
	s.metrics.incConversions()
	sendAttachment(w, art)
}

func (s *Server) handleImageToText(w http.ResponseWriter, r *http.Request) {
	if !s.parseUpload(w, r) {
		return
	}
	defer cleanupForm(r)

	src, err := formFile(r, "image")
	if err != nil {
		s.fail(w, r, err, prefixOCR)
		return
	}
	lang := strings.TrimSpace(r.FormValue("lang"))

	ctx, cancel := withTimeout(r.Context(), s.cfg.OCRTimeout)
	defer cancel()

	res, err := s.proc.ImageToText(ctx, src, lang)
	if err != nil {
		s.fail(w, r, err, prefixOCR)
		return
	}
	s.metrics.incOCR()

	downloadURL := "/download-txt/" + url.PathEscape(res.ArtifactName)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, types.OCRResult{
			Success:     true,
			Text:        res.Text,
			Language:    res.Language,
			Filename:    res.ArtifactName,
			DownloadURL: downloadURL,
			Quality:     res.Quality,
		})
		return
	}

	s.render(w, "ocr_result.html", ocrResultPage{
		Text:         res.Text,
		Lang:         res.Language,
		TxtDownload:  res.ArtifactName,
		DownloadURL:  downloadURL,
		Quality:      res.Quality,
		QualityLabel: qualityLabel(res.Quality),
	})
}

func (s *Server) handleDownloadText(w http.ResponseWriter, r *http.Request) {
	art, err := s.proc.ResultText(r.Context(), chi.URLParam(r, "filename"))
	if err != nil {
		kind := domain.KindOf(err)
		if kind != domain.KindNotFound {
			s.log.Error().Err(err).Msg("download failed")
		}
		if wantsJSON(r) {
			writeErr(w, statusFor(kind), string(kind), userMessage(err, "Download failed"))
			return
		}
		if kind == domain.KindNotFound {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	sendAttachment(w, art)
}

// parseUpload caps the body at MAX_UPLOAD_MB and parses the form. When it
// returns false the response has already been written.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())

	err := r.ParseMultipartForm(maxFormMemory)
	if err == nil || errors.Is(err, http.ErrNotMultipart) {
		return true
	}

	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
		msg := fmt.Sprintf("File too large (max %d MB).", s.cfg.MaxUploadMB)
		s.log.Debug().Str("path", sanitizeLogString(r.URL.Path)).Msg("upload too large")
		if wantsJSON(r) {
			writeErr(w, http.StatusRequestEntityTooLarge, "too_large", msg)
		} else {
			http.Error(w, msg, http.StatusRequestEntityTooLarge)
		}
		return false
	}

	s.fail(w, r, domain.ValidationError("Could not read the uploaded form."), "")
	return false
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = buf.WriteTo(w)
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// formInt reads an optional integer field; absent or blank means 0.
func formInt(r *http.Request, field, label string) (int, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.ValidationError(label + " must be a whole number.")
	}
	return n, nil
}

// formFile returns the first file posted under field, or nil.
func formFile(r *http.Request, field string) (*domain.SourceDocument, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return nil, nil
	}
	doc, err := readPart(r.MultipartForm.File[field][0])
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func formFiles(r *http.Request, field string) ([]domain.SourceDocument, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	fhs := r.MultipartForm.File[field]
	out := make([]domain.SourceDocument, 0, len(fhs))
	for _, fh := range fhs {
		doc, err := readPart(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func readPart(fh *multipart.FileHeader) (domain.SourceDocument, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return domain.SourceDocument{}, fmt.Errorf("read upload: %w", err)
	}
	return domain.SourceDocument{Filename: fh.Filename, Data: data}, nil
}

func qualityLabel(q quality.Report) string {
	switch {
	case q.Empty:
		return "No text was recognised."
	case q.LowConfidence:
		return "Low confidence: the image may be blurry, rotated or not contain text."
	default:
		return ""
	}
}
