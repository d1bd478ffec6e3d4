package server

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/toricodesthings/doc-conversion-service/internal/domain"
	"github.com/toricodesthings/doc-conversion-service/internal/pipeline"
	"github.com/toricodesthings/doc-conversion-service/internal/types"
)

// Prefixes for failures that are not the user's fault.
const (
	prefixConversion = "Conversion failed"
	prefixOCR        = "OCR failed"
)

// wantsJSON reports whether the client asked for JSON instead of pages and
// redirects.
func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindDocumentParse, domain.KindConversion, domain.KindOCR:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is what the user sees for err. Validation and not-found
// messages are already phrased for users, as is an empty PDF; everything else
// is prefixed and sanitised.
func userMessage(err error, prefix string) string {
	var de *domain.Error
	if errors.As(err, &de) {
		switch {
		case de.Kind == domain.KindValidation, de.Kind == domain.KindNotFound:
			return de.Message
		case de.Message == pipeline.MsgNoPages && de.Err == nil:
			return de.Message
		}
	}
	return prefix + ": " + sanitizeError(err)
}

// fail reports err to the client: JSON for API callers, otherwise a flash
// message and a redirect to the landing page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, prefix string) {
	kind := domain.KindOf(err)
	msg := userMessage(err, prefix)

	if kind == domain.KindValidation {
		s.log.Debug().Str("path", sanitizeLogString(r.URL.Path)).Str("reason", msg).Msg("rejected upload")
	} else {
		s.metrics.incFailures()
		s.log.Error().Err(err).Str("kind", string(kind)).Str("path", sanitizeLogString(r.URL.Path)).Msg("request failed")
	}

	if wantsJSON(r) {
		writeErr(w, statusFor(kind), string(kind), msg)
		return
	}
	s.flash.add(w, r, "error", msg)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func sendAttachment(w http.ResponseWriter, art domain.Artifact) {
	h := w.Header()
	h.Set("Content-Type", art.MediaType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Name}))
	h.Set("Content-Length", strconv.Itoa(len(art.Data)))
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if tmp := os.TempDir(); tmp != "" {
		msg = strings.ReplaceAll(msg, tmp, "[tmp]")
	}
	return truncate(msg, 300)
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	return truncate(s, 200)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}
