package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/dgallion1/quizgest/internal/quiz"
)

// handleConvert converts one uploaded file synchronously and responds with
// the question array. An optional "tolerance" form field overrides the
// configured line tolerance.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	header := formFileHeader(r, "file")
	if header == nil {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	filename, data, status, err := s.readUpload(header)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	conv := *s.orchestrator.Converter()
	if v := r.FormValue("tolerance"); v != "" {
		tol, err := strconv.ParseFloat(v, 64)
		if err != nil || tol <= 0 {
			jsonError(w, "tolerance must be a positive number", http.StatusBadRequest)
			return
		}
		conv.Tolerance = tol
	}

	res, err := conv.Convert(bytes.NewReader(data), filename)
	if err != nil {
		if s.stats != nil {
			s.stats.RecordFailure()
		}
		s.log.Error("convert failed", "filename", filename, "error", err)
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if s.stats != nil {
		s.stats.Record(res.Conversion())
	}
	s.log.Info("converted", "filename", filename, "pages", res.Pages, "questions", len(res.Questions))

	w.Header().Set("Content-Type", "application/json")
	quiz.WriteJSON(w, res.Questions)
}
