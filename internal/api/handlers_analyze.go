package api

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/markforest/internal/analysis"
	"github.com/dgallion1/markforest/internal/metrics"
	"github.com/dgallion1/markforest/internal/parser"
)

// AnalyzeTextRequest is the body of POST /api/analyze/text.
type AnalyzeTextRequest struct {
	Text   string `json:"text" validate:"required"`
	Format string `json:"format" validate:"omitempty,oneof=txt md markdown html htm csv"`
	Title  string `json:"title" validate:"max=512"`
}

// BatchItem is one file's outcome in a batch analysis.
type BatchItem struct {
	Filename string           `json:"filename"`
	Result   *analysis.Result `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, tooLarge, err := readLimited(file, s.cfg.MaxUploadBytes)
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if tooLarge {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	res, err := s.analyzeBytes(filename, r.FormValue("title"), data)
	if err != nil {
		s.log.Warn("analyze failed", "file", filename, "error", err)
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeTextRequest
	if err := decodeJSON(w, r, s.cfg.MaxUploadBytes, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	format := req.Format
	if format == "" {
		format = "txt"
	}
	title := req.Title
	if title == "" {
		title = "text"
	}

	res, err := s.analyzeBytes("input."+format, title, []byte(req.Text))
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	items := make([]BatchItem, len(files))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.cfg.MaxBatchConcurrency)
	for i, fh := range files {
		g.Go(func() error {
			filename := sanitizeFilename(fh.Filename)
			items[i].Filename = filename
			if err := ctx.Err(); err != nil {
				items[i].Error = err.Error()
				return nil
			}
			if !parser.IsSupportedExtension(filename) {
				items[i].Error = fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename))
				return nil
			}

			f, err := fh.Open()
			if err != nil {
				items[i].Error = "failed to open file"
				return nil
			}
			data, tooLarge, err := readLimited(f, s.cfg.MaxUploadBytes)
			f.Close()
			if err != nil || tooLarge {
				items[i].Error = "file too large or read error"
				return nil
			}

			// Per-file failures are reported inline and never cancel siblings.
			res, err := s.analyzeBytes(filename, "", data)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Result = res
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}

// analyzeBytes parses data by filename extension and analyses it.
func (s *Server) analyzeBytes(filename, title string, data []byte) (*analysis.Result, error) {
	started := time.Now()
	p, err := parser.ForFile(filename, s.parserOptions())
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		metrics.RecordAnalysis("api", false, time.Since(started).Seconds())
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	if title = strings.TrimSpace(title); title != "" {
		doc.Title = title
	}
	return s.analyzer.Analyze(doc), nil
}
