package server

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/matsen/bibfix/internal/bibtex"
	"github.com/matsen/bibfix/internal/enrich"
	"github.com/matsen/bibfix/internal/reference"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs err and writes it as an ErrorResponse.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.Error = http.StatusText(code)
	}

	s.logger.Warn(message,
		zap.Int("code", code),
		zap.String("correlation_id", resp.CorrelationID),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.JSON(code, resp)
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status    string             `json:"status"`
	Sources   []reference.Source `json:"sources"`
	Timestamp string             `json:"timestamp"`
}

// Health reports liveness and the configured sources.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Sources:   s.enricher.Sources(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// EnrichEntry handles POST /v1/enrich/entry.
func (s *Server) EnrichEntry(c echo.Context) error {
	var req enrich.EntryRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "invalid request body", http.StatusBadRequest)
	}

	res, err := s.enricher.EnrichEntry(c.Request().Context(), req)
	if errors.Is(err, enrich.ErrInvalidRequest) {
		return s.HandleError(c, err, "cite key is required", http.StatusBadRequest)
	}
	if err != nil {
		return s.HandleError(c, err, "enrichment failed", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, res)
}

// FileRequest asks for a file or inline BibTeX to be enriched.
type FileRequest struct {
	// Path of a .bib file to enrich in place, or into Output.
	Path   string `json:"path,omitempty"`
	Output string `json:"output,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`

	// Content is inline BibTeX. It is enriched in memory and returned.
	Content string `json:"content,omitempty"`
}

// FileResponse is the report, plus the enriched text for inline requests.
type FileResponse struct {
	enrich.Report
	Text string `json:"text,omitempty"`
}

// EnrichFile handles POST /v1/enrich/file.
func (s *Server) EnrichFile(c echo.Context) error {
	var req FileRequest
	if err := c.Bind(&req); err != nil {
		return s.HandleError(c, err, "invalid request body", http.StatusBadRequest)
	}
	ctx := c.Request().Context()

	if req.Path == "" {
		if strings.TrimSpace(req.Content) == "" {
			return s.HandleError(c, nil, "path or content is required", http.StatusBadRequest)
		}
		doc := bibtex.Parse(req.Content)
		report := s.enricher.EnrichDocument(ctx, doc)
		report.DryRun = req.DryRun
		resp := FileResponse{Report: report}
		if !req.DryRun {
			resp.Text = bibtex.Format(doc)
		}
		return c.JSON(http.StatusOK, resp)
	}

	path, err := s.resolve(req.Path)
	if err != nil {
		return s.HandleError(c, err, "invalid path", http.StatusBadRequest)
	}
	var output string
	if req.Output != "" {
		if output, err = s.resolve(req.Output); err != nil {
			return s.HandleError(c, err, "invalid output path", http.StatusBadRequest)
		}
	}

	report, err := s.enricher.EnrichFile(ctx, path, enrich.FileOptions{Output: output, DryRun: req.DryRun})
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s.HandleError(c, err, "file not found", http.StatusNotFound)
	case err != nil:
		return s.HandleError(c, err, "enrichment failed", http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, FileResponse{Report: report})
}

var errOutsideRoot = errors.New("path escapes the server root")

// resolve applies the server root, if any, to a requested path.
func (s *Server) resolve(p string) (string, error) {
	if s.root == "" {
		return filepath.Clean(p), nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	rel, err := filepath.Rel(s.root, filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	return filepath.Join(s.root, rel), nil
}
