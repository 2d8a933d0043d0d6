package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/render"
	"github.com/spaolacci/murmur3"

	"github.com/auditview/auditview/pkg/audit"
	"github.com/auditview/auditview/pkg/defaults"
	"github.com/auditview/auditview/pkg/output"
	"github.com/auditview/auditview/pkg/output/policy"
	"github.com/auditview/auditview/pkg/output/writers"
	"github.com/auditview/auditview/pkg/report"
)

// Response headers set on rendered reports.
const (
	HeaderReportID = "X-Auditview-Report-Id"
	HeaderGate     = "X-Auditview-Gate"
	HeaderPolicy   = "X-Auditview-Policy"
)

// Error codes in JSON error bodies.
const (
	codeBadRequest   = "bad_request"
	codeTooLarge     = "too_large"
	codeInvalidAudit = "invalid_audit"
	codeAuditFailed  = "audit_failed"
	codeBadFormat    = "unknown_format"
	codeNotAllowed   = "format_not_allowed"
	codeBadPolicy    = "invalid_policy"
	codeRateLimited  = "rate_limited"
	codeInternal     = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type gateResponse struct {
	Policy   string   `json:"policy"`
	Pass     bool     `json:"pass"`
	ExitCode int      `json:"exitCode"`
	Failures []string `json:"failures"`
	Ignored  int      `json:"ignored"`
}

type summaryResponse struct {
	ID     string        `json:"id"`
	Title  string        `json:"title"`
	Clean  bool          `json:"clean"`
	Counts audit.Counts  `json:"counts"`
	Gate   *gateResponse `json:"gate,omitempty"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	pol, ok := s.policy(w, r)
	if !ok {
		return
	}

	format := negotiateFormat(r)
	if !slices.Contains(report.Formats, format) {
		s.writeError(w, r, http.StatusBadRequest, codeBadFormat, fmt.Sprintf("%v: %q", writers.ErrUnknownFormat, format))
		return
	}
	if allowed := s.cfg.Pipeline.Config().Export.AllowedFormats; len(allowed) > 0 && !slices.Contains(allowed, format) {
		s.writeError(w, r, http.StatusNotAcceptable, codeNotAllowed, fmt.Sprintf("format %q is not enabled on this server (allowed: %s)", format, strings.Join(allowed, ", ")))
		return
	}

	doc, err := s.cfg.Pipeline.Assemble(r.Context(), output.Input{Audit: data})
	if err != nil {
		s.auditError(w, r, format, err)
		return
	}

	if pol != nil {
		res, err := s.cfg.Pipeline.Gate(r.Context(), doc, pol)
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, codeInternal, err.Error())
			return
		}
		w.Header().Set(HeaderPolicy, res.PolicyName)
		w.Header().Set(HeaderGate, gateLabel(res.Pass))
	}

	var buf bytes.Buffer
	wr, err := s.cfg.Pipeline.Write(r.Context(), &buf, doc, format)
	if err != nil {
		if errors.Is(err, writers.ErrUnknownFormat) {
			s.writeError(w, r, http.StatusBadRequest, codeBadFormat, err.Error())
			return
		}
		s.logger.Error("render failed", "report_id", doc.ID, "format", format, "error", err)
		s.writeError(w, r, http.StatusInternalServerError, codeInternal, "failed to render report")
		return
	}

	etag := ETag(buf.Bytes())
	w.Header().Set("ETag", etag)
	w.Header().Set(HeaderReportID, doc.ID)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", wr.ContentType())
	if wr.Extension() != ".html" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="npm-audit%s"`, wr.Extension()))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	pol, ok := s.policy(w, r)
	if !ok {
		return
	}

	doc, err := s.cfg.Pipeline.Assemble(r.Context(), output.Input{Audit: data})
	if err != nil {
		s.auditError(w, r, "json", err)
		return
	}

	resp := summaryResponse{ID: doc.ID, Title: doc.Title, Clean: doc.Clean, Counts: doc.Counts}
	if pol != nil {
		res, err := s.cfg.Pipeline.Gate(r.Context(), doc, pol)
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, codeInternal, err.Error())
			return
		}
		resp.Gate = newGateResponse(res)
	}
	w.Header().Set(HeaderReportID, doc.ID)
	render.JSON(w, r, resp)
}

func newGateResponse(res policy.Result) *gateResponse {
	failures := res.Failures
	if failures == nil {
		failures = []string{}
	}
	return &gateResponse{
		Policy:   res.PolicyName,
		Pass:     res.Pass,
		ExitCode: res.ExitCode,
		Failures: failures,
		Ignored:  res.Summary.Ignored,
	}
}

// policy loads ?policy= or the configured default. A nil policy with ok
// true means no gate was requested.
func (s *Server) policy(w http.ResponseWriter, r *http.Request) (*policy.Policy, bool) {
	ref := r.URL.Query().Get("policy")
	if ref == "" {
		ref = s.cfg.Policy
	}
	if ref == "" {
		return nil, true
	}
	p, err := output.LoadPolicy(ref)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, codeBadPolicy, err.Error())
		return nil, false
	}
	return p, true
}

// auditError answers a failed decode. HTML clients get the failure page,
// everyone else a JSON error.
func (s *Server) auditError(w http.ResponseWriter, r *http.Request, format string, err error) {
	status, code := http.StatusUnprocessableEntity, codeInvalidAudit
	switch {
	case errors.Is(err, audit.ErrTooLarge):
		status, code = http.StatusRequestEntityTooLarge, codeTooLarge
	case errors.Is(err, audit.ErrAuditFailed):
		code = codeAuditFailed
	case errors.Is(err, audit.ErrInvalidJSON),
		errors.Is(err, audit.ErrMissingVulnerabilities),
		errors.Is(err, audit.ErrMissingMetadata):
	default:
		status, code = http.StatusInternalServerError, codeInternal
	}

	if format == "html" {
		page, pageErr := s.cfg.Pipeline.ErrorPage(err)
		if pageErr == nil {
			w.Header().Set("Content-Type", defaults.ContentTypeHTML)
			w.WriteHeader(status)
			_, _ = w.Write(page)
			return
		}
		s.logger.Error("error page failed", "error", pageErr)
	}
	s.writeError(w, r, status, code, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg, Code: code})
}

// negotiateFormat picks the output format from ?format=, then Accept.
func negotiateFormat(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return strings.ToLower(f)
	}
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "application/json"):
		return "json"
	case strings.Contains(accept, "text/markdown"):
		return "markdown"
	case strings.Contains(accept, "text/csv"):
		return "csv"
	case strings.Contains(accept, "application/pdf"):
		return "pdf"
	}
	return "html"
}

// ETag is a strong validator over the rendered body.
func ETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, murmur3.Sum64(body))
}

func gateLabel(pass bool) string {
	if pass {
		return "pass"
	}
	return "fail"
}
